package conversation

// Render flattens a decision into the single outbound message text. Every
// variant is handled; a new variant that reaches the default arm is a
// programming error surfaced as the clarify fallback.
func Render(d Decision) string {
	switch v := d.(type) {
	case Ask:
		return v.Prompt
	case ConfirmDefault:
		return v.Prompt
	case Review:
		return v.Summary
	case AskAlternatives:
		return v.Prompt
	case Submitted:
		return v.Message
	case Clarify:
		return v.Prompt
	case Lookup:
		return v.Prompt
	case Complete:
		return v.Message
	case ConfirmHandoff:
		return v.Prompt
	case Handoff:
		return v.Message
	}
	return clarifyPrompt
}
