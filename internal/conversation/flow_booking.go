package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"caddie_backend/internal/bookings"
	"caddie_backend/internal/members"
	"caddie_backend/internal/venues"
	"caddie_backend/platform/apperr"
	"caddie_backend/platform/config"
	"caddie_backend/platform/logger"
)

// venueDirectory is the slice of the venues repository the flows consume.
type venueDirectory interface {
	ListActiveVenues(ctx context.Context) ([]venues.Venue, error)
	GetVenue(ctx context.Context, id uuid.UUID) (venues.Venue, error)
	ListActiveLocations(ctx context.Context, venueID uuid.UUID) ([]venues.Location, error)
	CountAvailableBays(ctx context.Context, locationID uuid.UUID, start, end time.Time) (int, error)
	SuggestAlternativeSlots(ctx context.Context, locationID uuid.UUID, requested time.Time, duration time.Duration, limit int) ([]time.Time, error)
}

// bookingCreator is the slice of the booking engine the flow consumes.
type bookingCreator interface {
	Create(ctx context.Context, params bookings.CreateParams) (bookings.Booking, error)
}

// preferenceSource supplies historical defaults for confirm-default turns.
type preferenceSource interface {
	Preferences(ctx context.Context, m members.Member) (members.Preferences, error)
}

// BookingState is the new-booking flow's slot record. Nil means the slot
// has not been filled; Notes and Guests use the empty string for an
// explicit "none".
type BookingState struct {
	RawVenue    *string    `json:"raw_venue,omitempty"`
	RawLocation *string    `json:"raw_location,omitempty"`
	VenueID     *uuid.UUID `json:"venue_id,omitempty"`
	VenueName   *string    `json:"venue_name,omitempty"`
	LocationID  *uuid.UUID `json:"location_id,omitempty"`
	Date        *string    `json:"date,omitempty"`
	Time        *string    `json:"time,omitempty"`
	Players     *int       `json:"players,omitempty"`
	Guests      *string    `json:"guests,omitempty"`
	Notes       *string    `json:"notes,omitempty"`

	// Turn bookkeeping.
	Reviewing        bool       `json:"reviewing,omitempty"`
	PendingDefault   string     `json:"pending_default,omitempty"`
	DefaultVenueID   *uuid.UUID `json:"default_venue_id,omitempty"`
	DefaultPlayers   *int       `json:"default_players,omitempty"`
	DeclinedDefaults []string   `json:"declined_defaults,omitempty"`
	LastAsked        string     `json:"last_asked,omitempty"`
}

func (st *BookingState) declinedDefault(field string) bool {
	for _, f := range st.DeclinedDefaults {
		if f == field {
			return true
		}
	}
	return false
}

func (st *BookingState) complete() bool {
	return st.VenueID != nil && st.LocationID != nil && st.Date != nil &&
		st.Time != nil && st.Players != nil && st.Guests != nil && st.Notes != nil
}

// BookingFlow drives the new-booking slot-filling state machine.
type BookingFlow struct {
	oracle *Oracle
	venues venueDirectory
	engine bookingCreator
	prefs  preferenceSource
	cfg    config.BookingConfig
	log    *logger.Logger
	now    func() time.Time
}

// NewBookingFlow wires the new-booking flow engine.
func NewBookingFlow(oracle *Oracle, dir venueDirectory, engine bookingCreator, prefs preferenceSource, cfg config.BookingConfig, log *logger.Logger) *BookingFlow {
	return &BookingFlow{oracle: oracle, venues: dir, engine: engine, prefs: prefs, cfg: cfg, log: log, now: time.Now}
}

// SetClock overrides the time source for tests.
func (f *BookingFlow) SetClock(now func() time.Time) {
	f.now = now
}

// Advance runs one turn of the flow.
func (f *BookingFlow) Advance(ctx context.Context, member members.Member, text string, st *BookingState) (Decision, error) {
	loc := memberLocation(member.Timezone)
	now := f.now().In(loc)
	yes, no := IsAffirmative(text), IsNegative(text)

	if st.Reviewing {
		switch {
		case yes:
			return f.submit(ctx, member, st, now, loc)
		case no:
			st.Reviewing = false
			return Clarify{Prompt: "No problem, we won't book that. What would you like to change?"}, nil
		default:
			// They are amending something rather than confirming.
			st.Reviewing = false
		}
	}

	if st.PendingDefault != "" {
		f.resolvePendingDefault(ctx, st, yes, no)
		if yes || no {
			text = "" // consumed; nothing left to extract
		}
	}

	// A bare confirmation over a complete record never goes back through
	// extraction: relative dates were already resolved once and must not
	// be re-interpreted.
	if text != "" && !((yes || no) && st.complete()) {
		extracted := f.oracle.ExtractBookingFields(ctx, text, now.Format("2006-01-02"), member.Timezone)
		f.mergeExtracted(st, extracted)
		f.applyHeuristics(st, text, now, loc)
	}
	st.LastAsked = ""

	if d, done, err := f.resolveVenue(ctx, st); done || err != nil {
		return d, err
	}
	if d, done, err := f.resolveLocation(ctx, st); done || err != nil {
		return d, err
	}
	if d, done := f.validateFields(st, now, loc); done {
		return d, nil
	}
	if d, done, err := f.nextMissing(ctx, member, st); done || err != nil {
		return d, err
	}
	return f.review(ctx, st, now, loc)
}

// resolvePendingDefault applies or discards an offered default.
func (f *BookingFlow) resolvePendingDefault(ctx context.Context, st *BookingState, yes, no bool) {
	field := st.PendingDefault
	if yes {
		switch field {
		case "venue":
			if st.DefaultVenueID != nil {
				if v, err := f.venues.GetVenue(ctx, *st.DefaultVenueID); err == nil {
					st.VenueID = &v.ID
					st.VenueName = &v.Name
				}
			}
		case "players":
			if st.DefaultPlayers != nil {
				st.Players = st.DefaultPlayers
			}
		}
	} else {
		// A no, or any other answer, spends the offer for good: the next
		// turn must reach the plain ask, never the same question again.
		st.DeclinedDefaults = append(st.DeclinedDefaults, field)
	}
	st.PendingDefault = ""
	st.DefaultVenueID = nil
	st.DefaultPlayers = nil
}

// mergeExtracted overlays oracle output onto the state. Restating a slot
// overwrites it; naming a different venue discards the dependent slots.
func (f *BookingFlow) mergeExtracted(st *BookingState, ex BookingFields) {
	if ex.Venue != nil {
		if st.VenueName == nil || !strings.EqualFold(*ex.Venue, *st.VenueName) {
			st.RawVenue = ex.Venue
			st.VenueID = nil
			st.VenueName = nil
			st.LocationID = nil
			st.RawLocation = nil
		}
	}
	if ex.Location != nil {
		st.RawLocation = ex.Location
		st.LocationID = nil
	}
	if ex.Date != nil {
		st.Date = ex.Date
	}
	if ex.Time != nil {
		st.Time = ex.Time
	}
	if ex.Players != nil {
		st.Players = ex.Players
	}
	if ex.Guests != nil {
		st.Guests = ex.Guests
	}
	if ex.Notes != nil {
		notes := *ex.Notes
		if strings.EqualFold(strings.TrimSpace(notes), "none") {
			notes = ""
		}
		st.Notes = &notes
	}
}

// applyHeuristics fills the slot we just asked for from the raw message
// when the oracle came back empty. Short answers like "2pm" or "3" must
// not dead-end on an oracle outage.
func (f *BookingFlow) applyHeuristics(st *BookingState, text string, now time.Time, loc *time.Location) {
	switch st.LastAsked {
	case "date":
		if st.Date == nil {
			if d, ok := ParseDate(text, now, loc); ok {
				iso := d.Format("2006-01-02")
				st.Date = &iso
			}
		}
	case "time":
		if st.Time == nil {
			if h, m, ok := ParseTimeOfDay(text); ok {
				hhmm := fmt.Sprintf("%02d:%02d", h, m)
				st.Time = &hhmm
			}
		}
	case "players":
		if st.Players == nil {
			if n, ok := ParsePlayers(text); ok {
				st.Players = &n
			}
		}
	case "venue":
		if st.RawVenue == nil && st.VenueID == nil {
			trimmed := strings.TrimSpace(text)
			st.RawVenue = &trimmed
		}
	case "guests":
		if st.Guests == nil {
			guests := strings.TrimSpace(text)
			if IsNegative(guests) || strings.EqualFold(guests, "none") {
				guests = ""
			}
			st.Guests = &guests
		}
	case "notes":
		if st.Notes == nil {
			notes := strings.TrimSpace(text)
			if IsNegative(notes) || strings.EqualFold(notes, "none") {
				notes = ""
			}
			st.Notes = &notes
		}
	}
}

// resolveVenue turns free venue text into a canonical venue: exact match,
// then fuzzy, then oracle disambiguation, then an enumerated ask.
func (f *BookingFlow) resolveVenue(ctx context.Context, st *BookingState) (Decision, bool, error) {
	if st.VenueID != nil || st.RawVenue == nil {
		return nil, false, nil
	}
	active, err := f.venues.ListActiveVenues(ctx)
	if err != nil {
		return nil, false, err
	}
	names := venues.Names(active)
	pick := func(i int) {
		st.VenueID = &active[i].ID
		st.VenueName = &active[i].Name
		st.RawVenue = nil
	}

	match := venues.ResolveName(*st.RawVenue, names)
	switch match.Outcome {
	case venues.MatchExact, venues.MatchFuzzy:
		pick(match.Index)
		return nil, false, nil
	case venues.MatchWeak, venues.MatchNone:
		if choice := f.oracle.DisambiguateVenue(ctx, *st.RawVenue, names); choice != "" {
			for i, n := range names {
				if n == choice {
					pick(i)
					return nil, false, nil
				}
			}
		}
	}
	st.RawVenue = nil
	st.LastAsked = "venue"
	return Ask{
		Field:  "venue",
		Prompt: "I couldn't find that venue. We have: " + strings.Join(names, ", ") + ". Which would you like?",
	}, true, nil
}

// resolveLocation picks the sub-location once the venue is known. A venue
// with a single active sub-location never prompts for one.
func (f *BookingFlow) resolveLocation(ctx context.Context, st *BookingState) (Decision, bool, error) {
	if st.VenueID == nil || st.LocationID != nil {
		return nil, false, nil
	}
	locations, err := f.venues.ListActiveLocations(ctx, *st.VenueID)
	if err != nil {
		return nil, false, err
	}
	if len(locations) == 0 {
		return nil, false, apperr.Internal("venue has no active locations")
	}
	if len(locations) == 1 {
		st.LocationID = &locations[0].ID
		st.RawLocation = nil
		return nil, false, nil
	}
	names := venues.LocationNames(locations)
	if st.RawLocation != nil {
		match := venues.ResolveName(*st.RawLocation, names)
		if match.Outcome == venues.MatchExact || match.Outcome == venues.MatchFuzzy {
			st.LocationID = &locations[match.Index].ID
			st.RawLocation = nil
			return nil, false, nil
		}
		st.RawLocation = nil
	}
	st.LastAsked = "location"
	return Ask{
		Field:  "location",
		Prompt: fmt.Sprintf("%s has a few areas: %s. Which one?", *st.VenueName, strings.Join(names, ", ")),
	}, true, nil
}

// validateFields is the deterministic secondary pass: a failing field is
// cleared and re-asked rather than failing the flow.
func (f *BookingFlow) validateFields(st *BookingState, now time.Time, loc *time.Location) (Decision, bool) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	if st.Date != nil {
		d, err := time.ParseInLocation("2006-01-02", *st.Date, loc)
		if err != nil {
			st.Date = nil
			st.LastAsked = "date"
			return Ask{Field: "date", Prompt: "I didn't catch the date. Which day would you like to play?"}, true
		}
		if d.Before(today) {
			st.Date = nil
			st.LastAsked = "date"
			return Ask{Field: "date", Prompt: "That date has already passed. Which day would you like to play?"}, true
		}
	}
	if st.Time != nil {
		if _, _, ok := ParseTimeOfDay(*st.Time); !ok {
			st.Time = nil
			st.LastAsked = "time"
			return Ask{Field: "time", Prompt: "I didn't catch the time. What time would you like to start?"}, true
		}
	}
	if st.Players != nil && (*st.Players < 1 || *st.Players > bookings.MaxPlayers) {
		st.Players = nil
		st.LastAsked = "players"
		return Ask{
			Field:  "players",
			Prompt: fmt.Sprintf("We can host between 1 and %d players per bay. How many will be playing?", bookings.MaxPlayers),
		}, true
	}
	return nil, false
}

// nextMissing asks for the first unfilled slot in the fixed order. Venue
// and player count consult historical preferences for a confirm-default
// before a plain ask.
func (f *BookingFlow) nextMissing(ctx context.Context, member members.Member, st *BookingState) (Decision, bool, error) {
	if st.VenueID == nil {
		if d, ok := f.offerVenueDefault(ctx, member, st); ok {
			return d, true, nil
		}
		active, err := f.venues.ListActiveVenues(ctx)
		if err != nil {
			return nil, false, err
		}
		st.LastAsked = "venue"
		return Ask{
			Field:  "venue",
			Prompt: "Where would you like to play? We have: " + strings.Join(venues.Names(active), ", ") + ".",
		}, true, nil
	}
	if st.Date == nil {
		st.LastAsked = "date"
		return Ask{Field: "date", Prompt: "Which day would you like to play?"}, true, nil
	}
	if st.Time == nil {
		st.LastAsked = "time"
		return Ask{Field: "time", Prompt: "What time would you like to start?"}, true, nil
	}
	if st.Players == nil {
		if d, ok := f.offerPlayersDefault(ctx, member, st); ok {
			return d, true, nil
		}
		st.LastAsked = "players"
		return Ask{Field: "players", Prompt: "How many players will there be?"}, true, nil
	}
	if st.Guests == nil {
		if *st.Players <= 1 {
			empty := ""
			st.Guests = &empty
		} else {
			st.LastAsked = "guests"
			return Ask{Field: "guests", Prompt: "Who will be joining you? You can just say none."}, true, nil
		}
	}
	if st.Notes == nil {
		st.LastAsked = "notes"
		return Ask{Field: "notes", Prompt: "Anything we should know, like club rental or accessibility needs? Say none if not."}, true, nil
	}
	return nil, false, nil
}

func (f *BookingFlow) offerVenueDefault(ctx context.Context, member members.Member, st *BookingState) (Decision, bool) {
	if st.DefaultVenueID != nil || st.PendingDefault != "" || st.declinedDefault("venue") {
		return nil, false
	}
	prefs, err := f.prefs.Preferences(ctx, member)
	if err != nil || prefs.PreferredVenueID == nil {
		return nil, false
	}
	v, err := f.venues.GetVenue(ctx, *prefs.PreferredVenueID)
	if err != nil {
		return nil, false
	}
	st.PendingDefault = "venue"
	st.DefaultVenueID = &v.ID
	return ConfirmDefault{
		Field:   "venue",
		Default: v.Name,
		Prompt:  fmt.Sprintf("Same place as usual, %s?", v.Name),
	}, true
}

func (f *BookingFlow) offerPlayersDefault(ctx context.Context, member members.Member, st *BookingState) (Decision, bool) {
	if st.DefaultPlayers != nil || st.PendingDefault != "" || st.declinedDefault("players") {
		return nil, false
	}
	prefs, err := f.prefs.Preferences(ctx, member)
	if err != nil || prefs.UsualPlayerCount == nil || *prefs.UsualPlayerCount < 1 || *prefs.UsualPlayerCount > bookings.MaxPlayers {
		return nil, false
	}
	st.PendingDefault = "players"
	st.DefaultPlayers = prefs.UsualPlayerCount
	return ConfirmDefault{
		Field:   "players",
		Default: fmt.Sprintf("%d", *prefs.UsualPlayerCount),
		Prompt:  fmt.Sprintf("The usual %d players?", *prefs.UsualPlayerCount),
	}, true
}

// review checks availability, runs the oracle plausibility pass, and
// presents the summary.
func (f *BookingFlow) review(ctx context.Context, st *BookingState, now time.Time, loc *time.Location) (Decision, error) {
	start, ok := f.startTime(st, loc)
	if !ok {
		st.Time = nil
		st.LastAsked = "time"
		return Ask{Field: "time", Prompt: "I didn't catch the time. What time would you like to start?"}, nil
	}
	end := start.Add(bookings.DefaultDuration)

	free, err := f.venues.CountAvailableBays(ctx, *st.LocationID, start, end)
	if err != nil {
		return nil, err
	}
	if free == 0 {
		return f.offerAlternatives(ctx, st, start)
	}

	summary := f.summary(st, start)
	for _, issue := range f.oracle.ValidateFields(ctx, summary) {
		if d, ok := f.clearIssueField(st, issue); ok {
			return d, nil
		}
	}
	st.Reviewing = true
	return Review{Summary: summary}, nil
}

func (f *BookingFlow) offerAlternatives(ctx context.Context, st *BookingState, start time.Time) (Decision, error) {
	slots, err := f.venues.SuggestAlternativeSlots(ctx, *st.LocationID, start, bookings.DefaultDuration, 3)
	if err != nil {
		return nil, err
	}
	st.Time = nil
	st.LastAsked = "time"
	if len(slots) == 0 {
		return AskAlternatives{
			Prompt: "No bays are free at that time and I couldn't find a nearby slot that day. Would another day work?",
		}, nil
	}
	formatted := make([]string, len(slots))
	for i, s := range slots {
		formatted[i] = s.Format("3:04pm")
	}
	return AskAlternatives{
		Prompt:       "No bays are free at that time. I could do " + strings.Join(formatted, ", ") + ". Would any of those work?",
		Alternatives: formatted,
	}, nil
}

// clearIssueField converts an oracle plausibility issue into a targeted
// re-ask. Unknown fields are ignored.
func (f *BookingFlow) clearIssueField(st *BookingState, issue FieldIssue) (Decision, bool) {
	switch issue.Field {
	case "date":
		st.Date = nil
		st.LastAsked = "date"
		return Ask{Field: "date", Prompt: "Let me double-check the date. Which day would you like to play?"}, true
	case "time":
		st.Time = nil
		st.LastAsked = "time"
		return Ask{Field: "time", Prompt: "Let me double-check the time. What time would you like to start?"}, true
	case "players":
		st.Players = nil
		st.LastAsked = "players"
		return Ask{Field: "players", Prompt: "Let me double-check. How many players will there be?"}, true
	}
	return nil, false
}

// submit executes the booking transaction, translating policy failures
// into targeted re-asks that clear only the offending field.
func (f *BookingFlow) submit(ctx context.Context, member members.Member, st *BookingState, now time.Time, loc *time.Location) (Decision, error) {
	start, ok := f.startTime(st, loc)
	if !ok {
		st.Reviewing = false
		st.Time = nil
		st.LastAsked = "time"
		return Ask{Field: "time", Prompt: "I didn't catch the time. What time would you like to start?"}, nil
	}

	booking, err := f.engine.Create(ctx, bookings.CreateParams{
		MemberID:    member.ID,
		VenueID:     *st.VenueID,
		LocationID:  *st.LocationID,
		StartTime:   start,
		PlayerCount: *st.Players,
		GuestNames:  *st.Guests,
		Notes:       *st.Notes,
	})
	if err != nil {
		st.Reviewing = false
		switch {
		case apperr.HasCode(err, apperr.CodeBookingInPast):
			st.Date = nil
			st.LastAsked = "date"
			return Ask{Field: "date", Prompt: "That time has already passed. Which day would you like to play?"}, nil
		case apperr.HasCode(err, apperr.CodeBookingTooSoon):
			st.Time = nil
			st.LastAsked = "time"
			return Ask{
				Field:  "time",
				Prompt: fmt.Sprintf("We need at least %d minutes notice for a booking. What later time would suit?", int(f.cfg.GetBookingLeadTime().Minutes())),
			}, nil
		case apperr.HasCode(err, apperr.CodeBayUnavailable):
			return f.offerAlternatives(ctx, st, start)
		case apperr.HasCode(err, apperr.CodeReferenceExhausted):
			return Clarify{Prompt: "Something went wrong creating your booking. Could you confirm once more?"}, nil
		}
		return nil, err
	}

	return Submitted{
		Reference: booking.Reference,
		Message: fmt.Sprintf("You're booked! Reference %s, %s at %s. Status is pending until our team confirms. Reply here any time to check on it.",
			booking.Reference, start.Format("Monday 2 January, 3:04pm"), *st.VenueName),
	}, nil
}

func (f *BookingFlow) startTime(st *BookingState, loc *time.Location) (time.Time, bool) {
	d, err := time.ParseInLocation("2006-01-02", *st.Date, loc)
	if err != nil {
		return time.Time{}, false
	}
	h, m, ok := ParseTimeOfDay(*st.Time)
	if !ok {
		return time.Time{}, false
	}
	return CombineDateTime(d, h, m, loc), true
}

// summary renders the review text. Every member-supplied field appears
// verbatim.
func (f *BookingFlow) summary(st *BookingState, start time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here's what I have: %s on %s at %s for %d player",
		*st.VenueName, start.Format("Monday 2 January"), start.Format("3:04pm"), *st.Players)
	if *st.Players != 1 {
		b.WriteString("s")
	}
	if *st.Guests != "" {
		fmt.Fprintf(&b, ", with %s", *st.Guests)
	}
	if *st.Notes != "" {
		fmt.Fprintf(&b, ". Notes: %s", *st.Notes)
	}
	b.WriteString(". Shall I book it?")
	return b.String()
}

// sharedUpdates exports the slots other flows can reuse.
func (st *BookingState) sharedUpdates() SharedContext {
	updates := SharedContext{}
	if st.VenueID != nil {
		updates[SharedVenueID] = st.VenueID.String()
	}
	if st.VenueName != nil {
		updates[SharedVenueName] = *st.VenueName
	}
	if st.LocationID != nil {
		updates[SharedLocationID] = st.LocationID.String()
	}
	if st.Date != nil {
		updates[SharedDate] = *st.Date
	}
	if st.Time != nil {
		updates[SharedTime] = *st.Time
	}
	if st.Players != nil {
		updates[SharedPlayers] = *st.Players
	}
	return updates
}

// adoptShared fills empty slots from the cross-flow shared context.
func (st *BookingState) adoptShared(shared SharedContext) {
	if st.VenueID == nil {
		if raw, ok := shared.GetString(SharedVenueID); ok {
			if id, err := uuid.Parse(raw); err == nil {
				st.VenueID = &id
				if name, ok := shared.GetString(SharedVenueName); ok {
					st.VenueName = &name
				}
			}
		}
	}
	if st.LocationID == nil && st.VenueID != nil {
		if raw, ok := shared.GetString(SharedLocationID); ok {
			if id, err := uuid.Parse(raw); err == nil {
				st.LocationID = &id
			}
		}
	}
	if st.Date == nil {
		if v, ok := shared.GetString(SharedDate); ok {
			st.Date = &v
		}
	}
	if st.Time == nil {
		if v, ok := shared.GetString(SharedTime); ok {
			st.Time = &v
		}
	}
	if st.Players == nil {
		if v, ok := shared.GetInt(SharedPlayers); ok {
			st.Players = &v
		}
	}
}
