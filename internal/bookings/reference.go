package bookings

import (
	"crypto/rand"
)

// referenceAlphabet deliberately omits characters that read ambiguously in
// a chat message (0/O, 1/I/L).
const referenceAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const referenceSuffixLength = 6

// maxReferenceAttempts bounds regeneration on a uniqueness collision before
// the create fails terminally.
const maxReferenceAttempts = 5

// NewReference generates a human-readable booking reference: the configured
// prefix plus a random alphanumeric suffix. Uniqueness is enforced by the
// database; callers retry on collision.
func NewReference(prefix string) string {
	buf := make([]byte, referenceSuffixLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform is broken; fall back to
		// a deterministic-looking suffix rather than panic mid-booking.
		for i := range buf {
			buf[i] = referenceAlphabet[i%len(referenceAlphabet)]
		}
		return prefix + string(buf)
	}
	for i, b := range buf {
		buf[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return prefix + string(buf)
}
