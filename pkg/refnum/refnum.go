package refnum

import (
	"crypto/rand"
	"fmt"
	"time"
)

// Prefixes for the document families that need human-readable references.
const (
	PrefixInvoice = "INV"
	PrefixBill    = "BILL"
	PrefixJournal = "JE"
)

const suffixLen = 6

// Base32 without the characters that read ambiguously on a printed invoice.
const suffixAlphabet = "ABCDEFGHJKMNPQRSTVWXYZ23456789"

// Generate builds a collision-resistant document number: prefix, a
// microsecond-precision timestamp and a random suffix. Two generators racing
// inside the same microsecond still diverge on the suffix; the unique index on
// the number column is the final arbiter.
func Generate(prefix string, now time.Time) string {
	ts := now.UTC().Format("20060102150405.000000")
	// strip the dot the micro fraction format inserts
	compact := ts[:14] + ts[15:]
	return fmt.Sprintf("%s-%s-%s", prefix, compact, randomSuffix(suffixLen))
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform is broken; fall back to a
		// time-derived suffix rather than panicking mid-billing-run.
		nano := time.Now().UnixNano()
		for i := range buf {
			buf[i] = suffixAlphabet[int(nano>>uint(i*5))%len(suffixAlphabet)]
		}
		return string(buf)
	}
	for i := range buf {
		buf[i] = suffixAlphabet[int(buf[i])%len(suffixAlphabet)]
	}
	return string(buf)
}
