package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// CertificateScheme describes the canonical certificate ID format: a fixed
// literal prefix followed by exactly Digits decimal digits, zero-padded.
// Historical deployments used other prefixes and widths; those values are
// tolerated as opaque legacy input (Parse reports them as not matching) but
// are never produced by new allocations.
type CertificateScheme struct {
	Prefix string
	Digits int
}

// DefaultScheme matches the certificates issued by the current deployment.
var DefaultScheme = CertificateScheme{Prefix: "BBCCQ20", Digits: 2}

// Format renders a sequence number as a canonical certificate ID.
func (s CertificateScheme) Format(n int) string {
	return fmt.Sprintf("%s%0*d", s.Prefix, s.Digits, n)
}

// Matches reports whether candidate is exactly prefix + Digits decimal
// digits, anchored at both ends.
func (s CertificateScheme) Matches(candidate string) bool {
	_, ok := s.Parse(candidate)
	return ok
}

// Parse extracts the numeric suffix of a canonical certificate ID. It
// returns false for anything that does not match the scheme exactly, which
// lets callers skip legacy or malformed stored values without failing.
func (s CertificateScheme) Parse(candidate string) (int, bool) {
	if !strings.HasPrefix(candidate, s.Prefix) {
		return 0, false
	}
	suffix := candidate[len(s.Prefix):]
	if len(suffix) != s.Digits {
		return 0, false
	}
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Capacity returns the largest sequence number the fixed suffix width can
// hold. Allocation past this point must fail loudly, never wrap around.
func (s CertificateScheme) Capacity() int {
	capacity := 1
	for i := 0; i < s.Digits; i++ {
		capacity *= 10
	}
	return capacity - 1
}
