package store

import (
	"fmt"
	"hash/crc32"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// IDGenerator hands out report ids of the form rpt-<unix millis>-<seq>.
// The sequence keeps ids distinct within a millisecond.
type IDGenerator struct {
	seq atomic.Uint32
}

// Next returns a fresh report id.
func (g *IDGenerator) Next(now time.Time) string {
	n := g.seq.Add(1) % 1000
	return fmt.Sprintf("rpt-%d-%03d", now.UnixMilli(), n)
}

// NumeroReporte derives the human-facing number from the last six digits of the id.
// It is not unique beyond what the id scheme guarantees.
func NumeroReporte(id string, t time.Time) string {
	digits := TrailingDigits(strings.ReplaceAll(id, "-", ""))
	switch {
	case len(digits) >= 6:
		digits = digits[len(digits)-6:]
	case digits != "":
		digits = strings.Repeat("0", 6-len(digits)) + digits
	default:
		digits = fmt.Sprintf("%06d", crc32.ChecksumIEEE([]byte(id))%1000000)
	}
	return fmt.Sprintf("DCR-%d-%s", t.Year(), digits)
}

// TrailingDigits returns the run of ASCII digits at the end of s.
func TrailingDigits(s string) string {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	return s[i:]
}

// ReportIDForDraft is the id of the report a draft is promoted into. It is
// stable for the draft, so a retried promotion lands on the same record and
// number. The trailing six digits are a checksum of the draft id.
func ReportIDForDraft(draftID string) string {
	suffix := strings.TrimPrefix(draftID, "pending_")
	return fmt.Sprintf("rpt-%s-%06d", suffix, crc32.ChecksumIEEE([]byte(draftID))%1000000)
}

// NewDraftID returns a draft id derived from the creation time and a random suffix.
func NewDraftID(now time.Time) string {
	return fmt.Sprintf("pending_%d_%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
