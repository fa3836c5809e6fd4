package store_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iamCapel/mopc-reportes/internal/store"
)

func TestIDGenerator_Distinct(t *testing.T) {
	g := &store.IDGenerator{}
	now := time.UnixMilli(1718000000123)

	a, b := g.Next(now), g.Next(now)

	assert.NotEqual(t, a, b)
	assert.Regexp(t, regexp.MustCompile(`^rpt-1718000000123-\d{3}$`), a)
}

func TestNumeroReporte(t *testing.T) {
	ts := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		id   string
		want string
	}{
		{id: "rpt-1718000000123-004", want: "DCR-2025-123004"},
		{id: "42", want: "DCR-2025-000042"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, store.NumeroReporte(tt.id, ts))
	}

	assert.Regexp(t, `^DCR-2025-\d{6}$`, store.NumeroReporte("sin-digitos", ts))
}

func TestTrailingDigits(t *testing.T) {
	assert.Equal(t, "000123", store.TrailingDigits("DCR-2025-000123"))
	assert.Equal(t, "", store.TrailingDigits("abc"))
}

func TestNewDraftID(t *testing.T) {
	id := store.NewDraftID(time.UnixMilli(1700000000000))

	assert.Regexp(t, `^pending_1700000000000_[0-9a-f]{8}$`, id)
}

func TestReportIDForDraft(t *testing.T) {
	ts := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	id := store.ReportIDForDraft("pending_1718000000123_abcdef01")

	assert.Equal(t, id, store.ReportIDForDraft("pending_1718000000123_abcdef01"))
	assert.Regexp(t, `^rpt-1718000000123_abcdef01-\d{6}$`, id)
	assert.NotEqual(t, id, store.ReportIDForDraft("pending_1718000000123_abcdef02"))
	assert.Equal(t, "DCR-2025-"+id[len(id)-6:], store.NumeroReporte(id, ts))
}
