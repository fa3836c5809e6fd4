package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamCapel/mopc-reportes/internal/models"
)

// fixedClock returns a clock that starts at start and can be moved by the test.
func fixedClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func TestDraftStore_SaveComputesProgress(t *testing.T) {
	// Arrange
	ds := NewDraftStore(NewMemoryBackend())
	ctx := context.Background()

	// Act
	_, err := ds.Save(ctx, &models.PendingReport{
		ID:       "d1",
		UserID:   "tec1",
		FormData: models.FormData{Region: "Valdesia"},
	})
	require.NoError(t, err)
	got, err := ds.Get(ctx, "d1")

	// Assert
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 10, got.Progress)
	assert.Equal(t, []string{"region"}, got.FieldsCompleted)
	assert.Equal(t, "tec1", got.UserID)
}

func TestDraftStore_SaveIsIdempotent(t *testing.T) {
	// Arrange
	ds := NewDraftStore(NewMemoryBackend())
	clock, advance := fixedClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	ds.now = clock
	ctx := context.Background()
	draft := &models.PendingReport{
		ID:     "d2",
		UserID: "tec1",
		FormData: models.FormData{
			Region:           "Valdesia",
			Provincia:        "Peravia",
			TipoIntervencion: "Bacheo",
		},
	}

	// Act
	first, err := ds.Save(ctx, draft)
	require.NoError(t, err)
	advance(5 * time.Second)
	second, err := ds.Save(ctx, draft)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, first.Progress, second.Progress)
	assert.Equal(t, first.FieldsCompleted, second.FieldsCompleted)
	assert.True(t, second.Timestamp.Equal(first.Timestamp))
	assert.True(t, second.LastModified.After(first.LastModified))
}

func TestDraftStore_LastModifiedNeverMovesBackwards(t *testing.T) {
	ds := NewDraftStore(NewMemoryBackend())
	clock, advance := fixedClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	ds.now = clock
	ctx := context.Background()

	first, err := ds.Save(ctx, &models.PendingReport{ID: "d3", FormData: models.FormData{Region: "Ozama"}})
	require.NoError(t, err)

	advance(-time.Minute)
	second, err := ds.Save(ctx, &models.PendingReport{ID: "d3", FormData: models.FormData{Region: "Ozama"}})
	require.NoError(t, err)

	assert.False(t, second.LastModified.Before(first.LastModified))
}

func TestDraftStore_SaveRequiresID(t *testing.T) {
	ds := NewDraftStore(NewMemoryBackend())

	_, err := ds.Save(context.Background(), &models.PendingReport{UserID: "tec1"})

	assert.True(t, models.IsValidation(err))
}

func TestDraftStore_GetMissingReturnsNil(t *testing.T) {
	ds := NewDraftStore(NewMemoryBackend())

	got, err := ds.Get(context.Background(), "nope")

	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestDraftStore_ByUserAndCounts(t *testing.T) {
	ds := NewDraftStore(NewMemoryBackend())
	clock, advance := fixedClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	ds.now = clock
	ctx := context.Background()

	for _, d := range []models.PendingReport{
		{ID: "a", UserID: "tec1", FormData: models.FormData{Region: "Yuma"}},
		{ID: "b", UserID: "tec2", FormData: models.FormData{Region: "Yuma"}},
		{ID: "c", UserID: "tec1", FormData: models.FormData{Region: "Yuma"}},
	} {
		_, err := ds.Save(ctx, &d)
		require.NoError(t, err)
		advance(time.Second)
	}

	mine, err := ds.GetByUser(ctx, "tec1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "c", mine[0].ID, "most recently modified first")

	total, err := ds.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	n, err := ds.CountByUser(ctx, "tec2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDraftStore_DeleteAbsentIsNoop(t *testing.T) {
	ds := NewDraftStore(NewMemoryBackend())

	assert.NoError(t, ds.Delete(context.Background(), "ghost"))
}

func TestDraftStore_CleanupOlderThan(t *testing.T) {
	ds := NewDraftStore(NewMemoryBackend())
	clock, advance := fixedClock(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC))
	ds.now = clock
	ctx := context.Background()

	_, err := ds.Save(ctx, &models.PendingReport{ID: "old", UserID: "tec1", FormData: models.FormData{Region: "Yuma"}})
	require.NoError(t, err)
	advance(20 * 24 * time.Hour)
	_, err = ds.Save(ctx, &models.PendingReport{ID: "recent", UserID: "tec1", FormData: models.FormData{Region: "Yuma"}})
	require.NoError(t, err)
	advance(15 * 24 * time.Hour)

	removed, err := ds.CleanupOlderThan(ctx, 30)

	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	gone, _ := ds.Get(ctx, "old")
	assert.Nil(t, gone)
	kept, _ := ds.Get(ctx, "recent")
	assert.NotNil(t, kept)
}

func TestDraftStore_NotificationsFollowDrafts(t *testing.T) {
	ds := NewDraftStore(NewMemoryBackend())
	ctx := context.Background()

	_, err := ds.Save(ctx, &models.PendingReport{
		ID:       "n1",
		UserID:   "tec1",
		UserName: "Ana Pérez",
		FormData: models.FormData{Region: "Valdesia", Provincia: "Peravia", Municipio: "Baní"},
	})
	require.NoError(t, err)
	_, err = ds.Save(ctx, &models.PendingReport{ID: "n2", UserID: "tec2", FormData: models.FormData{Region: "Yuma"}})
	require.NoError(t, err)

	all, err := ds.Notifications(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := ds.NotificationsForUser(ctx, "tec1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "n1", mine[0].DraftID)
	assert.Contains(t, mine[0].Message, "Baní")
	assert.Contains(t, mine[0].Message, "30%")

	require.NoError(t, ds.Delete(ctx, "n1"))
	all, err = ds.Notifications(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "n2", all[0].DraftID)
}
