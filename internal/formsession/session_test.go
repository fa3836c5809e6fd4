package formsession_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/iamCapel/mopc-reportes/internal/formsession"
	"github.com/iamCapel/mopc-reportes/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
}

const delay = 40 * time.Millisecond

// recorder is a SaveFunc that counts calls and concurrent calls.
type recorder struct {
	mu       sync.Mutex
	drafts   []models.PendingReport
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	gate     chan struct{}
	entered  chan struct{}
	fail     error
}

func (r *recorder) save(_ context.Context, d models.PendingReport) (*models.PendingReport, error) {
	r.calls.Add(1)
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		max := r.maxSeen.Load()
		if n <= max || r.maxSeen.CompareAndSwap(max, n) {
			break
		}
	}
	if r.entered != nil {
		r.entered <- struct{}{}
	}
	if r.gate != nil {
		<-r.gate
	}
	if r.fail != nil {
		return nil, r.fail
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == "" {
		d.ID = "pending_test"
	}
	d.LastModified = time.Now()
	r.drafts = append(r.drafts, d)
	return &d, nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.drafts)
}

func form(region string) models.FormData {
	return models.FormData{Region: region}
}

func TestSession_DebounceCollapsesChanges(t *testing.T) {
	// Arrange
	rec := &recorder{}
	s := formsession.NewSession(delay, rec.save)
	defer s.Close()

	// Act
	for _, obs := range []string{"C", "Ca", "Cal", "Call", "Calle"} {
		f := form("Valdesia")
		f.Observaciones = obs
		require.NoError(t, s.Update(f))
		time.Sleep(delay / 4)
	}

	// Assert
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(3 * delay)
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, "Calle", rec.drafts[0].FormData.Observaciones)
	assert.Equal(t, formsession.StateEditing, s.State())
	assert.False(t, s.Snapshot().Dirty)
}

func TestSession_SavesAreSerialized(t *testing.T) {
	// Arrange
	rec := &recorder{gate: make(chan struct{}), entered: make(chan struct{}, 4)}
	s := formsession.NewSession(delay, rec.save)
	defer s.Close()

	// Act: first save starts and blocks.
	require.NoError(t, s.Update(form("Valdesia")))
	<-rec.entered

	// Two more change bursts fire while the first save is still running.
	require.NoError(t, s.Update(form("Yuma")))
	time.Sleep(2 * delay)
	require.NoError(t, s.Update(form("Ozama")))
	time.Sleep(2 * delay)

	// Assert: nothing overlapped and the queued save runs after the first.
	assert.Equal(t, int32(1), rec.inFlight.Load())
	rec.gate <- struct{}{}
	<-rec.entered
	rec.gate <- struct{}{}

	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), rec.maxSeen.Load())
	assert.Equal(t, "Ozama", rec.drafts[1].FormData.Region)
	assert.Equal(t, "pending_test", rec.drafts[1].ID, "the second save reuses the draft id")
}

func TestSession_LoadDoesNotAutosave(t *testing.T) {
	rec := &recorder{}
	s := formsession.NewSession(delay, rec.save)
	defer s.Close()

	require.NoError(t, s.Load(&models.PendingReport{ID: "pending_old", FormData: form("Enriquillo")}))
	time.Sleep(3 * delay)

	assert.Equal(t, 0, rec.count())
	snap := s.Snapshot()
	assert.Equal(t, "pending_old", snap.DraftID)
	assert.Equal(t, "Enriquillo", snap.FormData.Region)
	assert.False(t, snap.Dirty)
}

func TestSession_ChangesDuringLoadAreSuppressed(t *testing.T) {
	rec := &recorder{}
	s := formsession.NewSession(delay, rec.save)
	defer s.Close()

	require.NoError(t, s.Update(form("Valdesia")))
	require.NoError(t, s.BeginLoad())
	assert.Equal(t, formsession.StateLoading, s.State())
	require.NoError(t, s.Update(form("El Valle")))
	time.Sleep(3 * delay)
	assert.Equal(t, 0, rec.count(), "the pending save is dropped and the load does not schedule one")

	require.NoError(t, s.EndLoad())
	time.Sleep(3 * delay)
	assert.Equal(t, 0, rec.count())

	require.NoError(t, s.Update(form("Yuma")))
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSession_CloseDropsPendingSave(t *testing.T) {
	rec := &recorder{}
	s := formsession.NewSession(delay, rec.save)

	require.NoError(t, s.Update(form("Valdesia")))
	s.Close()
	time.Sleep(3 * delay)

	assert.Equal(t, 0, rec.count())
	assert.Equal(t, formsession.StateClosed, s.State())
	assert.ErrorIs(t, s.Update(form("Yuma")), formsession.ErrClosed)
	_, err := s.Flush(context.Background())
	assert.ErrorIs(t, err, formsession.ErrClosed)
	s.Close()
}

func TestSession_EmptyFormNeverCreatesDraft(t *testing.T) {
	rec := &recorder{}
	s := formsession.NewSession(delay, rec.save)
	defer s.Close()

	require.NoError(t, s.Update(models.FormData{Observaciones: "solo una nota"}))
	time.Sleep(3 * delay)

	assert.Equal(t, 0, rec.count())
}

func TestSession_Flush(t *testing.T) {
	rec := &recorder{}
	s := formsession.NewSession(time.Hour, rec.save)
	defer s.Close()

	require.NoError(t, s.Update(form("Cibao Sur")))
	saved, err := s.Flush(context.Background())

	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "pending_test", saved.ID)
	assert.Equal(t, 1, rec.count())

	_, err = s.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rec.count(), "an unchanged form is not saved again")
}

func TestSession_SaveFailureIsReported(t *testing.T) {
	rec := &recorder{fail: errors.New("sin conexión")}
	s := formsession.NewSession(time.Hour, rec.save)
	defer s.Close()

	require.NoError(t, s.Update(form("Cibao Sur")))
	_, err := s.Flush(context.Background())

	assert.Error(t, err)
	snap := s.Snapshot()
	assert.True(t, snap.Dirty)
	assert.Equal(t, "sin conexión", snap.LastError)
}

func TestSession_FlushIsRefusedWhileLoading(t *testing.T) {
	rec := &recorder{}
	s := formsession.NewSession(time.Hour, rec.save)
	defer s.Close()

	require.NoError(t, s.BeginLoad())
	require.NoError(t, s.Update(form("Ozama")))
	_, err := s.Flush(context.Background())

	assert.ErrorIs(t, err, formsession.ErrLoading)
	assert.Zero(t, rec.calls.Load())
	require.NoError(t, s.EndLoad())
	assert.False(t, s.Snapshot().Dirty)
}

func TestSession_ConcurrentCloseIsSafe(t *testing.T) {
	rec := &recorder{}
	s := formsession.NewSession(delay, rec.save)
	require.NoError(t, s.Update(form("Valdesia")))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()

	assert.Equal(t, formsession.StateClosed, s.State())
	assert.Zero(t, rec.count())
}

func TestSession_StopsSavingOnceDraftIsGone(t *testing.T) {
	rec := &recorder{fail: &formsession.ResultError{Code: models.CodeNotFound, Message: "no existe"}}
	s := formsession.NewSession(time.Hour, rec.save)
	defer s.Close()
	require.NoError(t, s.Load(&models.PendingReport{ID: "pending_old", FormData: form("Enriquillo")}))

	require.NoError(t, s.Update(form("Higuamo")))
	_, err := s.Flush(context.Background())
	assert.ErrorIs(t, err, formsession.ErrDraftGone)

	require.NoError(t, s.Update(form("Yuma")))
	_, err = s.Flush(context.Background())

	assert.ErrorIs(t, err, formsession.ErrDraftGone)
	assert.Equal(t, int32(1), rec.calls.Load())
	assert.Equal(t, formsession.ErrDraftGone.Error(), s.Snapshot().LastError)
}
