// Package formsession runs the server side of the report form: it holds the
// form while it is being filled in and autosaves it as a draft after the user
// stops typing.
package formsession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/iamCapel/mopc-reportes/internal/metrics"
	"github.com/iamCapel/mopc-reportes/internal/models"
)

// Session states.
const (
	StateIdle    = "idle"
	StateEditing = "editing"
	StateLoading = "loading"
	StateClosed  = "closed"
)

// Session events.
const (
	EventEdit   = "edit"
	EventLoad   = "load"
	EventLoaded = "loaded"
	EventClose  = "close"
)

// saveTimeout bounds a single draft write.
const saveTimeout = 15 * time.Second

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("la sesión del formulario está cerrada")
	// ErrLoading is returned by Flush while a draft is being loaded.
	ErrLoading = errors.New("el formulario se está cargando")
	// ErrDraftGone is returned once the session's draft was promoted or
	// cancelled elsewhere. The session stops saving.
	ErrDraftGone = errors.New("el borrador ya no existe")
)

// SaveFunc persists the draft and returns what was stored.
type SaveFunc func(ctx context.Context, draft models.PendingReport) (*models.PendingReport, error)

// Session debounces form changes into draft saves. A single worker goroutine
// performs the saves, so at most one is in flight; a trigger arriving while a
// save runs is coalesced and handled after it.
type Session struct {
	id      string
	delay   time.Duration
	save    SaveFunc
	machine *fsm.FSM
	logger  *zap.SugaredLogger

	mu           sync.Mutex
	form         models.FormData
	draftID      string
	version      uint64
	savedVersion uint64
	timer        *time.Timer
	lastSaved    *models.PendingReport
	lastErr      error
	saves        int
	gone         bool

	saveMu    sync.Mutex
	trigger   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID          string          `json:"id"`
	State       string          `json:"state"`
	DraftID     string          `json:"draftId,omitempty"`
	FormData    models.FormData `json:"formData"`
	Progress    int             `json:"progress"`
	Dirty       bool            `json:"dirty"`
	Saves       int             `json:"saves"`
	LastSavedAt *time.Time      `json:"lastSavedAt,omitempty"`
	LastError   string          `json:"lastError,omitempty"`
}

// NewSession starts a session and its save worker. Close must be called to
// stop the worker.
func NewSession(delay time.Duration, save SaveFunc) *Session {
	s := &Session{
		id:      uuid.NewString(),
		delay:   delay,
		save:    save,
		trigger: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	s.logger = zap.S().With("session", s.id)

	s.machine = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: EventEdit, Src: []string{StateIdle}, Dst: StateEditing},
			{Name: EventLoad, Src: []string{StateIdle, StateEditing}, Dst: StateLoading},
			{Name: EventLoaded, Src: []string{StateLoading}, Dst: StateEditing},
			{Name: EventClose, Src: []string{StateIdle, StateEditing, StateLoading}, Dst: StateClosed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.logger.Debugf("formulario %s -> %s", e.Src, e.Dst)
			},
		},
	)

	s.wg.Add(1)
	go s.run()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() string { return s.machine.Current() }

// Update replaces the form contents. Outside a load it reschedules the
// autosave; during a load it only records the values.
func (s *Session) Update(form models.FormData) error {
	switch s.machine.Current() {
	case StateClosed:
		return ErrClosed
	case StateIdle:
		if err := s.event(EventEdit); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.form = form
	s.version++
	if s.machine.Current() == StateLoading {
		return nil
	}
	s.scheduleLocked()
	return nil
}

// BeginLoad suppresses autosave until EndLoad and drops any pending save.
func (s *Session) BeginLoad() error {
	if s.machine.Current() == StateClosed {
		return ErrClosed
	}
	if err := s.event(EventLoad); err != nil {
		return err
	}
	s.mu.Lock()
	s.stopTimerLocked()
	s.mu.Unlock()
	return nil
}

// EndLoad resumes editing. Values set during the load count as saved.
func (s *Session) EndLoad() error {
	if err := s.event(EventLoaded); err != nil {
		return err
	}
	s.mu.Lock()
	s.savedVersion = s.version
	s.mu.Unlock()
	return nil
}

// Load fills the session from an existing draft without saving it back.
func (s *Session) Load(draft *models.PendingReport) error {
	if err := s.BeginLoad(); err != nil {
		return err
	}
	if err := s.Update(draft.FormData); err != nil {
		return err
	}
	s.mu.Lock()
	s.draftID = draft.ID
	d := *draft
	s.lastSaved = &d
	s.mu.Unlock()
	return s.EndLoad()
}

// Flush cancels the pending timer and saves immediately, after any save
// already in flight. It refuses while a draft is loading.
func (s *Session) Flush(ctx context.Context) (*models.PendingReport, error) {
	switch s.machine.Current() {
	case StateClosed:
		return nil, ErrClosed
	case StateLoading:
		return nil, ErrLoading
	}
	s.mu.Lock()
	s.stopTimerLocked()
	s.mu.Unlock()

	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaved, nil
}

// Close tears the session down. The pending save, if any, is dropped and
// the draft stays as last saved. Close waits for an in-flight save.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if err := s.event(EventClose); err != nil {
			s.logger.Warnf("cierre del formulario: %v", err)
		}
		s.mu.Lock()
		s.stopTimerLocked()
		s.mu.Unlock()

		close(s.done)
	})
	s.wg.Wait()
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:       s.id,
		State:    s.machine.Current(),
		DraftID:  s.draftID,
		FormData: s.form,
		Progress: s.form.Progress(),
		Dirty:    s.version != s.savedVersion,
		Saves:    s.saves,
	}
	if s.lastSaved != nil {
		t := s.lastSaved.LastModified
		snap.LastSavedAt = &t
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	return snap
}

func (s *Session) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.trigger:
			s.autosave()
		}
	}
}

// autosave runs on the worker. It is a no-op while loading or closing.
func (s *Session) autosave() {
	if state := s.machine.Current(); state == StateLoading || state == StateClosed {
		metrics.Autosave(metrics.OutcomeSkipped)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.persist(ctx); err != nil {
		s.logger.Warnf("autoguardado fallido: %v", err)
	}
}

// persist writes the current form if it changed since the last save. A form
// that has no draft yet is only saved once it is meaningful.
func (s *Session) persist(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	form, version, draftID := s.form, s.version, s.draftID
	unchanged, gone := version == s.savedVersion, s.gone
	s.mu.Unlock()

	if gone {
		metrics.Autosave(metrics.OutcomeSkipped)
		return ErrDraftGone
	}
	if unchanged || (draftID == "" && !form.IsMeaningful()) {
		metrics.Autosave(metrics.OutcomeSkipped)
		return nil
	}

	saved, err := s.save(ctx, models.PendingReport{ID: draftID, FormData: form})
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		var resErr *ResultError
		if draftID != "" && errors.As(err, &resErr) && resErr.Code == models.CodeNotFound {
			s.gone = true
			s.stopTimerLocked()
			err = ErrDraftGone
		}
		s.lastErr = err
		metrics.Autosave(metrics.OutcomeFailed)
		return fmt.Errorf("guardado del borrador: %w", err)
	}
	s.lastErr = nil
	s.lastSaved = saved
	s.draftID = saved.ID
	s.savedVersion = version
	s.saves++
	metrics.Autosave(metrics.OutcomeSaved)
	return nil
}

func (s *Session) scheduleLocked() {
	s.stopTimerLocked()
	s.timer = time.AfterFunc(s.delay, func() {
		select {
		case s.trigger <- struct{}{}:
		default:
		}
	})
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) event(name string) error {
	err := s.machine.Event(context.Background(), name)
	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		return fmt.Errorf("transición %s desde %s: %w", name, s.machine.Current(), err)
	}
	return nil
}
