package formsession

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/iamCapel/mopc-reportes/internal/models"
)

// ErrSessionNotFound is returned for unknown or expired sessions.
var ErrSessionNotFound = errors.New("sesión de formulario no encontrada")

// DraftService is the slice of the report controller a session needs.
type DraftService interface {
	SaveDraft(ctx context.Context, actor *models.User, draft models.PendingReport) models.Result[*models.PendingReport]
	GetDraft(ctx context.Context, actor *models.User, id string) models.Result[*models.PendingReport]
}

type entry struct {
	session *Session
	owner   string
}

// Manager keeps the open sessions. Sessions idle for longer than the TTL are
// evicted and closed without saving.
type Manager struct {
	drafts   DraftService
	delay    time.Duration
	sessions *cache.Cache
	mu       sync.Mutex
}

func NewManager(drafts DraftService, autosaveDelay, ttl time.Duration) *Manager {
	m := &Manager{
		drafts:   drafts,
		delay:    autosaveDelay,
		sessions: cache.New(ttl, ttl/2),
	}
	m.sessions.OnEvicted(func(id string, v interface{}) {
		if e, ok := v.(*entry); ok {
			zap.S().Debugf("formsession: cerrando sesión %s", id)
			e.session.Close()
		}
	})
	return m
}

// Open starts a session for actor. With a draftID the session resumes that
// draft.
func (m *Manager) Open(ctx context.Context, actor *models.User, draftID string) (*Session, error) {
	var draft *models.PendingReport
	if draftID != "" {
		res := m.drafts.GetDraft(ctx, actor, draftID)
		if !res.OK {
			return nil, resultError(res.Code, res.Error)
		}
		draft = res.Data
	}

	s := NewSession(m.delay, m.saveFor(actor))
	if draft != nil {
		if err := s.Load(draft); err != nil {
			s.Close()
			return nil, err
		}
	}

	m.sessions.SetDefault(s.ID(), &entry{session: s, owner: actor.Username})
	return s, nil
}

// Get returns the actor's session and extends its lifetime.
func (m *Manager) Get(actor *models.User, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	e := v.(*entry)
	if e.owner != actor.Username {
		return nil, ErrSessionNotFound
	}
	m.sessions.SetDefault(id, e)
	return e.session, nil
}

// Close ends the actor's session without saving.
func (m *Manager) Close(actor *models.User, id string) error {
	if _, err := m.Get(actor, id); err != nil {
		return err
	}
	m.sessions.Delete(id)
	return nil
}

// Count is the number of open sessions.
func (m *Manager) Count() int {
	return m.sessions.ItemCount()
}

// Shutdown flushes pending changes of every session and closes them.
func (m *Manager) Shutdown(ctx context.Context) {
	for id, item := range m.sessions.Items() {
		e := item.Object.(*entry)
		if e.session.Snapshot().Dirty {
			if _, err := e.session.Flush(ctx); err != nil {
				zap.S().Warnf("formsession: no se pudo guardar la sesión %s al apagar: %v", id, err)
			}
		}
		m.sessions.Delete(id)
	}
}

func (m *Manager) saveFor(actor *models.User) SaveFunc {
	return func(ctx context.Context, draft models.PendingReport) (*models.PendingReport, error) {
		res := m.drafts.SaveDraft(ctx, actor, draft)
		if !res.OK {
			return nil, resultError(res.Code, res.Error)
		}
		return res.Data, nil
	}
}

// ResultError carries a failed controller result through an error return.
type ResultError struct {
	Code    models.ErrorCode
	Message string
}

func (e *ResultError) Error() string { return e.Message }

func resultError(code models.ErrorCode, msg string) error {
	return &ResultError{Code: code, Message: msg}
}
