package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iamCapel/mopc-reportes/internal/models"
)

// DraftStore keeps pending reports keyed by draft id and looked up by owner.
//
// Every successful write rebuilds the notifications projection (one entry per
// remaining draft). The projection is a cache of the draft set and can be
// rebuilt at any time.
type DraftStore struct {
	backend Backend
	now     func() time.Time

	mu            sync.RWMutex
	notifications []models.Notification
	built         bool
}

// NewDraftStore creates a DraftStore over backend.
func NewDraftStore(backend Backend) *DraftStore {
	return &DraftStore{backend: backend, now: time.Now}
}

// Save upserts the draft. lastModified is always stamped by the store and never
// moves backwards; progress and fieldsCompleted are recomputed from formData.
func (s *DraftStore) Save(ctx context.Context, draft *models.PendingReport) (*models.PendingReport, error) {
	if strings.TrimSpace(draft.ID) == "" {
		return nil, models.NewValidationError(models.FieldClassFormulario, "el borrador no tiene id")
	}

	existing, err := s.Get(ctx, draft.ID)
	if err != nil {
		return nil, err
	}

	saved := *draft
	now := s.now()
	if existing != nil {
		saved.Timestamp = existing.Timestamp
		if now.Before(existing.LastModified) {
			now = existing.LastModified
		}
	}
	if saved.Timestamp.IsZero() {
		saved.Timestamp = now
	}
	saved.LastModified = now
	saved.FieldsCompleted = saved.FormData.CompletedFields()
	saved.Progress = saved.FormData.Progress()

	if err := s.backend.Put(ctx, CollectionPendingReports, saved.ID, &saved); err != nil {
		return nil, fmt.Errorf("guardado borrador %s: %w", saved.ID, err)
	}

	s.refreshNotifications(ctx)
	return &saved, nil
}

// Get returns the draft, or nil when it does not exist.
func (s *DraftStore) Get(ctx context.Context, id string) (*models.PendingReport, error) {
	var draft models.PendingReport
	found, err := s.backend.Get(ctx, CollectionPendingReports, id, &draft)
	if err != nil {
		return nil, fmt.Errorf("lectura borrador %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return &draft, nil
}

// GetAll returns every draft regardless of owner, most recently modified first.
func (s *DraftStore) GetAll(ctx context.Context) ([]models.PendingReport, error) {
	var drafts []models.PendingReport
	if err := s.backend.All(ctx, CollectionPendingReports, &drafts); err != nil {
		return nil, fmt.Errorf("lectura borradores: %w", err)
	}
	sortDrafts(drafts)
	return drafts, nil
}

// GetByUser returns the drafts owned by userID.
func (s *DraftStore) GetByUser(ctx context.Context, userID string) ([]models.PendingReport, error) {
	var drafts []models.PendingReport
	if err := s.backend.Query(ctx, CollectionPendingReports, "userId", userID, &drafts); err != nil {
		return nil, fmt.Errorf("lectura borradores de %s: %w", userID, err)
	}
	sortDrafts(drafts)
	return drafts, nil
}

// Delete removes the draft. Unknown ids are ignored.
func (s *DraftStore) Delete(ctx context.Context, id string) error {
	if err := s.backend.Delete(ctx, CollectionPendingReports, id); err != nil {
		return fmt.Errorf("borrado borrador %s: %w", id, err)
	}
	s.refreshNotifications(ctx)
	return nil
}

func (s *DraftStore) Count(ctx context.Context) (int, error) {
	drafts, err := s.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(drafts), nil
}

func (s *DraftStore) CountByUser(ctx context.Context, userID string) (int, error) {
	drafts, err := s.GetByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(drafts), nil
}

// CleanupOlderThan deletes every draft not modified in the last days days and
// returns how many were removed.
func (s *DraftStore) CleanupOlderThan(ctx context.Context, days int) (int, error) {
	drafts, err := s.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().AddDate(0, 0, -days)
	removed := 0
	for _, d := range drafts {
		if !d.LastModified.Before(cutoff) {
			continue
		}
		if err := s.backend.Delete(ctx, CollectionPendingReports, d.ID); err != nil {
			return removed, fmt.Errorf("limpieza borrador %s: %w", d.ID, err)
		}
		removed++
	}

	if removed > 0 {
		zap.S().Infof("drafts: %d borradores con más de %d días eliminados", removed, days)
		s.refreshNotifications(ctx)
	}
	return removed, nil
}

// Notifications returns the projection, rebuilding it if it was never built
// or the last rebuild failed.
func (s *DraftStore) Notifications(ctx context.Context) ([]models.Notification, error) {
	s.mu.RLock()
	built := s.built
	s.mu.RUnlock()
	if !built {
		if err := s.rebuildNotifications(ctx); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out, nil
}

// NotificationsForUser filters the projection by owner.
func (s *DraftStore) NotificationsForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	all, err := s.Notifications(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, n := range all {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

// refreshNotifications runs after a completed write. A failure leaves the
// projection marked stale so the next read rebuilds it.
func (s *DraftStore) refreshNotifications(ctx context.Context) {
	if err := s.rebuildNotifications(ctx); err != nil {
		zap.S().Warnf("drafts: no se pudo reconstruir las notificaciones: %v", err)
		s.mu.Lock()
		s.built = false
		s.mu.Unlock()
	}
}

func (s *DraftStore) rebuildNotifications(ctx context.Context) error {
	drafts, err := s.GetAll(ctx)
	if err != nil {
		return err
	}

	notifications := make([]models.Notification, 0, len(drafts))
	for _, d := range drafts {
		notifications = append(notifications, notificationFor(d))
	}

	s.mu.Lock()
	s.notifications = notifications
	s.built = true
	s.mu.Unlock()
	return nil
}

func notificationFor(d models.PendingReport) models.Notification {
	place := d.FormData.Municipio
	if place == "" {
		place = d.FormData.Provincia
	}
	msg := fmt.Sprintf("%s tiene un reporte pendiente (%d%% completado)", d.UserName, d.Progress)
	if place != "" {
		msg = fmt.Sprintf("%s tiene un reporte pendiente en %s (%d%% completado)", d.UserName, place, d.Progress)
	}
	return models.Notification{
		ID:           d.ID,
		DraftID:      d.ID,
		UserID:       d.UserID,
		UserName:     d.UserName,
		Progress:     d.Progress,
		Message:      msg,
		LastModified: d.LastModified,
	}
}

func sortDrafts(drafts []models.PendingReport) {
	sort.SliceStable(drafts, func(i, j int) bool {
		return drafts[i].LastModified.After(drafts[j].LastModified)
	})
}
