// Package repository fronts the stores with a dual-write: records are
// resolved and staged in a local in-memory tier first, then committed to the
// remote system of record. The remote store is authoritative for reads; the
// staged tier may run ahead of it but is never rolled back.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/iamCapel/mopc-reportes/internal/geo"
	"github.com/iamCapel/mopc-reportes/internal/metrics"
	"github.com/iamCapel/mopc-reportes/internal/models"
	"github.com/iamCapel/mopc-reportes/internal/store"
)

const (
	reportPrefix = "report:"
	draftPrefix  = "draft:"
)

// Repository is the single persistence entry point of the controllers.
type Repository struct {
	backend  store.Backend
	geo      geo.Lookup
	drafts   *store.DraftStore
	reports  *store.ReportStore
	users    *store.UserStore
	accounts *store.AccountStore

	staged  *cache.Cache
	retired *cache.Cache
	ids     *store.IDGenerator
	now    func() time.Time
}

// New builds the stores over backend. Staged copies expire after stageTTL.
func New(backend store.Backend, lookup geo.Lookup, stageTTL time.Duration) *Repository {
	return &Repository{
		backend:  backend,
		geo:      lookup,
		drafts:   store.NewDraftStore(backend),
		reports:  store.NewReportStore(backend, lookup),
		users:    store.NewUserStore(backend),
		accounts: store.NewAccountStore(backend),
		staged:   cache.New(stageTTL, stageTTL/2),
		retired:  cache.New(stageTTL, stageTTL/2),
		ids:      &store.IDGenerator{},
		now:      time.Now,
	}
}

// Ping checks the remote store.
func (r *Repository) Ping(ctx context.Context) error {
	return r.backend.Ping(ctx)
}

// Accounts exposes the credential store to the local auth provider.
func (r *Repository) Accounts() *store.AccountStore {
	return r.accounts
}

// Geo returns the lookup tables used for hierarchy validation.
func (r *Repository) Geo() geo.Lookup {
	return r.geo
}

// --- reports ---

// CreateReport resolves id and numeroReporte locally, stages the resolved
// record and commits it remotely. A retry carrying the id of a failed attempt
// reuses the staged numeroReporte. When the remote commit fails the error is a
// *models.RemoteWriteError and the staged copy stays.
func (r *Repository) CreateReport(ctx context.Context, partial *models.Report) (*models.Report, error) {
	if err := store.ValidateNewReport(partial, r.geo); err != nil {
		return nil, err
	}

	resolved := *partial
	if resolved.Timestamp.IsZero() {
		resolved.Timestamp = resolved.FechaCreacion
	}
	if resolved.FechaCreacion.IsZero() {
		resolved.FechaCreacion = resolved.Timestamp
	}
	if resolved.ID == "" {
		resolved.ID = r.ids.Next(r.now())
	} else if prev, ok := r.stagedReport(resolved.ID); ok && resolved.NumeroReporte == "" {
		resolved.NumeroReporte = prev.NumeroReporte
	}
	if resolved.NumeroReporte == "" {
		resolved.NumeroReporte = store.NumeroReporte(resolved.ID, resolved.FechaCreacion)
	}
	if resolved.Estado == "" {
		resolved.Estado = models.EstadoCompletado
	}
	r.staged.SetDefault(reportPrefix+resolved.ID, resolved)

	created, err := r.reports.Create(ctx, &resolved)
	if err != nil {
		if models.IsValidation(err) {
			return nil, err
		}
		metrics.RemoteWriteFailed("createReport")
		zap.S().Warnf("repository: reporte %s (%s) quedó solo en el área local: %v", resolved.ID, resolved.NumeroReporte, err)
		return nil, &models.RemoteWriteError{Op: "createReport", ID: resolved.ID, Err: err}
	}
	return created, nil
}

// GetReport prefers the remote store and falls back to the staged copy on an
// I/O error.
func (r *Repository) GetReport(ctx context.Context, id string) (*models.Report, error) {
	rep, err := r.reports.GetByID(ctx, id)
	if err == nil {
		return rep, nil
	}
	if staged, ok := r.stagedReport(id); ok {
		zap.S().Warnf("repository: lectura remota de %s falló, usando copia local: %v", id, err)
		return &staged, nil
	}
	return nil, err
}

// GetReportByNumber runs the two-phase lookup on the remote store. On an I/O
// error only exact matches among staged reports are served.
func (r *Repository) GetReportByNumber(ctx context.Context, numero string) (*models.Report, error) {
	rep, err := r.reports.GetByNumber(ctx, numero)
	if err == nil {
		return rep, nil
	}
	for _, item := range r.staged.Items() {
		if staged, ok := item.Object.(models.Report); ok && (staged.NumeroReporte == numero || staged.ID == numero) {
			zap.S().Warnf("repository: búsqueda remota de %s falló, usando copia local: %v", numero, err)
			return &staged, nil
		}
	}
	return nil, err
}

func (r *Repository) SearchReports(ctx context.Context, f models.ReportFilters) ([]models.Report, error) {
	return r.reports.Search(ctx, f)
}

func (r *Repository) AllReports(ctx context.Context) ([]models.Report, error) {
	return r.reports.GetAll(ctx)
}

// UpdateReport updates the remote record and refreshes any staged copy.
func (r *Repository) UpdateReport(ctx context.Context, id string, patch models.ReportPatch) (*models.Report, error) {
	updated, err := r.reports.Update(ctx, id, patch)
	if err != nil || updated == nil {
		return updated, err
	}
	if _, ok := r.stagedReport(id); ok {
		r.staged.SetDefault(reportPrefix+id, *updated)
	}
	return updated, nil
}

// DeleteReport removes the report from both tiers.
func (r *Repository) DeleteReport(ctx context.Context, id string) error {
	r.staged.Delete(reportPrefix + id)
	return r.reports.Delete(ctx, id)
}

func (r *Repository) CountReportsByUser(ctx context.Context, usuarioID string) (int, error) {
	return r.reports.CountByUser(ctx, usuarioID)
}

func (r *Repository) stagedReport(id string) (models.Report, bool) {
	v, ok := r.staged.Get(reportPrefix + id)
	if !ok {
		return models.Report{}, false
	}
	rep, ok := v.(models.Report)
	return rep, ok
}

// --- drafts ---

// SaveDraft stages the draft then upserts it remotely.
func (r *Repository) SaveDraft(ctx context.Context, draft *models.PendingReport) (*models.PendingReport, error) {
	if strings.TrimSpace(draft.ID) == "" {
		return nil, models.NewValidationError(models.FieldClassFormulario, "el borrador no tiene id")
	}

	staged := *draft
	staged.LastModified = r.now()
	staged.FieldsCompleted = staged.FormData.CompletedFields()
	staged.Progress = staged.FormData.Progress()
	r.staged.SetDefault(draftPrefix+draft.ID, staged)

	saved, err := r.drafts.Save(ctx, draft)
	if err != nil {
		if models.IsValidation(err) {
			return nil, err
		}
		metrics.RemoteWriteFailed("saveDraft")
		zap.S().Warnf("repository: borrador %s quedó solo en el área local: %v", draft.ID, err)
		return nil, &models.RemoteWriteError{Op: "saveDraft", ID: draft.ID, Err: err}
	}
	metrics.DraftSaved()
	return saved, nil
}

// GetDraft prefers the remote store and falls back to the staged copy on an
// I/O error.
func (r *Repository) GetDraft(ctx context.Context, id string) (*models.PendingReport, error) {
	d, err := r.drafts.Get(ctx, id)
	if err == nil {
		return d, nil
	}
	if v, ok := r.staged.Get(draftPrefix + id); ok {
		if staged, ok := v.(models.PendingReport); ok {
			zap.S().Warnf("repository: lectura remota del borrador %s falló, usando copia local: %v", id, err)
			return &staged, nil
		}
	}
	return nil, err
}

func (r *Repository) ListDrafts(ctx context.Context) ([]models.PendingReport, error) {
	return r.drafts.GetAll(ctx)
}

func (r *Repository) ListDraftsByUser(ctx context.Context, userID string) ([]models.PendingReport, error) {
	return r.drafts.GetByUser(ctx, userID)
}

// DeleteDraft removes the draft from both tiers and remembers the id as
// retired.
func (r *Repository) DeleteDraft(ctx context.Context, id string) error {
	r.staged.Delete(draftPrefix + id)
	if err := r.drafts.Delete(ctx, id); err != nil {
		return err
	}
	r.retired.SetDefault(id, r.now())
	return nil
}

// DraftRetired reports whether the draft was deleted by this process within
// the staging TTL. A save carrying a retired id must not bring it back.
func (r *Repository) DraftRetired(id string) bool {
	_, ok := r.retired.Get(id)
	return ok
}

func (r *Repository) CountDraftsByUser(ctx context.Context, userID string) (int, error) {
	return r.drafts.CountByUser(ctx, userID)
}

func (r *Repository) CountDrafts(ctx context.Context) (int, error) {
	return r.drafts.Count(ctx)
}

func (r *Repository) CleanupDrafts(ctx context.Context, days int) (int, error) {
	return r.drafts.CleanupOlderThan(ctx, days)
}

func (r *Repository) Notifications(ctx context.Context) ([]models.Notification, error) {
	return r.drafts.Notifications(ctx)
}

func (r *Repository) NotificationsForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	return r.drafts.NotificationsForUser(ctx, userID)
}

// --- users ---

func (r *Repository) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	return r.users.Create(ctx, u)
}

func (r *Repository) GetUser(ctx context.Context, id string) (*models.User, error) {
	return r.users.GetByID(ctx, id)
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.users.GetByUsername(ctx, username)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.users.GetByEmail(ctx, email)
}

func (r *Repository) ListUsers(ctx context.Context) ([]models.User, error) {
	return r.users.GetAll(ctx)
}

func (r *Repository) UpdateUser(ctx context.Context, u *models.User) (*models.User, error) {
	return r.users.Update(ctx, u)
}

func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	return r.users.Delete(ctx, id)
}

// --- staging hygiene ---

// StagedCount is the number of records in the local tier.
func (r *Repository) StagedCount() int {
	return r.staged.ItemCount()
}

// PurgeStaged drops staged records that the remote store already holds and
// returns how many were dropped. Records the remote does not have yet are kept.
func (r *Repository) PurgeStaged(ctx context.Context) (int, error) {
	purged := 0
	for key, item := range r.staged.Items() {
		var (
			present bool
			err     error
		)
		switch v := item.Object.(type) {
		case models.Report:
			var rep *models.Report
			rep, err = r.reports.GetByID(ctx, v.ID)
			present = rep != nil
		case models.PendingReport:
			var d *models.PendingReport
			d, err = r.drafts.Get(ctx, v.ID)
			present = d != nil && !d.LastModified.Before(v.LastModified)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return purged, err
			}
			continue
		}
		if present {
			r.staged.Delete(key)
			purged++
		}
	}
	return purged, nil
}
