package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iamCapel/mopc-reportes/internal/metrics"
	"github.com/iamCapel/mopc-reportes/internal/models"
	"github.com/iamCapel/mopc-reportes/internal/repository"
	"github.com/iamCapel/mopc-reportes/internal/store"
)

// ReportService enforces the report and draft rules: role scoping, the
// one-shot creation path and draft promotion.
type ReportService struct {
	repo     *repository.Repository
	notifier Notifier
	now      func() time.Time
}

// NewReportService crea el controlador de reportes.
func NewReportService(repo *repository.Repository, notifier Notifier) *ReportService {
	return &ReportService{
		repo:     repo,
		notifier: notifier,
		now:      time.Now,
	}
}

func canWrite(actor *models.User) error {
	if actor == nil || !actor.IsActive {
		return models.ErrForbidden
	}
	if !actor.IsVerified {
		return models.ErrNotVerified
	}
	return nil
}

// canTouch reports whether actor may read or change r.
func canTouch(actor *models.User, r *models.Report) bool {
	return actor.Role.SeesEverything() || actor.Owns(r)
}

// CreateReport is the one-shot path. It never touches the draft store.
func (rs *ReportService) CreateReport(ctx context.Context, actor *models.User, partial models.Report) models.Result[*models.Report] {
	if err := canWrite(actor); err != nil {
		return models.Fail[*models.Report](err)
	}

	partial.ID = strings.TrimSpace(partial.ID)
	partial.NumeroReporte = ""
	partial.CreadoPor = actor.Name
	partial.UsuarioID = actor.Username
	if partial.Timestamp.IsZero() && partial.FechaCreacion.IsZero() {
		if ts, ok := parseFechaReporte(partial.FechaReporte); ok {
			partial.Timestamp = ts
		} else {
			partial.Timestamp = rs.now()
		}
	}
	if partial.Estado == "" {
		partial.Estado = models.EstadoCompletado
	}

	created, err := rs.repo.CreateReport(ctx, &partial)
	if err != nil {
		return models.Fail[*models.Report](err)
	}
	metrics.ReportCreated(metrics.PathDirect)
	rs.notifyCompleted(ctx, created)
	return models.Ok(created)
}

func (rs *ReportService) GetReport(ctx context.Context, actor *models.User, id string) models.Result[*models.Report] {
	r, err := rs.repo.GetReport(ctx, id)
	if err != nil {
		return models.Fail[*models.Report](err)
	}
	if r == nil {
		return models.Fail[*models.Report](models.ErrNotFound)
	}
	if !canTouch(actor, r) {
		return models.Fail[*models.Report](models.ErrForbidden)
	}
	return models.Ok(r)
}

// GetReportByNumber accepts an exact or a partial report number.
func (rs *ReportService) GetReportByNumber(ctx context.Context, actor *models.User, numero string) models.Result[*models.Report] {
	if strings.TrimSpace(numero) == "" {
		return models.Fail[*models.Report](models.NewValidationError(models.FieldClassFormulario, "indique el número de reporte"))
	}
	r, err := rs.repo.GetReportByNumber(ctx, numero)
	if err != nil {
		return models.Fail[*models.Report](err)
	}
	if r == nil {
		return models.Fail[*models.Report](models.ErrNotFound)
	}
	if !canTouch(actor, r) {
		return models.Fail[*models.Report](models.ErrForbidden)
	}
	return models.Ok(r)
}

// SearchReports filters completed reports. A Técnico only ever sees their own.
func (rs *ReportService) SearchReports(ctx context.Context, actor *models.User, f models.ReportFilters) models.Result[[]models.Report] {
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return models.Fail[[]models.Report](models.NewValidationError(models.FieldClassFecha, "la fecha final es anterior a la inicial"))
	}
	reports, err := rs.scopedSearch(ctx, actor, f)
	if err != nil {
		return models.Fail[[]models.Report](err)
	}
	return models.Ok(reports)
}

func (rs *ReportService) scopedSearch(ctx context.Context, actor *models.User, f models.ReportFilters) ([]models.Report, error) {
	reports, err := rs.repo.SearchReports(ctx, f)
	if err != nil {
		return nil, err
	}
	if actor.Role.SeesEverything() {
		return reports, nil
	}
	own := make([]models.Report, 0, len(reports))
	for i := range reports {
		if actor.Owns(&reports[i]) {
			own = append(own, reports[i])
		}
	}
	return own, nil
}

func (rs *ReportService) UpdateReport(ctx context.Context, actor *models.User, id string, patch models.ReportPatch) models.Result[*models.Report] {
	if err := canWrite(actor); err != nil {
		return models.Fail[*models.Report](err)
	}
	current, err := rs.repo.GetReport(ctx, id)
	if err != nil {
		return models.Fail[*models.Report](err)
	}
	if current == nil {
		return models.Fail[*models.Report](models.ErrNotFound)
	}
	if !canTouch(actor, current) {
		return models.Fail[*models.Report](models.ErrForbidden)
	}

	patch.ModificadoPor = actor.Name
	updated, err := rs.repo.UpdateReport(ctx, id, patch)
	if err != nil {
		return models.Fail[*models.Report](err)
	}
	if updated == nil {
		return models.Fail[*models.Report](models.ErrNotFound)
	}
	return models.Ok(updated)
}

// DeleteReport is open to administrators and to the Técnico who wrote the report.
func (rs *ReportService) DeleteReport(ctx context.Context, actor *models.User, id string) models.Result[bool] {
	if err := canWrite(actor); err != nil {
		return models.Fail[bool](err)
	}
	current, err := rs.repo.GetReport(ctx, id)
	if err != nil {
		return models.Fail[bool](err)
	}
	if current == nil {
		return models.Fail[bool](models.ErrNotFound)
	}
	if actor.Role == models.RoleSupervisor || (actor.Role == models.RoleTecnico && !actor.Owns(current)) {
		return models.Fail[bool](models.ErrForbidden)
	}
	if err := rs.repo.DeleteReport(ctx, id); err != nil {
		return models.Fail[bool](err)
	}
	zap.S().Infof("reporte %s eliminado por %s", current.NumeroReporte, actor.Username)
	return models.Ok(true)
}

// --- drafts ---

// SaveDraft upserts the actor's draft. A draft is only created once its form
// holds a meaningful value; later saves are accepted as they come. A draft
// that was promoted or cancelled stays gone: saving its id again is NotFound.
func (rs *ReportService) SaveDraft(ctx context.Context, actor *models.User, draft models.PendingReport) models.Result[*models.PendingReport] {
	if err := canWrite(actor); err != nil {
		return models.Fail[*models.PendingReport](err)
	}

	draft.ID = strings.TrimSpace(draft.ID)
	var existing *models.PendingReport
	if draft.ID != "" {
		var err error
		if existing, err = rs.repo.GetDraft(ctx, draft.ID); err != nil {
			return models.Fail[*models.PendingReport](err)
		}
	}

	if existing != nil {
		if existing.UserID != actor.Username && actor.Role != models.RoleAdministrador {
			return models.Fail[*models.PendingReport](models.ErrForbidden)
		}
		draft.UserID, draft.UserName = existing.UserID, existing.UserName
	} else {
		if draft.ID != "" && rs.repo.DraftRetired(draft.ID) {
			return models.Fail[*models.PendingReport](models.ErrNotFound)
		}
		if !draft.FormData.IsMeaningful() {
			return models.Fail[*models.PendingReport](models.NewValidationError(models.FieldClassFormulario, "el formulario está vacío"))
		}
		if draft.ID == "" {
			draft.ID = store.NewDraftID(rs.now())
		}
		draft.UserID, draft.UserName = actor.Username, actor.Name
	}

	saved, err := rs.repo.SaveDraft(ctx, &draft)
	if err != nil {
		return models.Fail[*models.PendingReport](err)
	}
	return models.Ok(saved)
}

func (rs *ReportService) GetDraft(ctx context.Context, actor *models.User, id string) models.Result[*models.PendingReport] {
	d, err := rs.ownedDraft(ctx, actor, id)
	if err != nil {
		return models.Fail[*models.PendingReport](err)
	}
	return models.Ok(d)
}

// ListDrafts returns the actor's drafts, or every draft for supervisors and
// administrators.
func (rs *ReportService) ListDrafts(ctx context.Context, actor *models.User) models.Result[[]models.PendingReport] {
	var (
		drafts []models.PendingReport
		err    error
	)
	if actor.Role.SeesEverything() {
		drafts, err = rs.repo.ListDrafts(ctx)
	} else {
		drafts, err = rs.repo.ListDraftsByUser(ctx, actor.Username)
	}
	if err != nil {
		return models.Fail[[]models.PendingReport](err)
	}
	return models.Ok(drafts)
}

// CancelDraft discards a draft without producing a report.
func (rs *ReportService) CancelDraft(ctx context.Context, actor *models.User, id string) models.Result[bool] {
	if _, err := rs.ownedDraft(ctx, actor, id); err != nil {
		return models.Fail[bool](err)
	}
	if err := rs.repo.DeleteDraft(ctx, id); err != nil {
		return models.Fail[bool](err)
	}
	metrics.DraftsDeleted(metrics.ReasonCancel, 1)
	return models.Ok(true)
}

// CompletePendingReport promotes a draft into a completed report. The draft
// is deleted only after the report is committed; on any failure it stays as
// it was.
func (rs *ReportService) CompletePendingReport(ctx context.Context, actor *models.User, draftID string, extra models.ReportPatch) models.Result[*models.Report] {
	if err := canWrite(actor); err != nil {
		return models.Fail[*models.Report](err)
	}
	draft, err := rs.ownedDraft(ctx, actor, draftID)
	if err != nil {
		return models.Fail[*models.Report](err)
	}

	report := reportFromDraft(draft)
	report.ID = store.ReportIDForDraft(draft.ID)
	applyExtra(&report, extra)
	report.Estado = models.EstadoCompletado

	created, err := rs.repo.CreateReport(ctx, &report)
	if err != nil {
		zap.S().Warnf("promoción del borrador %s fallida, el borrador se conserva: %v", draftID, err)
		return models.Fail[*models.Report](err)
	}
	metrics.ReportCreated(metrics.PathPromotion)

	if err := rs.repo.DeleteDraft(ctx, draftID); err != nil {
		zap.S().Warnf("reporte %s creado pero el borrador %s no se pudo eliminar: %v", created.NumeroReporte, draftID, err)
	} else {
		metrics.DraftsDeleted(metrics.ReasonPromotion, 1)
	}

	rs.notifyCompleted(ctx, created)
	return models.Ok(created)
}

// Notifications lists one entry per pending draft in the actor's scope.
func (rs *ReportService) Notifications(ctx context.Context, actor *models.User) models.Result[[]models.Notification] {
	var (
		notifications []models.Notification
		err           error
	)
	if actor.Role.SeesEverything() {
		notifications, err = rs.repo.Notifications(ctx)
	} else {
		notifications, err = rs.repo.NotificationsForUser(ctx, actor.Username)
	}
	if err != nil {
		return models.Fail[[]models.Notification](err)
	}
	return models.Ok(notifications)
}

// CleanupDrafts is the administrator's manual trigger of the retention sweep.
func (rs *ReportService) CleanupDrafts(ctx context.Context, actor *models.User, days int) models.Result[int] {
	if actor.Role != models.RoleAdministrador {
		return models.Fail[int](models.ErrForbidden)
	}
	removed, err := rs.RunDraftCleanup(ctx, days)
	if err != nil {
		return models.Fail[int](err)
	}
	return models.Ok(removed)
}

// RunDraftCleanup deletes drafts untouched for more than days days.
func (rs *ReportService) RunDraftCleanup(ctx context.Context, days int) (int, error) {
	if days < 1 {
		return 0, models.NewValidationError(models.FieldClassFormulario, "la retención debe ser de al menos un día")
	}
	removed, err := rs.repo.CleanupDrafts(ctx, days)
	if removed > 0 {
		metrics.DraftsDeleted(metrics.ReasonCleanup, removed)
	}
	return removed, err
}

// Stats aggregates the reports in the actor's scope.
func (rs *ReportService) Stats(ctx context.Context, actor *models.User, f models.ReportFilters) models.Result[*models.ReportStats] {
	reports, err := rs.scopedSearch(ctx, actor, f)
	if err != nil {
		return models.Fail[*models.ReportStats](err)
	}

	stats := &models.ReportStats{
		Total:        len(reports),
		PorEstado:    make(map[string]int),
		PorTipo:      make(map[string]int),
		PorProvincia: make(map[string]int),
	}
	for _, r := range reports {
		stats.PorEstado[r.Estado]++
		stats.PorTipo[r.TipoIntervencion]++
		stats.PorProvincia[r.Provincia]++
	}

	var n int
	if actor.Role.SeesEverything() {
		n, err = rs.repo.CountDrafts(ctx)
	} else {
		n, err = rs.repo.CountDraftsByUser(ctx, actor.Username)
	}
	if err != nil {
		return models.Fail[*models.ReportStats](err)
	}
	stats.DraftsPending = n
	return models.Ok(stats)
}

func (rs *ReportService) ownedDraft(ctx context.Context, actor *models.User, id string) (*models.PendingReport, error) {
	d, err := rs.repo.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, models.ErrNotFound
	}
	if d.UserID != actor.Username && !actor.Role.SeesEverything() {
		return nil, models.ErrForbidden
	}
	return d, nil
}

func (rs *ReportService) notifyCompleted(ctx context.Context, r *models.Report) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := rs.notifier.ReportCompleted(nctx, r); err != nil {
		zap.S().Warnf("no se pudo notificar el reporte %s: %v", r.NumeroReporte, err)
	}
}

// reportFromDraft builds the report a draft stands for. An explicit
// fechaReporte in the form wins over the draft's own timestamp.
func reportFromDraft(d *models.PendingReport) models.Report {
	f := d.FormData
	ts := d.Timestamp
	if parsed, ok := parseFechaReporte(f.FechaReporte); ok {
		ts = parsed
	}
	return models.Report{
		Timestamp:        ts,
		FechaCreacion:    ts,
		FechaReporte:     f.FechaReporte,
		CreadoPor:        d.UserName,
		UsuarioID:        d.UserID,
		Region:           f.Region,
		Provincia:        f.Provincia,
		Municipio:        f.Municipio,
		Distrito:         f.EffectiveDistrito(),
		Sector:           f.EffectiveSector(),
		TipoIntervencion: f.TipoIntervencion,
		SubTipoCanal:     f.SubTipoCanal,
		Observaciones:    f.Observaciones,
		MetricData:       f.MetricData,
		GPSData:          f.GPSData,
		Vehiculos:        f.Vehiculos,
	}
}

func applyExtra(r *models.Report, p models.ReportPatch) {
	set := func(dst *string, v *string) {
		if v != nil && strings.TrimSpace(*v) != "" {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&r.Region, p.Region)
	set(&r.Provincia, p.Provincia)
	set(&r.Municipio, p.Municipio)
	set(&r.Distrito, p.Distrito)
	set(&r.Sector, p.Sector)
	set(&r.TipoIntervencion, p.TipoIntervencion)
	set(&r.SubTipoCanal, p.SubTipoCanal)
	set(&r.Observaciones, p.Observaciones)
	if p.FechaReporte != nil {
		if ts, ok := parseFechaReporte(*p.FechaReporte); ok {
			r.FechaReporte = *p.FechaReporte
			r.Timestamp, r.FechaCreacion = ts, ts
		}
	}
	if len(p.MetricData) > 0 {
		if r.MetricData == nil {
			r.MetricData = make(map[string]string, len(p.MetricData))
		}
		for k, v := range p.MetricData {
			r.MetricData[k] = v
		}
	}
	if len(p.GPSData) > 0 {
		if r.GPSData == nil {
			r.GPSData = make(map[string]models.GPSPoint, len(p.GPSData))
		}
		for k, v := range p.GPSData {
			r.GPSData[k] = v
		}
	}
	if p.Vehiculos != nil {
		r.Vehiculos = p.Vehiculos
	}
}

var fechaLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func parseFechaReporte(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range fechaLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
