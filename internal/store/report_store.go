package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iamCapel/mopc-reportes/internal/geo"
	"github.com/iamCapel/mopc-reportes/internal/models"
)

// ReportStore keeps completed reports. It has no notion of roles.
type ReportStore struct {
	backend Backend
	geo     geo.Lookup
	ids     *IDGenerator
	now     func() time.Time
}

// NewReportStore creates a ReportStore validating locations against lookup.
func NewReportStore(backend Backend, lookup geo.Lookup) *ReportStore {
	return &ReportStore{
		backend: backend,
		geo:     lookup,
		ids:     &IDGenerator{},
		now:     time.Now,
	}
}

// ValidateNewReport checks the required fields of a report about to be created
// and its place in the geo hierarchy.
func ValidateNewReport(r *models.Report, lookup geo.Lookup) error {
	for _, v := range []string{r.Region, r.Provincia, r.Municipio, r.Distrito, r.Sector} {
		if strings.TrimSpace(v) == "" {
			return models.NewValidationError(models.FieldClassUbicacion, "región, provincia, municipio, distrito y sector son obligatorios")
		}
	}
	if strings.TrimSpace(r.TipoIntervencion) == "" {
		return models.NewValidationError(models.FieldClassTipo, "el tipo de intervención es obligatorio")
	}
	if r.FechaCreacion.IsZero() && r.Timestamp.IsZero() {
		return models.NewValidationError(models.FieldClassFecha, "se requiere la fecha de creación")
	}
	if r.Estado != "" && !models.ValidEstado(r.Estado) {
		return models.NewValidationError(models.FieldClassFormulario, "estado %q desconocido", r.Estado)
	}
	if lookup != nil {
		return geo.ValidateHierarchy(lookup, r.Region, r.Provincia, r.Municipio, r.Distrito, r.Sector)
	}
	return nil
}

// Create validates and persists a new report, deriving id, numeroReporte and
// the missing timestamp when the caller did not resolve them.
func (s *ReportStore) Create(ctx context.Context, partial *models.Report) (*models.Report, error) {
	if err := ValidateNewReport(partial, s.geo); err != nil {
		return nil, err
	}

	r := *partial
	if r.Timestamp.IsZero() {
		r.Timestamp = r.FechaCreacion
	}
	if r.FechaCreacion.IsZero() {
		r.FechaCreacion = r.Timestamp
	}
	if r.ID == "" {
		r.ID = s.ids.Next(s.now())
	}
	if r.NumeroReporte == "" {
		r.NumeroReporte = NumeroReporte(r.ID, r.FechaCreacion)
	}
	if r.Estado == "" {
		r.Estado = models.EstadoCompletado
	}
	if r.TipoIntervencion != models.TipoCanalizacion {
		r.SubTipoCanal = ""
	}

	if err := s.backend.Put(ctx, CollectionReports, r.ID, &r); err != nil {
		return nil, fmt.Errorf("guardado reporte %s: %w", r.ID, err)
	}
	return &r, nil
}

// GetByID returns the report, or nil when absent.
func (s *ReportStore) GetByID(ctx context.Context, id string) (*models.Report, error) {
	var r models.Report
	found, err := s.backend.Get(ctx, CollectionReports, id, &r)
	if err != nil {
		return nil, fmt.Errorf("lectura reporte %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return &r, nil
}

// GetByNumber looks a report up by its number in two phases: an exact match
// on numeroReporte or id, then a linear scan for numbers containing the query
// or its trailing digits. The most recent candidate of the scan wins.
func (s *ReportStore) GetByNumber(ctx context.Context, numero string) (*models.Report, error) {
	numero = strings.TrimSpace(numero)
	if numero == "" {
		return nil, nil
	}

	var exact []models.Report
	if err := s.backend.Query(ctx, CollectionReports, "numeroReporte", numero, &exact); err != nil {
		return nil, fmt.Errorf("búsqueda reporte %s: %w", numero, err)
	}
	if len(exact) > 0 {
		sortReports(exact)
		return &exact[0], nil
	}
	if r, err := s.GetByID(ctx, numero); err != nil || r != nil {
		return r, err
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	query := strings.ToUpper(numero)
	suffix := TrailingDigits(numero)
	for i := range all {
		candidate := strings.ToUpper(all[i].NumeroReporte)
		if strings.Contains(candidate, query) || (suffix != "" && strings.Contains(candidate, suffix)) {
			return &all[i], nil
		}
	}
	return nil, nil
}

// GetAll returns every report, newest first.
func (s *ReportStore) GetAll(ctx context.Context) ([]models.Report, error) {
	var reports []models.Report
	if err := s.backend.All(ctx, CollectionReports, &reports); err != nil {
		return nil, fmt.Errorf("lectura reportes: %w", err)
	}
	sortReports(reports)
	return reports, nil
}

// Search applies every non-empty filter conjunctively, newest first.
func (s *ReportStore) Search(ctx context.Context, f models.ReportFilters) ([]models.Report, error) {
	var (
		candidates []models.Report
		err        error
	)
	if f.UsuarioID != "" {
		err = s.backend.Query(ctx, CollectionReports, "usuarioId", f.UsuarioID, &candidates)
	} else {
		err = s.backend.All(ctx, CollectionReports, &candidates)
	}
	if err != nil {
		return nil, fmt.Errorf("búsqueda reportes: %w", err)
	}

	out := make([]models.Report, 0, len(candidates))
	for _, r := range candidates {
		if matches(&r, f) {
			out = append(out, r)
		}
	}
	sortReports(out)
	return out, nil
}

// Update merges patch into the stored report. It returns nil without error
// when the id does not exist.
func (s *ReportStore) Update(ctx context.Context, id string, patch models.ReportPatch) (*models.Report, error) {
	r, err := s.GetByID(ctx, id)
	if err != nil || r == nil {
		return nil, err
	}

	applyPatch(r, patch)
	if patch.TouchesLocation() || patch.TipoIntervencion != nil {
		if err := ValidateNewReport(r, s.geo); err != nil {
			return nil, err
		}
	}
	if !models.ValidEstado(r.Estado) {
		return nil, models.NewValidationError(models.FieldClassFormulario, "estado %q desconocido", r.Estado)
	}
	now := s.now()
	r.FechaModificacion = &now
	if patch.ModificadoPor != "" {
		r.ModificadoPor = patch.ModificadoPor
	}

	if err := s.backend.Put(ctx, CollectionReports, r.ID, r); err != nil {
		return nil, fmt.Errorf("actualización reporte %s: %w", id, err)
	}
	return r, nil
}

// Delete removes the report. Owner counters are not touched.
func (s *ReportStore) Delete(ctx context.Context, id string) error {
	if err := s.backend.Delete(ctx, CollectionReports, id); err != nil {
		return fmt.Errorf("borrado reporte %s: %w", id, err)
	}
	return nil
}

// CountByUser counts the reports recorded under usuarioID.
func (s *ReportStore) CountByUser(ctx context.Context, usuarioID string) (int, error) {
	var reports []models.Report
	if err := s.backend.Query(ctx, CollectionReports, "usuarioId", usuarioID, &reports); err != nil {
		return 0, fmt.Errorf("conteo reportes de %s: %w", usuarioID, err)
	}
	return len(reports), nil
}

func matches(r *models.Report, f models.ReportFilters) bool {
	if f.Provincia != "" && !strings.EqualFold(r.Provincia, f.Provincia) {
		return false
	}
	if f.Municipio != "" && !strings.EqualFold(r.Municipio, f.Municipio) {
		return false
	}
	if f.TipoIntervencion != "" && !strings.EqualFold(r.TipoIntervencion, f.TipoIntervencion) {
		return false
	}
	if f.CreadoPor != "" && r.CreadoPor != f.CreadoPor {
		return false
	}
	if f.UsuarioID != "" && r.UsuarioID != f.UsuarioID {
		return false
	}
	if f.Estado != "" && r.Estado != f.Estado {
		return false
	}
	if f.StartDate != nil && r.Timestamp.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && r.Timestamp.After(endOfRange(*f.EndDate)) {
		return false
	}
	return true
}

// endOfRange makes a date-only end bound cover the whole day.
func endOfRange(t time.Time) time.Time {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Add(24*time.Hour - time.Nanosecond)
	}
	return t
}

func applyPatch(r *models.Report, p models.ReportPatch) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&r.FechaReporte, p.FechaReporte)
	set(&r.Region, p.Region)
	set(&r.Provincia, p.Provincia)
	set(&r.Municipio, p.Municipio)
	set(&r.Distrito, p.Distrito)
	set(&r.Sector, p.Sector)
	set(&r.TipoIntervencion, p.TipoIntervencion)
	set(&r.SubTipoCanal, p.SubTipoCanal)
	set(&r.Observaciones, p.Observaciones)
	set(&r.Estado, p.Estado)
	if p.MetricData != nil {
		r.MetricData = p.MetricData
	}
	if p.GPSData != nil {
		r.GPSData = p.GPSData
	}
	if p.Vehiculos != nil {
		r.Vehiculos = p.Vehiculos
	}
	if r.TipoIntervencion != models.TipoCanalizacion {
		r.SubTipoCanal = ""
	}
}

func sortReports(reports []models.Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Timestamp.After(reports[j].Timestamp)
	})
}
