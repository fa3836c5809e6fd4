package store_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamCapel/mopc-reportes/internal/geo"
	"github.com/iamCapel/mopc-reportes/internal/models"
	"github.com/iamCapel/mopc-reportes/internal/store"
	"github.com/iamCapel/mopc-reportes/internal/store/storetest"
)

func baniReport(ts time.Time) *models.Report {
	return &models.Report{
		Timestamp:        ts,
		FechaCreacion:    ts,
		CreadoPor:        "Ana Pérez",
		UsuarioID:        "ana",
		Region:           "Valdesia",
		Provincia:        "Peravia",
		Municipio:        "Baní",
		Distrito:         "Baní",
		Sector:           "Centro",
		TipoIntervencion: "Bacheo",
		Observaciones:    "Calle principal",
	}
}

func TestReportStore_CreateAssignsIdentity(t *testing.T) {
	// Arrange
	rs := store.NewReportStore(store.NewMemoryBackend(), geo.Default())
	ts := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	// Act
	created, err := rs.Create(context.Background(), baniReport(ts))

	// Assert
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(created.ID, "rpt-"))
	assert.True(t, strings.HasPrefix(created.NumeroReporte, "DCR-2025-"))
	assert.Len(t, created.NumeroReporte, len("DCR-2025-000000"))
	assert.Equal(t, models.EstadoCompletado, created.Estado)

	got, err := rs.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.NumeroReporte, got.NumeroReporte)
}

func TestReportStore_CreateValidation(t *testing.T) {
	rs := store.NewReportStore(store.NewMemoryBackend(), geo.Default())
	ts := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		mutate    func(r *models.Report)
		wantField string
	}{
		{name: "missing sector", mutate: func(r *models.Report) { r.Sector = "" }, wantField: models.FieldClassUbicacion},
		{name: "missing tipo", mutate: func(r *models.Report) { r.TipoIntervencion = " " }, wantField: models.FieldClassTipo},
		{name: "missing dates", mutate: func(r *models.Report) { r.Timestamp, r.FechaCreacion = time.Time{}, time.Time{} }, wantField: models.FieldClassFecha},
		{name: "province outside region", mutate: func(r *models.Report) { r.Provincia = "Santiago" }, wantField: models.FieldClassJerarquia},
		{name: "unknown estado", mutate: func(r *models.Report) { r.Estado = "archivado" }, wantField: models.FieldClassFormulario},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := baniReport(ts)
			tt.mutate(r)

			_, err := rs.Create(context.Background(), r)

			var ve *models.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestReportStore_SubTipoOnlyForCanalizacion(t *testing.T) {
	rs := store.NewReportStore(store.NewMemoryBackend(), geo.Default())
	r := baniReport(time.Now())
	r.SubTipoCanal = "Limpieza"

	created, err := rs.Create(context.Background(), r)

	require.NoError(t, err)
	assert.Empty(t, created.SubTipoCanal)
}

func TestReportStore_GetByNumber(t *testing.T) {
	// Arrange
	rs := store.NewReportStore(store.NewMemoryBackend(), geo.Default())
	ctx := context.Background()

	older := baniReport(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	older.NumeroReporte = "DCR-2024-000123"
	_, err := rs.Create(ctx, older)
	require.NoError(t, err)

	other := baniReport(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	other.NumeroReporte = "DCR-2025-999999"
	created, err := rs.Create(ctx, other)
	require.NoError(t, err)

	t.Run("exact number", func(t *testing.T) {
		got, err := rs.GetByNumber(ctx, "DCR-2025-999999")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("exact id", func(t *testing.T) {
		got, err := rs.GetByNumber(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("falls back to the digit suffix", func(t *testing.T) {
		got, err := rs.GetByNumber(ctx, "DCR-2025-000123")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "DCR-2024-000123", got.NumeroReporte)
	})

	t.Run("partial number", func(t *testing.T) {
		got, err := rs.GetByNumber(ctx, "0123")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "DCR-2024-000123", got.NumeroReporte)
	})

	t.Run("no match", func(t *testing.T) {
		got, err := rs.GetByNumber(ctx, "DCR-2025-555555")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestReportStore_GetByNumberPrefersMostRecent(t *testing.T) {
	rs := store.NewReportStore(store.NewMemoryBackend(), geo.Default())
	ctx := context.Background()

	a := baniReport(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	a.NumeroReporte = "DCR-2024-000777"
	_, err := rs.Create(ctx, a)
	require.NoError(t, err)
	b := baniReport(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	b.NumeroReporte = "DCR-2025-000777"
	_, err = rs.Create(ctx, b)
	require.NoError(t, err)

	got, err := rs.GetByNumber(ctx, "777")

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "DCR-2025-000777", got.NumeroReporte)
}

func TestReportStore_Search(t *testing.T) {
	// Arrange
	rs := store.NewReportStore(store.NewMemoryBackend(), geo.Default())
	ctx := context.Background()

	march := baniReport(time.Date(2025, 3, 15, 14, 30, 0, 0, time.UTC))
	_, err := rs.Create(ctx, march)
	require.NoError(t, err)

	april := baniReport(time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC))
	april.TipoIntervencion = "Limpieza de cunetas"
	_, err = rs.Create(ctx, april)
	require.NoError(t, err)

	santiago := baniReport(time.Date(2025, 3, 20, 8, 0, 0, 0, time.UTC))
	santiago.Region, santiago.Provincia, santiago.Municipio = "Cibao Norte", "Santiago", "Tamboril"
	santiago.Distrito, santiago.Sector = "Tamboril", "Los Pinos"
	santiago.UsuarioID, santiago.CreadoPor = "luis", "Luis Gómez"
	_, err = rs.Create(ctx, santiago)
	require.NoError(t, err)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	// Act / Assert
	all, err := rs.Search(ctx, models.ReportFilters{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Limpieza de cunetas", all[0].TipoIntervencion, "newest first")

	byProvince, err := rs.Search(ctx, models.ReportFilters{Provincia: "peravia"})
	require.NoError(t, err)
	assert.Len(t, byProvince, 2)

	byRange, err := rs.Search(ctx, models.ReportFilters{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	require.Len(t, byRange, 1, "a date-only end bound includes the whole day")
	assert.Equal(t, "Peravia", byRange[0].Provincia)

	byUser, err := rs.Search(ctx, models.ReportFilters{UsuarioID: "luis"})
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, "Santiago", byUser[0].Provincia)

	combined, err := rs.Search(ctx, models.ReportFilters{Provincia: "Peravia", TipoIntervencion: "Bacheo"})
	require.NoError(t, err)
	assert.Len(t, combined, 1)
}

func TestReportStore_Update(t *testing.T) {
	rs := store.NewReportStore(store.NewMemoryBackend(), geo.Default())
	ctx := context.Background()
	created, err := rs.Create(ctx, baniReport(time.Now()))
	require.NoError(t, err)

	t.Run("merges and stamps", func(t *testing.T) {
		obs := "Bacheo terminado"
		updated, err := rs.Update(ctx, created.ID, models.ReportPatch{Observaciones: &obs, ModificadoPor: "supervisor"})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, obs, updated.Observaciones)
		assert.Equal(t, "supervisor", updated.ModificadoPor)
		assert.NotNil(t, updated.FechaModificacion)
		assert.Equal(t, created.NumeroReporte, updated.NumeroReporte)
	})

	t.Run("rejects broken hierarchy", func(t *testing.T) {
		prov := "Santiago"
		_, err := rs.Update(ctx, created.ID, models.ReportPatch{Provincia: &prov})
		assert.True(t, models.IsValidation(err))

		got, _ := rs.GetByID(ctx, created.ID)
		assert.Equal(t, "Peravia", got.Provincia)
	})

	t.Run("rejects clearing required fields", func(t *testing.T) {
		empty := ""
		patches := []models.ReportPatch{
			{Region: &empty},
			{Sector: &empty},
			{TipoIntervencion: &empty},
		}
		for _, p := range patches {
			_, err := rs.Update(ctx, created.ID, p)
			assert.True(t, models.IsValidation(err))
		}

		got, _ := rs.GetByID(ctx, created.ID)
		assert.Equal(t, "Valdesia", got.Region)
		assert.NotEmpty(t, got.Sector)
		assert.NotEmpty(t, got.TipoIntervencion)
	})

	t.Run("absent id", func(t *testing.T) {
		obs := "x"
		updated, err := rs.Update(ctx, "rpt-missing", models.ReportPatch{Observaciones: &obs})
		assert.NoError(t, err)
		assert.Nil(t, updated)
	})
}

func TestReportStore_DeleteAndCount(t *testing.T) {
	rs := store.NewReportStore(store.NewMemoryBackend(), geo.Default())
	ctx := context.Background()
	a, err := rs.Create(ctx, baniReport(time.Now()))
	require.NoError(t, err)
	_, err = rs.Create(ctx, baniReport(time.Now()))
	require.NoError(t, err)

	n, err := rs.CountByUser(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, rs.Delete(ctx, a.ID))
	n, err = rs.CountByUser(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReportStore_IOFailureSurfaces(t *testing.T) {
	backend := storetest.NewFailingBackend(store.NewMemoryBackend())
	backend.FailOn(storetest.OpPut, store.CollectionReports)
	rs := store.NewReportStore(backend, geo.Default())

	_, err := rs.Create(context.Background(), baniReport(time.Now()))

	assert.ErrorIs(t, err, storetest.ErrInjected)
	assert.False(t, models.IsValidation(err))
}
