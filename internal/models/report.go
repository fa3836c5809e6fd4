package models

import "time"

// Report is a finalized record of field work.
type Report struct {
	ID                string              `json:"id" dynamodbav:"id" bson:"_id"`
	NumeroReporte     string              `json:"numeroReporte" dynamodbav:"numeroReporte" bson:"numeroReporte"`
	Timestamp         time.Time           `json:"timestamp" dynamodbav:"timestamp" bson:"timestamp"`
	FechaCreacion     time.Time           `json:"fechaCreacion" dynamodbav:"fechaCreacion" bson:"fechaCreacion"`
	FechaModificacion *time.Time          `json:"fechaModificacion,omitempty" dynamodbav:"fechaModificacion,omitempty" bson:"fechaModificacion,omitempty"`
	FechaReporte      string              `json:"fechaReporte,omitempty" dynamodbav:"fechaReporte,omitempty" bson:"fechaReporte,omitempty"`
	CreadoPor         string              `json:"creadoPor" dynamodbav:"creadoPor" bson:"creadoPor"`
	UsuarioID         string              `json:"usuarioId" dynamodbav:"usuarioId" bson:"usuarioId"`
	ModificadoPor     string              `json:"modificadoPor,omitempty" dynamodbav:"modificadoPor,omitempty" bson:"modificadoPor,omitempty"`
	Region            string              `json:"region" dynamodbav:"region" bson:"region"`
	Provincia         string              `json:"provincia" dynamodbav:"provincia" bson:"provincia"`
	Municipio         string              `json:"municipio" dynamodbav:"municipio" bson:"municipio"`
	Distrito          string              `json:"distrito" dynamodbav:"distrito" bson:"distrito"`
	Sector            string              `json:"sector" dynamodbav:"sector" bson:"sector"`
	TipoIntervencion  string              `json:"tipoIntervencion" dynamodbav:"tipoIntervencion" bson:"tipoIntervencion"`
	SubTipoCanal      string              `json:"subTipoCanal,omitempty" dynamodbav:"subTipoCanal,omitempty" bson:"subTipoCanal,omitempty"`
	Observaciones     string              `json:"observaciones" dynamodbav:"observaciones" bson:"observaciones"`
	MetricData        map[string]string   `json:"metricData,omitempty" dynamodbav:"metricData,omitempty" bson:"metricData,omitempty"`
	GPSData           map[string]GPSPoint `json:"gpsData,omitempty" dynamodbav:"gpsData,omitempty" bson:"gpsData,omitempty"`
	Vehiculos         []Vehiculo          `json:"vehiculos,omitempty" dynamodbav:"vehiculos,omitempty" bson:"vehiculos,omitempty"`
	Estado            string              `json:"estado" dynamodbav:"estado" bson:"estado"`
}

// GPSPoint is a single captured coordinate pair.
type GPSPoint struct {
	Lat float64 `json:"lat" dynamodbav:"lat" bson:"lat"`
	Lon float64 `json:"lon" dynamodbav:"lon" bson:"lon"`
}

// Vehiculo is a vehicle or machine used during an intervention.
type Vehiculo struct {
	Tipo   string `json:"tipo" dynamodbav:"tipo" bson:"tipo"`
	Modelo string `json:"modelo,omitempty" dynamodbav:"modelo,omitempty" bson:"modelo,omitempty"`
	Ficha  string `json:"ficha,omitempty" dynamodbav:"ficha,omitempty" bson:"ficha,omitempty"`
	Chofer string `json:"chofer,omitempty" dynamodbav:"chofer,omitempty" bson:"chofer,omitempty"`
}

// ReportPatch carries the fields of a partial update. Nil fields are left untouched.
type ReportPatch struct {
	FechaReporte     *string             `json:"fechaReporte,omitempty"`
	Region           *string             `json:"region,omitempty"`
	Provincia        *string             `json:"provincia,omitempty"`
	Municipio        *string             `json:"municipio,omitempty"`
	Distrito         *string             `json:"distrito,omitempty"`
	Sector           *string             `json:"sector,omitempty"`
	TipoIntervencion *string             `json:"tipoIntervencion,omitempty"`
	SubTipoCanal     *string             `json:"subTipoCanal,omitempty"`
	Observaciones    *string             `json:"observaciones,omitempty"`
	MetricData       map[string]string   `json:"metricData,omitempty"`
	GPSData          map[string]GPSPoint `json:"gpsData,omitempty"`
	Vehiculos        []Vehiculo          `json:"vehiculos,omitempty"`
	Estado           *string             `json:"estado,omitempty"`
	ModificadoPor    string              `json:"modificadoPor,omitempty"`
}

// TouchesLocation reports whether the patch changes any geo field.
func (p *ReportPatch) TouchesLocation() bool {
	return p.Region != nil || p.Provincia != nil || p.Municipio != nil || p.Distrito != nil || p.Sector != nil
}

// ReportFilters is the conjunctive search over completed reports. Empty fields are unconstrained.
type ReportFilters struct {
	Provincia        string     `json:"provincia,omitempty" form:"provincia"`
	Municipio        string     `json:"municipio,omitempty" form:"municipio"`
	TipoIntervencion string     `json:"tipoIntervencion,omitempty" form:"tipoIntervencion"`
	CreadoPor        string     `json:"creadoPor,omitempty" form:"creadoPor"`
	UsuarioID        string     `json:"usuarioId,omitempty" form:"usuarioId"`
	Estado           string     `json:"estado,omitempty" form:"estado"`
	StartDate        *time.Time `json:"startDate,omitempty" form:"startDate" time_format:"2006-01-02"`
	EndDate          *time.Time `json:"endDate,omitempty" form:"endDate" time_format:"2006-01-02"`
}

// ReportStats aggregates completed reports for the dashboard.
type ReportStats struct {
	Total         int            `json:"total"`
	PorEstado     map[string]int `json:"porEstado"`
	PorTipo       map[string]int `json:"porTipo"`
	PorProvincia  map[string]int `json:"porProvincia"`
	DraftsPending int            `json:"draftsPending"`
}

// Estados de un reporte
const (
	EstadoCompletado = "completado"
	EstadoPendiente  = "pendiente"
	EstadoBorrador   = "borrador"
)

// TipoCanalizacion is the only intervention type for which SubTipoCanal is meaningful.
const TipoCanalizacion = "Canalización"

// ValidEstado reports whether s is one of the known report states.
func ValidEstado(s string) bool {
	switch s {
	case EstadoCompletado, EstadoPendiente, EstadoBorrador:
		return true
	}
	return false
}
