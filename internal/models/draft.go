package models

import (
	"math"
	"strings"
	"time"
)

// PendingReport is a recoverable snapshot of a form that is still being filled in.
type PendingReport struct {
	ID              string    `json:"id" dynamodbav:"id" bson:"_id"`
	UserID          string    `json:"userId" dynamodbav:"userId" bson:"userId"`
	UserName        string    `json:"userName" dynamodbav:"userName" bson:"userName"`
	Timestamp       time.Time `json:"timestamp" dynamodbav:"timestamp" bson:"timestamp"`
	LastModified    time.Time `json:"lastModified" dynamodbav:"lastModified" bson:"lastModified"`
	FormData        FormData  `json:"formData" dynamodbav:"formData" bson:"formData"`
	Progress        int       `json:"progress" dynamodbav:"progress" bson:"progress"`
	FieldsCompleted []string  `json:"fieldsCompleted" dynamodbav:"fieldsCompleted" bson:"fieldsCompleted"`
}

// FormData mirrors the report input fields while the form is mid-entry, plus
// the UI bookkeeping needed to restore it.
type FormData struct {
	FechaReporte     string              `json:"fechaReporte,omitempty" dynamodbav:"fechaReporte,omitempty" bson:"fechaReporte,omitempty"`
	Region           string              `json:"region,omitempty" dynamodbav:"region,omitempty" bson:"region,omitempty"`
	Provincia        string              `json:"provincia,omitempty" dynamodbav:"provincia,omitempty" bson:"provincia,omitempty"`
	Municipio        string              `json:"municipio,omitempty" dynamodbav:"municipio,omitempty" bson:"municipio,omitempty"`
	Distrito         string              `json:"distrito,omitempty" dynamodbav:"distrito,omitempty" bson:"distrito,omitempty"`
	Sector           string              `json:"sector,omitempty" dynamodbav:"sector,omitempty" bson:"sector,omitempty"`
	TipoIntervencion string              `json:"tipoIntervencion,omitempty" dynamodbav:"tipoIntervencion,omitempty" bson:"tipoIntervencion,omitempty"`
	SubTipoCanal     string              `json:"subTipoCanal,omitempty" dynamodbav:"subTipoCanal,omitempty" bson:"subTipoCanal,omitempty"`
	Observaciones    string              `json:"observaciones,omitempty" dynamodbav:"observaciones,omitempty" bson:"observaciones,omitempty"`
	MetricData       map[string]string   `json:"metricData,omitempty" dynamodbav:"metricData,omitempty" bson:"metricData,omitempty"`
	GPSData          map[string]GPSPoint `json:"gpsData,omitempty" dynamodbav:"gpsData,omitempty" bson:"gpsData,omitempty"`
	Vehiculos        []Vehiculo          `json:"vehiculos,omitempty" dynamodbav:"vehiculos,omitempty" bson:"vehiculos,omitempty"`

	MostrarDistritoPersonalizado bool   `json:"mostrarDistritoPersonalizado,omitempty" dynamodbav:"mostrarDistritoPersonalizado,omitempty" bson:"mostrarDistritoPersonalizado,omitempty"`
	DistritoPersonalizado        string `json:"distritoPersonalizado,omitempty" dynamodbav:"distritoPersonalizado,omitempty" bson:"distritoPersonalizado,omitempty"`
	MostrarSectorPersonalizado   bool   `json:"mostrarSectorPersonalizado,omitempty" dynamodbav:"mostrarSectorPersonalizado,omitempty" bson:"mostrarSectorPersonalizado,omitempty"`
	SectorPersonalizado          string `json:"sectorPersonalizado,omitempty" dynamodbav:"sectorPersonalizado,omitempty" bson:"sectorPersonalizado,omitempty"`
}

// TrackedFields are the form fields that count towards a draft's progress.
var TrackedFields = []string{
	"fechaReporte",
	"region",
	"provincia",
	"municipio",
	"distrito",
	"sector",
	"tipoIntervencion",
	"observaciones",
	"metricData",
	"gpsData",
}

// CompletedFields returns the tracked fields that currently hold a value, in TrackedFields order.
func (f *FormData) CompletedFields() []string {
	completed := make([]string, 0, len(TrackedFields))
	for _, name := range TrackedFields {
		if f.hasValue(name) {
			completed = append(completed, name)
		}
	}
	return completed
}

// Progress is the share of tracked fields filled in, 0-100.
func (f *FormData) Progress() int {
	done := len(f.CompletedFields())
	return int(math.Round(float64(done) / float64(len(TrackedFields)) * 100))
}

// IsMeaningful reports whether the form holds at least one geographic or intervention value.
// Empty forms never produce a draft.
func (f *FormData) IsMeaningful() bool {
	for _, v := range []string{f.Region, f.Provincia, f.Municipio, f.Distrito, f.Sector, f.TipoIntervencion} {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// EffectiveDistrito resolves the custom district when the form switched to free text.
func (f *FormData) EffectiveDistrito() string {
	if f.MostrarDistritoPersonalizado && strings.TrimSpace(f.DistritoPersonalizado) != "" {
		return strings.TrimSpace(f.DistritoPersonalizado)
	}
	return f.Distrito
}

// EffectiveSector resolves the custom sector when the form switched to free text.
func (f *FormData) EffectiveSector() string {
	if f.MostrarSectorPersonalizado && strings.TrimSpace(f.SectorPersonalizado) != "" {
		return strings.TrimSpace(f.SectorPersonalizado)
	}
	return f.Sector
}

func (f *FormData) hasValue(name string) bool {
	switch name {
	case "fechaReporte":
		return strings.TrimSpace(f.FechaReporte) != ""
	case "region":
		return strings.TrimSpace(f.Region) != ""
	case "provincia":
		return strings.TrimSpace(f.Provincia) != ""
	case "municipio":
		return strings.TrimSpace(f.Municipio) != ""
	case "distrito":
		return strings.TrimSpace(f.EffectiveDistrito()) != ""
	case "sector":
		return strings.TrimSpace(f.EffectiveSector()) != ""
	case "tipoIntervencion":
		return strings.TrimSpace(f.TipoIntervencion) != ""
	case "observaciones":
		return strings.TrimSpace(f.Observaciones) != ""
	case "metricData":
		for _, v := range f.MetricData {
			if strings.TrimSpace(v) != "" {
				return true
			}
		}
	case "gpsData":
		return len(f.GPSData) > 0
	}
	return false
}

// Notification summarises one pending draft for its owner and for admins.
type Notification struct {
	ID           string    `json:"id"`
	DraftID      string    `json:"draftId"`
	UserID       string    `json:"userId"`
	UserName     string    `json:"userName"`
	Progress     int       `json:"progress"`
	Message      string    `json:"message"`
	LastModified time.Time `json:"lastModified"`
}
