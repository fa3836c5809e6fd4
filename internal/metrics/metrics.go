// Package metrics exposes the Prometheus counters of the reports service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "mopc"
	subsystem = "reportes"
)

var (
	draftsSaved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "drafts_saved_total",
		Help:      "Drafts upserted into the draft store",
	})

	draftsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "drafts_deleted_total",
		Help:      "Drafts removed, by reason (cancel, promotion, cleanup)",
	}, []string{"reason"})

	reportsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "reports_created_total",
		Help:      "Completed reports committed, by entry path (direct, promotion)",
	}, []string{"path"})

	remoteWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "remote_write_failures_total",
		Help:      "Dual-writes whose remote half failed after staging",
	}, []string{"operation"})

	autosaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "form_autosaves_total",
		Help:      "Form session saves, by outcome (saved, skipped, failed)",
	}, []string{"outcome"})
)

// Reasons a draft leaves the store.
const (
	ReasonCancel    = "cancel"
	ReasonPromotion = "promotion"
	ReasonCleanup   = "cleanup"
)

// Entry paths of a completed report.
const (
	PathDirect    = "direct"
	PathPromotion = "promotion"
)

// Autosave outcomes.
const (
	OutcomeSaved   = "saved"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

func DraftSaved() { draftsSaved.Inc() }

func DraftsDeleted(reason string, n int) { draftsDeleted.WithLabelValues(reason).Add(float64(n)) }

func ReportCreated(path string) { reportsCreated.WithLabelValues(path).Inc() }

func RemoteWriteFailed(op string) { remoteWriteFailures.WithLabelValues(op).Inc() }

func Autosave(outcome string) { autosaves.WithLabelValues(outcome).Inc() }

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
