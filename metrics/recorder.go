// Package metrics exports run statistics in the Prometheus text format so a
// node_exporter textfile collector can pick them up after each batch run.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"flipscout/models"
)

// Recorder holds the gauges describing the last run.
type Recorder struct {
	registry *prometheus.Registry

	RecordsIn   *prometheus.GaugeVec
	RecordsKept *prometheus.GaugeVec
	Skipped     *prometheus.GaugeVec

	RegionsFailed   prometheus.Gauge
	RunDuration     prometheus.Gauge
	RunSuccess      prometheus.Gauge
	LastSuccessTime prometheus.Gauge
}

// NewRecorder creates a Recorder on its own registry.
func NewRecorder(namespace string) *Recorder {
	if namespace == "" {
		namespace = "flipscout"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		RecordsIn: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "records_in",
			Help:      "Raw records received in the last run by kind",
		}, []string{"kind"}),
		RecordsKept: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "records_kept",
			Help:      "Records written in the last run by kind",
		}, []string{"kind"}),
		Skipped: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "records_skipped",
			Help:      "Records dropped in the last run by kind and reason",
		}, []string{"kind", "reason"}),

		RegionsFailed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "regions_failed",
			Help:      "Regions that gave no data in the last run after all retries",
		}),
		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Wall time of the last run",
		}),
		RunSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "success",
			Help:      "1 if the last run stored both tables, 0 otherwise",
		}),
		LastSuccessTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
	}
}

// Observe copies a run report into the gauges.
func (r *Recorder) Observe(report *models.RunReport) {
	r.RecordsIn.WithLabelValues(string(models.KindActive)).Set(float64(report.ActiveIn))
	r.RecordsIn.WithLabelValues(string(models.KindSold)).Set(float64(report.SoldIn))
	r.RecordsKept.WithLabelValues(string(models.KindActive)).Set(float64(report.ActiveKept))
	r.RecordsKept.WithLabelValues(string(models.KindSold)).Set(float64(report.SoldKept))

	r.Skipped.Reset()
	for key, n := range report.Skips {
		kind, reason, ok := strings.Cut(key, "/")
		if !ok {
			kind, reason = "", key
		}
		r.Skipped.WithLabelValues(kind, reason).Set(float64(n))
	}

	r.RegionsFailed.Set(float64(len(report.FailedRegions)))

	if !report.FinishedAt.IsZero() && !report.StartedAt.IsZero() {
		r.RunDuration.Set(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}
	if report.Success {
		r.RunSuccess.Set(1)
		r.LastSuccessTime.Set(float64(report.FinishedAt.Unix()))
	} else {
		r.RunSuccess.Set(0)
	}
}

// WriteTextfile writes all gauges to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics: create dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
