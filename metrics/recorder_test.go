package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flipscout/models"
)

func sampleReport(success bool) *models.RunReport {
	start := time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC)
	return &models.RunReport{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		ActiveIn:   10,
		ActiveKept: 4,
		SoldIn:     25,
		SoldKept:   25,
		Skips: map[string]int{
			"active/max_price": 5,
			"active/min_beds":  1,
		},
		Success: success,
	}
}

func textfile(t *testing.T, r *Recorder) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "textfile", "flipscout.prom")
	require.NoError(t, r.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRecorderObserve(t *testing.T) {
	r := NewRecorder("")
	r.Observe(sampleReport(true))

	out := textfile(t, r)
	for _, want := range []string{
		`flipscout_pipeline_records_in{kind="active"} 10`,
		`flipscout_pipeline_records_kept{kind="sold"} 25`,
		`flipscout_pipeline_records_skipped{kind="active",reason="max_price"} 5`,
		`flipscout_run_duration_seconds 90`,
		`flipscout_run_success 1`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestRecorderFailedRun(t *testing.T) {
	r := NewRecorder("")
	r.Observe(sampleReport(true))

	failed := sampleReport(false)
	failed.Skips = nil
	r.Observe(failed)

	out := textfile(t, r)
	assert.Contains(t, out, "flipscout_run_success 0")
	assert.Contains(t, out, "flipscout_run_last_success_timestamp_seconds", "last success survives a failed run")
	assert.NotContains(t, out, `reason="max_price"`, "stale skip series should be cleared")
}

func TestRecorderNamespace(t *testing.T) {
	r := NewRecorder("scout")
	r.Observe(sampleReport(true))
	assert.Contains(t, textfile(t, r), `scout_pipeline_records_in{kind="sold"} 25`)
}

func TestRecorderIngestionDrops(t *testing.T) {
	r := NewRecorder("")
	report := sampleReport(true)
	report.FailedRegions = []string{"91006"}
	report.Skips["active/duplicate"] = 2
	r.Observe(report)

	out := textfile(t, r)
	assert.Contains(t, out, "flipscout_run_regions_failed 1")
	assert.Contains(t, out, `flipscout_pipeline_records_skipped{kind="active",reason="duplicate"} 2`)
}
