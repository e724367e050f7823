// Package metrics defines the small surface the pipeline uses to report
// counters and durations. Backends live in subpackages.
package metrics

// Labels are metric dimensions, e.g. {"status": "ok"}.
type Labels map[string]string

// Metric names emitted by the pipeline.
const (
	DatasetsTotal          = "dataprof_datasets_total"
	RowsTotal              = "dataprof_rows_total"
	DuplicatesTotal        = "dataprof_duplicates_total"
	ProfileDurationSeconds = "dataprof_profile_duration_seconds"
)

// Backend receives pipeline metrics. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}
func (Nop) Flush() error                             { return nil }
func (Nop) Close() error                             { return nil }

var _ Backend = Nop{}
