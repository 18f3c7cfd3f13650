package analytics

import (
	"sort"

	"go.uber.org/zap"
)

// AnomalyKind names a recoverable data condition
type AnomalyKind string

const (
	AnomalyEmptyTable             AnomalyKind = "empty_table"
	AnomalyMissingTimestamp       AnomalyKind = "missing_timestamp"
	AnomalyUnbucketedEvent        AnomalyKind = "unbucketed_event"
	AnomalyOrdinalReassigned      AnomalyKind = "quiz_ordinal_reassigned"
	AnomalyNegativeDuration       AnomalyKind = "negative_quiz_duration"
	AnomalyGradeOutOfRange        AnomalyKind = "grade_out_of_range"
	AnomalyAverageGradeOutOfRange AnomalyKind = "average_grade_out_of_range"
	AnomalyUnresolvedParent       AnomalyKind = "unresolved_parent"
	AnomalyThreadCycle            AnomalyKind = "forum_thread_cycle"
	AnomalyCompletionOutOfRange   AnomalyKind = "completion_out_of_range"
)

const maxAnomalyExamples = 5

// Anomaly aggregates every occurrence of one kind within a run
type Anomaly struct {
	Kind     AnomalyKind `json:"kind" yaml:"kind"`
	Stage    string      `json:"stage" yaml:"stage"`
	Count    int         `json:"count" yaml:"count"`
	Examples []string    `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// Report collects anomalies for a single analysis request.
// A nil *Report discards everything.
type Report struct {
	entries map[AnomalyKind]*Anomaly
}

// NewReport creates an empty report
func NewReport() *Report {
	return &Report{entries: make(map[AnomalyKind]*Anomaly)}
}

// Add records one occurrence
func (r *Report) Add(stage string, kind AnomalyKind, detail string) {
	if r == nil {
		return
	}
	a, ok := r.entries[kind]
	if !ok {
		a = &Anomaly{Kind: kind, Stage: stage}
		r.entries[kind] = a
	}
	a.Count++
	if detail != "" && len(a.Examples) < maxAnomalyExamples {
		a.Examples = append(a.Examples, detail)
	}
}

// Count returns the occurrences of kind
func (r *Report) Count(kind AnomalyKind) int {
	if r == nil {
		return 0
	}
	if a, ok := r.entries[kind]; ok {
		return a.Count
	}
	return 0
}

// Total returns the number of recorded occurrences across all kinds
func (r *Report) Total() int {
	if r == nil {
		return 0
	}
	total := 0
	for _, a := range r.entries {
		total += a.Count
	}
	return total
}

// Anomalies returns the entries sorted by kind
func (r *Report) Anomalies() []Anomaly {
	out := []Anomaly{}
	if r == nil {
		return out
	}
	for _, a := range r.entries {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Log writes a single summary line when anything was recorded
func (r *Report) Log(log *zap.Logger) {
	if r.Total() == 0 {
		return
	}
	fields := []zap.Field{zap.Int("total", r.Total())}
	for _, a := range r.Anomalies() {
		fields = append(fields, zap.Int(string(a.Kind), a.Count))
	}
	log.Warn("Data quality anomalies detected", fields...)
}
