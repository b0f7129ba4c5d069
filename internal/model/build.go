package model

import "time"

// FailureMode controls how the builder reacts to a per-airport failure.
type FailureMode string

const (
	// FailureContinue records the failure and moves to the next airport.
	FailureContinue FailureMode = "continue"
	// FailureFailFast aborts the entire build on the first failure.
	FailureFailFast FailureMode = "fail_fast"
	// FailureSkip is like continue but marks the airport so subsequent
	// non-forced runs do not retry it automatically.
	FailureSkip FailureMode = "skip"
)

// Valid reports whether the mode is one of the three known modes.
func (m FailureMode) Valid() bool {
	switch m {
	case FailureContinue, FailureFailFast, FailureSkip:
		return true
	}
	return false
}

// BuildStep is the per-airport pipeline step.
type BuildStep string

const (
	StepPending     BuildStep = "pending"
	StepExtracting  BuildStep = "extracting"
	StepAggregating BuildStep = "aggregating"
	StepMapping     BuildStep = "mapping"
	StepScoring     BuildStep = "scoring"
	StepPersisting  BuildStep = "persisting"
	StepDone        BuildStep = "done"
	StepFailed      BuildStep = "failed"
)

// AirportOutcome is the terminal state of one airport in a build.
type AirportOutcome struct {
	ICAO      string        `json:"icao"`
	Step      BuildStep     `json:"step"`            // done, failed, or skipped step
	Skipped   bool          `json:"skipped"`         // Filtered out or marked skip
	ErrorKind string        `json:"error,omitempty"` // Root-cause error kind for failures
	Duration  time.Duration `json:"duration"`
}

// BuildMetrics aggregates counts for one build run.
type BuildMetrics struct {
	Processed    int           `json:"processed"`
	Failed       int           `json:"failed"`
	Skipped      int           `json:"skipped"`
	Reviews      int           `json:"reviews"`
	Extractions  int           `json:"extractions"`
	CacheHits    int64         `json:"cache_hits"`
	CacheMisses  int64         `json:"cache_misses"`
	AIPProcessed int           `json:"aip_processed"`
	Duration     time.Duration `json:"duration"`
}

// BuildResult is the report emitted by every build regardless of outcome.
type BuildResult struct {
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Outcomes   []AirportOutcome `json:"outcomes"`
	Metrics    BuildMetrics     `json:"metrics"`
	Checkpoint string           `json:"checkpoint,omitempty"` // Last successfully committed ICAO
}

// Failed reports whether the build should be treated as failed given the
// configured mode and failure threshold. FAIL_FAST treats any failure as
// fatal; CONTINUE and SKIP only past the threshold.
func (r BuildResult) Failed(mode FailureMode, threshold int) bool {
	if r.Metrics.Failed == 0 {
		return false
	}
	if mode == FailureFailFast {
		return true
	}
	return r.Metrics.Failed > threshold
}

// BuildCheckpoint is the resume cursor: the last airport whose
// transaction committed. Advanced monotonically within one run.
type BuildCheckpoint struct {
	LastSuccessfulICAO string    `json:"last_successful_icao"`
	UpdatedAt          time.Time `json:"updated_at"`
}
