package entity

import "time"

// Stage names one step of the pipeline state machine.
type Stage string

const (
	StageScrape  Stage = "scrape"
	StageProcess Stage = "process"
	StageDigest  Stage = "digest"
	StageIndex   Stage = "index"
	StageRank    Stage = "rank"
	StageEmail   Stage = "email"
	StageDone    Stage = "done"
)

// RunState is the lifecycle state of a pipeline run.
type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
	RunStateCancelled RunState = "cancelled"
)

// IsTerminal reports whether the state ends a run.
func (s RunState) IsTerminal() bool {
	return s == RunStateCompleted || s == RunStateFailed || s == RunStateCancelled
}

// RunCounters accumulates per-stage outcomes. Advisory failures land in
// FailureCounts keyed by error kind; they never abort the run.
type RunCounters struct {
	Scraped        int            `json:"scraped"`
	NewItems       int            `json:"new"`
	Summarized     int            `json:"summarized"`
	Indexed        int            `json:"indexed"`
	Ranked         int            `json:"ranked"`
	Emailed        int            `json:"emailed"`
	Rendered       int            `json:"rendered"`
	Skipped        int            `json:"skipped"`
	FailedAdapters []string       `json:"failed_adapters,omitempty"`
	FailureCounts  map[string]int `json:"failed_by_kind,omitempty"`
}

// CountFailure increments the advisory-failure counter for an error kind.
func (c *RunCounters) CountFailure(kind string) {
	if c.FailureCounts == nil {
		c.FailureCounts = make(map[string]int)
	}
	c.FailureCounts[kind]++
}

// RunRecord is the persisted trace of one pipeline invocation. Every stage
// transition updates the row, so a crash leaves the last reached stage
// visible.
type RunRecord struct {
	ID          int64
	StartedAt   time.Time
	FinishedAt  *time.Time
	WindowHours int
	TopN        int
	Stage       Stage
	State       RunState
	Counters    RunCounters
	Error       string
}

// SubScores are the per-criterion components of a ranking score.
type SubScores struct {
	Relevance     float64 `json:"relevance"`
	Depth         float64 `json:"depth"`
	Novelty       float64 `json:"novelty"`
	Alignment     float64 `json:"alignment"`
	Actionability float64 `json:"actionability"`
}

// RankedItem is one scored candidate from the Rank stage. Degraded marks
// items that received the neutral score after the model reply failed to
// parse twice.
type RankedItem struct {
	Summary     Summary
	Score       float64
	SubScores   SubScores
	Reasoning   string
	Degraded    bool
	PublishedAt time.Time
	SourceName  string
}
