package models

import (
	"time"

	"github.com/maggot-ml/maggot/types"
)

// RunsSummary holds the overview of every run under a runs directory.
type RunsSummary struct {
	RunsDir     string       `json:"runs_dir"`
	Runs        []RunSummary `json:"runs"`
	Total       int          `json:"total"`
	Finished    int          `json:"finished"`
	Failed      int          `json:"failed"`
	Active      int          `json:"active"` // Still running, or the process died before finalizing
	LastFailure *RunSummary  `json:"last_failure,omitempty"`
}

// RunSummary provides a concise overview of a single run, read from its run.yml.
type RunSummary struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Status     string          `json:"status"`
	Root       string          `json:"root"`
	StartedAt  time.Time       `json:"started_at"`
	DurationMs int64           `json:"duration_ms"`
	ExitCode   *int            `json:"exit_code,omitempty"` // Only for runs started by `maggot run`
	Error      string          `json:"error,omitempty"`
	Initiator  types.Initiator `json:"initiator"`
}
