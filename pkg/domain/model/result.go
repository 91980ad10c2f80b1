package model

import "time"

// ActionResult is the outcome of running one action
type ActionResult struct {
	RunID      string
	Name       string
	Command    string
	Stdout     string
	Stderr     string
	ExitCode   int
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded reports whether the action exited with status 0
func (r *ActionResult) Succeeded() bool {
	return r.Err == nil
}

// Duration returns how long the action ran
func (r *ActionResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
