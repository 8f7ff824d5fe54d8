// Package sandbox executes generated plans inside a yaegi interpreter.
// Each run gets a fresh interpreter scope and a fresh dispatcher, so no
// state leaks between plans and a runaway plan can be cut off by
// timeout without poisoning later runs.
package sandbox

import "time"

// Status classifies how a sandbox run ended.
type Status string

const (
	StatusSuccess       Status = "success"
	StatusRuntimeError  Status = "runtime_error"
	StatusLimitExceeded Status = "limit_exceeded"
	StatusTimeout       Status = "timeout"
)

// Outcome is the result of one sandbox run.
type Outcome struct {
	Status    Status
	Answer    string
	Err       error
	ToolCalls int
	Duration  time.Duration
}

// OK reports whether the run produced a usable answer.
func (o Outcome) OK() bool {
	return o.Status == StatusSuccess
}
