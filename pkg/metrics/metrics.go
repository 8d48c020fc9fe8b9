// Package metrics records escrow verification, usage reporting and
// transaction outcomes. Recorder implementations must be safe for concurrent use.
package metrics

import "time"

// Status labels.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Recorder receives SDK events.
type Recorder interface {
	// ObserveVerification counts one verification. reason is empty for a
	// valid escrow, otherwise the VerificationResult error text.
	ObserveVerification(reason string)
	// ObserveUsage counts one usage report.
	ObserveUsage(status string)
	// ObserveTx records a contract execution and how long it took end to end.
	ObserveTx(op, status string, d time.Duration)
}

// Status maps an error to StatusOK or StatusError.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// Or returns r, or Noop when r is nil.
func Or(r Recorder) Recorder {
	if r == nil {
		return Noop{}
	}
	return r
}
