package metrics

import "time"

// Noop discards everything.
type Noop struct{}

func (Noop) ObserveVerification(string)              {}
func (Noop) ObserveUsage(string)                     {}
func (Noop) ObserveTx(string, string, time.Duration) {}
