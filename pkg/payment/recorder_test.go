package payment

import (
	"sync"
	"time"
)

type countingRecorder struct {
	mu            sync.Mutex
	verifications map[string]int
	usage         map[string]int
}

func (c *countingRecorder) ObserveVerification(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.verifications == nil {
		c.verifications = map[string]int{}
	}
	c.verifications[reason]++
}

func (c *countingRecorder) ObserveUsage(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.usage == nil {
		c.usage = map[string]int{}
	}
	c.usage[status]++
}

func (c *countingRecorder) ObserveTx(string, string, time.Duration) {}
