package epn

import "time"

// OverflowPolicy decides what Publish does when a per-processor delivery
// queue is full.
type OverflowPolicy string

const (
	// OverflowBlock blocks the publisher until queue space is available or
	// its context is cancelled.
	OverflowBlock OverflowPolicy = "block"

	// OverflowReject fails the publish with ErrQueueFull.
	OverflowReject OverflowPolicy = "reject"
)

// Config tunes delivery scheduling, retry, and backpressure behaviour.
type Config struct {
	// QueueDepth bounds each per-(processor, key) delivery queue.
	QueueDepth int

	// MaxRetries is the number of retries after the first failed attempt of
	// a transient processor failure. Zero is a valid setting (fail on the
	// first error) and is kept as-is by a zero-value Config; DefaultConfig
	// carries the standard value.
	MaxRetries uint64

	// InitialBackoff and MaxBackoff bound the exponential backoff between
	// retry attempts.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// ProcessTimeout is the time budget for a single processor invocation.
	// Exceeding it counts as a transient failure. Processors must honour
	// context cancellation for the budget to take effect.
	ProcessTimeout time.Duration

	// Overflow selects blocking or rejecting backpressure.
	Overflow OverflowPolicy
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		QueueDepth:     64,
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		ProcessTimeout: 30 * time.Second,
		Overflow:       OverflowBlock,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()

	if c.QueueDepth <= 0 {
		c.QueueDepth = defaults.QueueDepth
	}

	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaults.InitialBackoff
	}

	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaults.MaxBackoff
	}

	if c.ProcessTimeout <= 0 {
		c.ProcessTimeout = defaults.ProcessTimeout
	}

	if c.Overflow == "" {
		c.Overflow = defaults.Overflow
	}

	return c
}
