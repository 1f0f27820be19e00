// Package worker scores batches of premium quotes delivered over Pub/Sub.
package worker

import (
	"time"
)

// Job types carried in the job_type field of a message.
const (
	JobTypeQuoteBatch  = "quote_batch"
	JobTypeHealthCheck = "health_check"
)

// BatchConfig holds configuration for the batch quoting job.
type BatchConfig struct {
	// Concurrency is the number of profiles scored at once.
	// Default: 4
	Concurrency int

	// ItemTimeout bounds the prediction of a single profile.
	// Default: 30 seconds
	ItemTimeout time.Duration

	// MaxProfiles rejects larger batches outright.
	// Default: 1000
	MaxProfiles int
}

// DefaultBatchConfig returns the default batch configuration.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Concurrency: 4,
		ItemTimeout: 30 * time.Second,
		MaxProfiles: 1000,
	}
}

// withDefaults fills zero fields from DefaultBatchConfig.
func (c BatchConfig) withDefaults() BatchConfig {
	def := DefaultBatchConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.ItemTimeout <= 0 {
		c.ItemTimeout = def.ItemTimeout
	}
	if c.MaxProfiles <= 0 {
		c.MaxProfiles = def.MaxProfiles
	}
	return c
}
