package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/riskdesk/riskdesk/internal/premium"
	"github.com/riskdesk/riskdesk/internal/quotelog"
)

// Predictor scores one profile.
type Predictor interface {
	Predict(ctx context.Context, p premium.Profile) (*premium.Prediction, error)
}

// ItemStatus is the outcome of one profile in a batch.
type ItemStatus string

const (
	ItemQuoted   ItemStatus = "quoted"
	ItemRejected ItemStatus = "rejected"
	ItemInvalid  ItemStatus = "invalid"
	ItemFailed   ItemStatus = "failed"
)

// ItemResult is the outcome of one profile.
type ItemResult struct {
	Index            int
	Status           ItemStatus
	PredictedPremium int64
	Error            string

	// retryable marks failures caused by the environment rather than the
	// profile, such as missing artifacts or cancellation.
	retryable bool
}

// BatchResult contains the result of a batch run.
type BatchResult struct {
	BatchID   string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Total     int
	Quoted    int
	Rejected  int
	Invalid   int
	Failed    int
	Items     []ItemResult
}

// Retryable reports whether any item failed for a reason a redelivery
// could fix.
func (r *BatchResult) Retryable() bool {
	for _, it := range r.Items {
		if it.retryable {
			return true
		}
	}
	return false
}

// BatchMetrics tracks batch job statistics.
type BatchMetrics struct {
	mu sync.RWMutex

	// Counters
	Batches  int64
	Quoted   int64
	Rejected int64
	Invalid  int64
	Failed   int64

	// Timings
	LastBatchAt       time.Time
	LastBatchDuration time.Duration
	TotalDuration     time.Duration
}

// BatchJobConfig holds configuration for creating a BatchJob.
type BatchJobConfig struct {
	Config    BatchConfig
	Predictor Predictor
	Logger    zerolog.Logger
}

// BatchJob validates and scores batches of profiles with a bounded pool.
type BatchJob struct {
	config    BatchConfig
	predictor Predictor
	validate  *validator.Validate
	logger    zerolog.Logger

	metrics *BatchMetrics
}

// NewBatchJob creates a new batch quoting job.
func NewBatchJob(cfg BatchJobConfig) *BatchJob {
	return &BatchJob{
		config:    cfg.Config.withDefaults(),
		predictor: cfg.Predictor,
		validate:  premium.NewValidator(),
		logger:    cfg.Logger,
		metrics:   &BatchMetrics{},
	}
}

// MaxProfiles returns the largest accepted batch.
func (j *BatchJob) MaxProfiles() int {
	return j.config.MaxProfiles
}

type indexedProfile struct {
	index int
	input premium.ProfileInput
}

// Run scores every profile of the batch. Predictions are recorded in the
// quote log under the source "batch:<batchID>". Items are returned in
// input order.
func (j *BatchJob) Run(ctx context.Context, batchID string, profiles []premium.ProfileInput) *BatchResult {
	startTime := time.Now()
	result := &BatchResult{
		BatchID:   batchID,
		StartTime: startTime,
		Total:     len(profiles),
		Items:     make([]ItemResult, len(profiles)),
	}

	logger := j.logger.With().Str("batch_id", batchID).Logger()
	logger.Info().
		Int("profiles", len(profiles)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting quote batch")

	ctx = quotelog.WithSource(ctx, "batch:"+batchID)

	// Create work channels
	work := make(chan indexedProfile, len(profiles))
	results := make(chan ItemResult, len(profiles))

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.scoreWorker(ctx, work, results)
		}()
	}

	// Send profiles to workers
	for i, p := range profiles {
		work <- indexedProfile{index: i, input: p}
	}
	close(work)

	// Wait for workers to complete
	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results
	seen := make([]bool, len(profiles))
	for item := range results {
		result.Items[item.Index] = item
		seen[item.Index] = true
	}
	// Workers stop early on cancellation; unscored items are failures.
	for i, ok := range seen {
		if !ok {
			result.Items[i] = ItemResult{Index: i, Status: ItemFailed, Error: "batch cancelled", retryable: true}
		}
	}
	for _, item := range result.Items {
		switch item.Status {
		case ItemQuoted:
			result.Quoted++
		case ItemRejected:
			result.Rejected++
		case ItemInvalid:
			result.Invalid++
		case ItemFailed:
			result.Failed++
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	// Update metrics
	j.updateMetrics(result)

	logger.Info().
		Dur("duration", result.Duration).
		Int("quoted", result.Quoted).
		Int("rejected", result.Rejected).
		Int("invalid", result.Invalid).
		Int("failed", result.Failed).
		Msg("quote batch completed")

	return result
}

func (j *BatchJob) scoreWorker(ctx context.Context, work <-chan indexedProfile, results chan<- ItemResult) {
	for p := range work {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.score(ctx, p)
		}
	}
}

func (j *BatchJob) score(ctx context.Context, p indexedProfile) ItemResult {
	item := ItemResult{Index: p.index}

	if err := j.validate.Struct(p.input); err != nil {
		item.Status = ItemInvalid
		item.Error = validationSummary(err)
		return item
	}
	profile := p.input.Profile()
	if err := profile.Validate(); err != nil {
		item.Status = ItemInvalid
		item.Error = err.Error()
		return item
	}

	// Create timeout context for this profile
	itemCtx, cancel := context.WithTimeout(ctx, j.config.ItemTimeout)
	defer cancel()

	pred, err := j.predictor.Predict(itemCtx, profile)
	switch {
	case err == nil:
		item.Status = ItemQuoted
		item.PredictedPremium = pred.PredictedPremium
	case errors.Is(err, premium.ErrInvalidPrediction), errors.Is(err, premium.ErrOutOfRange):
		item.Status = ItemRejected
		item.Error = err.Error()
	case errors.Is(err, premium.ErrEncoding):
		item.Status = ItemInvalid
		item.Error = err.Error()
	default:
		item.Status = ItemFailed
		item.Error = err.Error()
		item.retryable = errors.Is(err, premium.ErrArtifactsUnavailable) ||
			errors.Is(err, context.Canceled) ||
			ctx.Err() != nil
	}
	return item
}

// validationSummary names the first offending field.
func validationSummary(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Field() + ": failed " + verrs[0].Tag() + " validation"
	}
	return err.Error()
}

func (j *BatchJob) updateMetrics(result *BatchResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.Batches++
	j.metrics.Quoted += int64(result.Quoted)
	j.metrics.Rejected += int64(result.Rejected)
	j.metrics.Invalid += int64(result.Invalid)
	j.metrics.Failed += int64(result.Failed)
	j.metrics.LastBatchAt = result.EndTime
	j.metrics.LastBatchDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *BatchJob) GetMetrics() BatchMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return BatchMetrics{
		Batches:           j.metrics.Batches,
		Quoted:            j.metrics.Quoted,
		Rejected:          j.metrics.Rejected,
		Invalid:           j.metrics.Invalid,
		Failed:            j.metrics.Failed,
		LastBatchAt:       j.metrics.LastBatchAt,
		LastBatchDuration: j.metrics.LastBatchDuration,
		TotalDuration:     j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *BatchJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"batches":             m.Batches,
		"quoted":              m.Quoted,
		"rejected":            m.Rejected,
		"invalid":             m.Invalid,
		"failed":              m.Failed,
		"last_batch_at":       m.LastBatchAt,
		"last_batch_duration": m.LastBatchDuration.String(),
		"total_duration":      m.TotalDuration.String(),
	}
}
