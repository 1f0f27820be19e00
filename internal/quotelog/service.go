package quotelog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/riskdesk/riskdesk/internal/premium"
)

// Listing limits.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// ServiceConfig holds configuration for the quote log service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger
}

// Service records prediction outcomes and serves them back to operators.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new quote log service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
		now:    time.Now,
	}
}

// RecordQuote stores one prediction outcome. It implements
// premium.QuoteRecorder.
func (s *Service) RecordQuote(ctx context.Context, o premium.Outcome) error {
	e := &Entry{
		ID:        "qt_" + uuid.New().String(),
		Source:    SourceFromContext(ctx),
		Segment:   string(o.Segment),
		Age:       o.Profile.Age,
		Plan:      string(o.Profile.InsurancePlan),
		Income:    o.Profile.Income,
		Status:    statusOf(o.Err),
		Duration:  o.Duration,
		CreatedAt: s.now().UTC(),
	}
	if o.Prediction != nil {
		premiumValue := o.Prediction.PredictedPremium
		raw := o.Prediction.RawPrediction
		e.PredictedPremium = &premiumValue
		e.RawPrediction = &raw
		e.ModelUsed = o.Prediction.ModelUsed
	}
	if o.Err != nil {
		e.Error = o.Err.Error()
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return err
	}
	s.logger.Debug().Str("quote_id", e.ID).Str("status", string(e.Status)).Msg("quote recorded")
	return nil
}

// Recent lists entries newest first. The limit is clamped to MaxListLimit.
func (s *Service) Recent(ctx context.Context, opts ListOptions) (*ListResult, error) {
	switch {
	case opts.Limit <= 0:
		opts.Limit = DefaultListLimit
	case opts.Limit > MaxListLimit:
		opts.Limit = MaxListLimit
	}
	return s.repo.List(ctx, opts)
}

// Get retrieves a single entry.
func (s *Service) Get(ctx context.Context, id string) (*Entry, error) {
	return s.repo.Get(ctx, id)
}

func statusOf(err error) Status {
	switch {
	case err == nil:
		return StatusQuoted
	case errors.Is(err, premium.ErrInvalidPrediction), errors.Is(err, premium.ErrOutOfRange):
		return StatusRejected
	default:
		return StatusFailed
	}
}

var _ premium.QuoteRecorder = (*Service)(nil)
