package premium

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/riskdesk/riskdesk/internal/telemetry"
)

// Segment selects the young or rest model and scaler.
type Segment string

const (
	SegmentYoung Segment = "young"
	SegmentRest  Segment = "rest"
)

// YoungAgeLimit is the oldest age routed to the young segment.
const YoungAgeLimit = 25

// SegmentFor routes an age to its segment.
func SegmentFor(age int) Segment {
	if age <= YoungAgeLimit {
		return SegmentYoung
	}
	return SegmentRest
}

// Model names reported with a prediction.
const (
	ModelYoungName = "ML Young Adult Model"
	ModelRestName  = "ML Adult Model"
)

// ModelName returns the reported model name for the segment.
func (s Segment) ModelName() string {
	if s == SegmentYoung {
		return ModelYoungName
	}
	return ModelRestName
}

// Confidence is the fixed confidence reported with every model prediction.
const Confidence = 0.94

// Artifacts is the immutable set of tabular artifacts. Scalers may be nil
// when their artifact is missing; predictions then run unscaled.
type Artifacts struct {
	YoungModel  Regressor
	RestModel   Regressor
	YoungScaler *Scaler
	RestScaler  *Scaler
}

// ForSegment returns the regressor and scaler for a segment.
func (a *Artifacts) ForSegment(seg Segment) (Regressor, *Scaler) {
	if seg == SegmentYoung {
		return a.YoungModel, a.YoungScaler
	}
	return a.RestModel, a.RestScaler
}

// ArtifactSource loads the tabular artifacts, once per process.
type ArtifactSource interface {
	Tabular(ctx context.Context) (*Artifacts, error)
}

// Prediction is the result of a successful model prediction.
type Prediction struct {
	PredictedPremium int64
	RawPrediction    int64
	ModelUsed        string
	Segment          Segment
	AgeGroup         string
	RiskScore        float64
	Confidence       float64
	ScalingDegraded  bool
	Warnings         []string
}

// Outcome is handed to the QuoteRecorder after every prediction attempt.
type Outcome struct {
	Profile    Profile
	Segment    Segment
	Prediction *Prediction
	Err        error
	Duration   time.Duration
}

// QuoteRecorder persists prediction outcomes.
type QuoteRecorder interface {
	RecordQuote(ctx context.Context, o Outcome) error
}

// ServiceConfig holds configuration for the premium service.
type ServiceConfig struct {
	// Artifacts supplies the regressors and scalers.
	Artifacts ArtifactSource

	// Encoder converts profiles to feature vectors (default: INR lakhs).
	Encoder *Encoder

	// Bounds supplies plausibility limits (default: DefaultBounds).
	Bounds BoundsSource

	// Recorder receives every outcome; optional.
	Recorder QuoteRecorder

	// Metrics records inference telemetry; optional.
	Metrics *telemetry.InferenceMetrics

	Logger zerolog.Logger
}

// Service routes profiles to the young or rest regressor.
type Service struct {
	artifacts ArtifactSource
	encoder   *Encoder
	bounds    BoundsSource
	recorder  QuoteRecorder
	metrics   *telemetry.InferenceMetrics
	logger    zerolog.Logger
}

// NewService creates a new premium service.
func NewService(cfg ServiceConfig) *Service {
	encoder := cfg.Encoder
	if encoder == nil {
		encoder = NewEncoder(decimal.Zero)
	}

	bounds := cfg.Bounds
	if bounds == nil {
		bounds = StaticBounds(DefaultBounds())
	}

	return &Service{
		artifacts: cfg.Artifacts,
		encoder:   encoder,
		bounds:    bounds,
		recorder:  cfg.Recorder,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// Encoder returns the encoder used by the service.
func (s *Service) Encoder() *Encoder {
	return s.encoder
}

// Predict runs the full tabular pipeline for one profile.
func (s *Service) Predict(ctx context.Context, p Profile) (*Prediction, error) {
	start := time.Now()
	seg := SegmentFor(p.Age)

	pred, err := s.predict(ctx, p, seg)
	elapsed := time.Since(start)

	s.metrics.RecordInference(ctx, "premium", string(seg), elapsed, err)
	s.record(ctx, Outcome{Profile: p, Segment: seg, Prediction: pred, Err: err, Duration: elapsed})

	if err != nil {
		s.logger.Debug().Err(err).Str("segment", string(seg)).Msg("premium prediction failed")
		return nil, err
	}
	return pred, nil
}

func (s *Service) predict(ctx context.Context, p Profile, seg Segment) (*Prediction, error) {
	v, err := s.encoder.Encode(p)
	if err != nil {
		return nil, &PredictionFailedError{Reason: err.Error(), Err: err}
	}

	if s.artifacts == nil {
		return nil, ErrArtifactsUnavailable
	}
	arts, err := s.artifacts.Tabular(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactsUnavailable, err)
	}
	model, scaler := arts.ForSegment(seg)
	if model == nil {
		return nil, fmt.Errorf("%w: no %s model", ErrArtifactsUnavailable, seg)
	}

	pred := &Prediction{
		ModelUsed:  seg.ModelName(),
		Segment:    seg,
		AgeGroup:   AgeGroup(p.Age),
		RiskScore:  RiskScore(p, v[idxIncomeLakhs]),
		Confidence: Confidence,
	}

	scaled := Scale(v, scaler)
	if scaled.Degraded() {
		reason := scaled.Warning.String()
		s.logger.Warn().
			Str("segment", string(seg)).
			Str("reason", reason).
			Msg("predicting on unscaled features")
		s.metrics.RecordScalingDegraded(ctx, string(seg), scaled.Warning.Reason)
		pred.ScalingDegraded = true
		pred.Warnings = append(pred.Warnings, reason)
	}

	raw, err := model.Predict(ctx, scaled.Vector)
	if err != nil {
		return nil, &PredictionFailedError{Reason: "model inference failed", Err: err}
	}

	truncated, err := truncateRaw(raw)
	if err != nil {
		return nil, err
	}
	pred.RawPrediction = truncated

	b := s.bounds.PremiumBounds(ctx)
	if err := b.Validate(); err != nil {
		s.logger.Warn().Err(err).Msg("invalid premium bounds, using defaults")
		b = DefaultBounds()
	}

	clamped, err := b.Apply(truncated)
	if err != nil {
		return nil, err
	}

	pred.PredictedPremium = decimal.NewFromInt(clamped).Mul(p.InsurancePlan.Multiplier()).IntPart()
	return pred, nil
}

// truncateRaw converts a regressor output to an integer toward zero,
// mapping values an int64 cannot hold onto the bound errors.
func truncateRaw(raw float64) (int64, error) {
	switch {
	case math.IsNaN(raw):
		return 0, fmt.Errorf("%w: NaN", ErrInvalidPrediction)
	case raw >= math.MaxInt64:
		return 0, fmt.Errorf("%w: %g", ErrOutOfRange, raw)
	case raw <= math.MinInt64:
		return 0, fmt.Errorf("%w: %g", ErrInvalidPrediction, raw)
	}
	return int64(raw), nil
}

func (s *Service) record(ctx context.Context, o Outcome) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordQuote(context.WithoutCancel(ctx), o); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record quote")
	}
}

// IsModelFailure reports whether err should be answered with a fallback
// estimate rather than a client error.
func IsModelFailure(err error) bool {
	return errors.Is(err, ErrPredictionFailed) ||
		errors.Is(err, ErrInvalidPrediction) ||
		errors.Is(err, ErrOutOfRange)
}
