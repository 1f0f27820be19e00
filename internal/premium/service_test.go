package premium_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskdesk/riskdesk/internal/premium"
)

// stubRegressor returns a fixed value and remembers the last input.
type stubRegressor struct {
	mu    sync.Mutex
	value float64
	err   error
	calls int
	last  premium.FeatureVector
}

func (r *stubRegressor) Predict(_ context.Context, v premium.FeatureVector) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.last = v
	return r.value, r.err
}

type stubArtifacts struct {
	arts *premium.Artifacts
	err  error
}

func (s *stubArtifacts) Tabular(context.Context) (*premium.Artifacts, error) {
	return s.arts, s.err
}

type stubRecorder struct {
	mu       sync.Mutex
	outcomes []premium.Outcome
}

func (r *stubRecorder) RecordQuote(_ context.Context, o premium.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

func identityScaler() *premium.Scaler {
	return premium.NewDirectScaler(&premium.MinMaxTransform{
		Min:   []float64{0, 0, 0, 0},
		Scale: []float64{1, 1, 1, 1},
	})
}

func newTestService(young, rest *stubRegressor) (*premium.Service, *stubRecorder) {
	rec := &stubRecorder{}
	svc := premium.NewService(premium.ServiceConfig{
		Artifacts: &stubArtifacts{arts: &premium.Artifacts{
			YoungModel:  young,
			RestModel:   rest,
			YoungScaler: identityScaler(),
			RestScaler:  identityScaler(),
		}},
		Recorder: rec,
		Logger:   zerolog.New(io.Discard),
	})
	return svc, rec
}

func TestPredict_AgeRouting(t *testing.T) {
	tests := []struct {
		age       int
		wantYoung bool
		wantModel string
	}{
		{18, true, premium.ModelYoungName},
		{25, true, premium.ModelYoungName},
		{26, false, premium.ModelRestName},
		{70, false, premium.ModelRestName},
	}

	for _, tt := range tests {
		young := &stubRegressor{value: 5000}
		rest := &stubRegressor{value: 5000}
		svc, _ := newTestService(young, rest)

		p := premium.DefaultProfile()
		p.Age = tt.age

		pred, err := svc.Predict(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, tt.wantModel, pred.ModelUsed, "age %d", tt.age)

		if tt.wantYoung {
			assert.Equal(t, 1, young.calls)
			assert.Zero(t, rest.calls)
			assert.Equal(t, premium.SegmentYoung, pred.Segment)
		} else {
			assert.Zero(t, young.calls)
			assert.Equal(t, 1, rest.calls)
			assert.Equal(t, premium.SegmentRest, pred.Segment)
		}
	}
}

func TestPredict_Bounds(t *testing.T) {
	t.Run("negative output is invalid", func(t *testing.T) {
		svc, _ := newTestService(&stubRegressor{value: -5}, &stubRegressor{value: -5})
		_, err := svc.Predict(context.Background(), premium.DefaultProfile())
		assert.ErrorIs(t, err, premium.ErrInvalidPrediction)
		assert.True(t, premium.IsModelFailure(err))
	})

	t.Run("fraction below one truncates to zero", func(t *testing.T) {
		svc, _ := newTestService(&stubRegressor{value: 0.9}, &stubRegressor{value: 0.9})
		_, err := svc.Predict(context.Background(), premium.DefaultProfile())
		assert.ErrorIs(t, err, premium.ErrInvalidPrediction)
	})

	t.Run("implausibly high output", func(t *testing.T) {
		svc, _ := newTestService(&stubRegressor{value: 3_000_000}, &stubRegressor{value: 3_000_000})
		_, err := svc.Predict(context.Background(), premium.DefaultProfile())
		assert.ErrorIs(t, err, premium.ErrOutOfRange)
	})

	t.Run("clamp then multiply", func(t *testing.T) {
		svc, _ := newTestService(&stubRegressor{value: 50}, &stubRegressor{value: 50})
		p := premium.DefaultProfile()
		p.InsurancePlan = premium.PlanGold

		pred, err := svc.Predict(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, int64(50), pred.RawPrediction)
		assert.Equal(t, int64(1300), pred.PredictedPremium)
	})

	t.Run("clamped to ceiling", func(t *testing.T) {
		svc, _ := newTestService(&stubRegressor{value: 1_800_000}, &stubRegressor{value: 1_800_000})
		pred, err := svc.Predict(context.Background(), premium.DefaultProfile())
		require.NoError(t, err)
		assert.Equal(t, int64(1_500_000), pred.PredictedPremium)
	})
}

func TestPredict_PlanMultiplier(t *testing.T) {
	tests := []struct {
		plan premium.Plan
		want int64
	}{
		{premium.PlanBronze, 10000},
		{premium.PlanSilver, 11500},
		{premium.PlanGold, 13000},
	}

	for _, tt := range tests {
		t.Run(string(tt.plan), func(t *testing.T) {
			svc, _ := newTestService(&stubRegressor{value: 10000}, &stubRegressor{value: 10000})
			p := premium.DefaultProfile()
			p.InsurancePlan = tt.plan

			pred, err := svc.Predict(context.Background(), p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pred.PredictedPremium)
		})
	}
}

func TestPredict_Diagnostics(t *testing.T) {
	svc, _ := newTestService(&stubRegressor{value: 20000}, &stubRegressor{value: 20000})
	p := premium.DefaultProfile()
	p.Age = 50
	p.Income = decimal.NewFromInt(4_000_000)

	pred, err := svc.Predict(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, premium.AgeGroup46To60, pred.AgeGroup)
	assert.Equal(t, premium.Confidence, pred.Confidence)
	// age 3 + bmi 1 + genetical 2
	assert.InDelta(t, 6.0/25*10, pred.RiskScore, 1e-12)
	assert.False(t, pred.ScalingDegraded)
	assert.Empty(t, pred.Warnings)
}

func TestPredict_MissingScalerDegrades(t *testing.T) {
	rest := &stubRegressor{value: 20000}
	svc := premium.NewService(premium.ServiceConfig{
		Artifacts: &stubArtifacts{arts: &premium.Artifacts{
			YoungModel: &stubRegressor{value: 1},
			RestModel:  rest,
		}},
		Logger: zerolog.New(io.Discard),
	})

	p := premium.DefaultProfile()
	p.Age = 44

	pred, err := svc.Predict(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, pred.ScalingDegraded)
	assert.Len(t, pred.Warnings, 1)

	age, _ := rest.last.Get(premium.ColAge)
	assert.Equal(t, 44.0, age, "regressor sees the unscaled vector")
}

func TestPredict_ScalesBeforeRegressor(t *testing.T) {
	young := &stubRegressor{value: 5000}
	svc := premium.NewService(premium.ServiceConfig{
		Artifacts: &stubArtifacts{arts: &premium.Artifacts{
			YoungModel: young,
			RestModel:  &stubRegressor{value: 1},
			YoungScaler: premium.NewDictScaler([]string{premium.ColAge}, &premium.MinMaxTransform{
				Min:   []float64{-1},
				Scale: []float64{0.1},
			}),
		}},
		Logger: zerolog.New(io.Discard),
	})

	p := premium.DefaultProfile()
	p.Age = 20

	_, err := svc.Predict(context.Background(), p)
	require.NoError(t, err)

	age, _ := young.last.Get(premium.ColAge)
	assert.InDelta(t, 1.0, age, 1e-12)
}

func TestPredict_Failures(t *testing.T) {
	t.Run("artifacts unavailable", func(t *testing.T) {
		svc := premium.NewService(premium.ServiceConfig{
			Artifacts: &stubArtifacts{err: errors.New("no such directory")},
			Logger:    zerolog.New(io.Discard),
		})
		_, err := svc.Predict(context.Background(), premium.DefaultProfile())
		assert.ErrorIs(t, err, premium.ErrArtifactsUnavailable)
		assert.False(t, premium.IsModelFailure(err))
	})

	t.Run("regressor error", func(t *testing.T) {
		boom := errors.New("boom")
		svc, _ := newTestService(&stubRegressor{err: boom}, &stubRegressor{err: boom})
		_, err := svc.Predict(context.Background(), premium.DefaultProfile())

		var failed *premium.PredictionFailedError
		require.ErrorAs(t, err, &failed)
		assert.ErrorIs(t, err, premium.ErrPredictionFailed)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("invalid profile", func(t *testing.T) {
		young := &stubRegressor{value: 5000}
		svc, _ := newTestService(young, young)
		p := premium.DefaultProfile()
		p.Gender = "Other"

		_, err := svc.Predict(context.Background(), p)
		assert.ErrorIs(t, err, premium.ErrPredictionFailed)
		assert.ErrorIs(t, err, premium.ErrEncoding)
		assert.Zero(t, young.calls)
	})
}

func TestPredict_RecordsOutcomes(t *testing.T) {
	svc, rec := newTestService(&stubRegressor{value: 5000}, &stubRegressor{value: -1})

	young := premium.DefaultProfile()
	young.Age = 20
	_, err := svc.Predict(context.Background(), young)
	require.NoError(t, err)

	_, err = svc.Predict(context.Background(), premium.DefaultProfile())
	require.Error(t, err)

	require.Len(t, rec.outcomes, 2)
	assert.NotNil(t, rec.outcomes[0].Prediction)
	assert.NoError(t, rec.outcomes[0].Err)
	assert.Equal(t, premium.SegmentYoung, rec.outcomes[0].Segment)
	assert.Nil(t, rec.outcomes[1].Prediction)
	assert.ErrorIs(t, rec.outcomes[1].Err, premium.ErrInvalidPrediction)
}

func TestPredict_CustomBounds(t *testing.T) {
	svc := premium.NewService(premium.ServiceConfig{
		Artifacts: &stubArtifacts{arts: &premium.Artifacts{
			YoungModel: &stubRegressor{value: 600_000},
			RestModel:  &stubRegressor{value: 600_000},
		}},
		Bounds: premium.StaticBounds{RejectCeiling: 700_000, ClampFloor: 2_000, ClampCeiling: 500_000},
		Logger: zerolog.New(io.Discard),
	})

	pred, err := svc.Predict(context.Background(), premium.DefaultProfile())
	require.NoError(t, err)
	assert.Equal(t, int64(500_000), pred.PredictedPremium)
}

func TestBounds_Validate(t *testing.T) {
	assert.NoError(t, premium.DefaultBounds().Validate())
	assert.Error(t, premium.Bounds{RejectCeiling: 10, ClampFloor: 1, ClampCeiling: 20}.Validate())
	assert.Error(t, premium.Bounds{RejectCeiling: 30, ClampFloor: 25, ClampCeiling: 20}.Validate())
	assert.Error(t, premium.Bounds{RejectCeiling: 30, ClampFloor: 0, ClampCeiling: 20}.Validate())
}
