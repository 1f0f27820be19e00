package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/riskdesk/riskdesk/internal/api/models"
	"github.com/riskdesk/riskdesk/internal/api/response"
	"github.com/riskdesk/riskdesk/internal/premium"
	"github.com/riskdesk/riskdesk/internal/quotelog"
)

// PremiumPredictor runs the tabular pipeline.
type PremiumPredictor interface {
	Predict(ctx context.Context, p premium.Profile) (*premium.Prediction, error)
}

// FallbackPolicy decides whether failed predictions carry an estimate.
type FallbackPolicy interface {
	IsFallbackEnabled(ctx context.Context) bool
}

// PremiumHandler handles premium prediction endpoints.
type PremiumHandler struct {
	predictor PremiumPredictor
	policy    FallbackPolicy
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewPremiumHandler creates a new PremiumHandler. A nil policy always
// attaches the fallback estimate.
func NewPremiumHandler(predictor PremiumPredictor, policy FallbackPolicy, logger zerolog.Logger) *PremiumHandler {
	return &PremiumHandler{
		predictor: predictor,
		policy:    policy,
		validate:  premium.NewValidator(),
		logger:    logger,
	}
}

// Predict handles POST /v1/premium:predict.
func (h *PremiumHandler) Predict(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.readProfile(w, r)
	if !ok {
		return
	}

	ctx := quotelog.WithSource(r.Context(), quotelog.SourceAPI)
	pred, err := h.predictor.Predict(ctx, profile)
	switch {
	case err == nil:
		response.JSON(w, r, http.StatusOK, models.NewPremiumPrediction(pred))
	case errors.Is(err, premium.ErrArtifactsUnavailable):
		h.logger.Error().Err(err).Msg("premium artifacts unavailable")
		response.ServiceUnavailable(w, r, "premium model artifacts are unavailable")
	case errors.Is(err, premium.ErrEncoding):
		response.BadRequest(w, r, err.Error(), nil)
	case premium.IsModelFailure(err):
		var fallback *models.FallbackEstimate
		if h.policy == nil || h.policy.IsFallbackEnabled(r.Context()) {
			est := models.NewFallbackEstimate(premium.FallbackEstimate(profile))
			fallback = &est
		}
		response.PredictionRejected(w, r, err.Error(), fallback)
	default:
		h.logger.Error().Err(err).Msg("premium prediction failed")
		response.InternalError(w, r, "prediction failed")
	}
}

// Fallback handles POST /v1/premium:fallback.
func (h *PremiumHandler) Fallback(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.readProfile(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewFallbackEstimate(premium.FallbackEstimate(profile)))
}

// readProfile decodes, validates and defaults the request body. It writes
// the error response itself and reports whether the caller may proceed.
func (h *PremiumHandler) readProfile(w http.ResponseWriter, r *http.Request) (premium.Profile, bool) {
	var in models.PremiumRequest
	if err := decodeJSON(r, &in); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return premium.Profile{}, false
	}
	if err := h.validate.Struct(in); err != nil {
		response.BadRequest(w, r, "validation failed", fieldErrors(err))
		return premium.Profile{}, false
	}

	profile := in.Profile()
	if err := profile.Validate(); err != nil {
		var encErr *premium.EncodingError
		if errors.As(err, &encErr) {
			response.BadRequest(w, r, "validation failed", []models.FieldError{{Field: encErr.Field, Message: encErr.Reason}})
			return premium.Profile{}, false
		}
		response.BadRequest(w, r, err.Error(), nil)
		return premium.Profile{}, false
	}
	return profile, true
}
