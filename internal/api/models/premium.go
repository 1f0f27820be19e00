package models

import (
	"encoding/json"
	"net/http"

	"github.com/riskdesk/riskdesk/internal/premium"
)

// PremiumRequest is the body of POST /v1/premium:predict and
// POST /v1/premium:fallback. All fields are optional.
type PremiumRequest = premium.ProfileInput

// PremiumPrediction is a successful model prediction.
type PremiumPrediction struct {
	PredictedPremium int64    `json:"predicted_premium"`
	ModelUsed        string   `json:"model_used"`
	AgeGroup         string   `json:"age_group"`
	RiskScore        float64  `json:"risk_score"`
	Confidence       float64  `json:"confidence"`
	Segment          string   `json:"segment"`
	ScalingDegraded  bool     `json:"scaling_degraded"`
	Warnings         []string `json:"warnings,omitempty"`
}

// NewPremiumPrediction converts a service prediction to its wire form.
func NewPremiumPrediction(p *premium.Prediction) PremiumPrediction {
	return PremiumPrediction{
		PredictedPremium: p.PredictedPremium,
		ModelUsed:        p.ModelUsed,
		AgeGroup:         p.AgeGroup,
		RiskScore:        p.RiskScore,
		Confidence:       p.Confidence,
		Segment:          string(p.Segment),
		ScalingDegraded:  p.ScalingDegraded,
		Warnings:         p.Warnings,
	}
}

// FallbackEstimate is the rule-based premium.
type FallbackEstimate struct {
	EstimatedPremium int64  `json:"estimated_premium"`
	ModelUsed        string `json:"model_used"`
	AgeGroup         string `json:"age_group"`
}

// NewFallbackEstimate converts a rule-based estimate to its wire form.
func NewFallbackEstimate(f premium.Fallback) FallbackEstimate {
	return FallbackEstimate{
		EstimatedPremium: f.EstimatedPremium.IntPart(),
		ModelUsed:        f.ModelUsed,
		AgeGroup:         f.AgeGroup,
	}
}

// PredictionProblem is a 422 problem carrying the failure reason and, when
// enabled, a fallback estimate.
type PredictionProblem struct {
	*Problem

	Error    string            `json:"error"`
	Fallback *FallbackEstimate `json:"fallback,omitempty"`
}

// Write writes the problem as JSON to the ResponseWriter.
func (p *PredictionProblem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-Id", p.TraceID)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
