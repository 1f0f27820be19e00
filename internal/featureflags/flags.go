// Package featureflags holds runtime-tunable settings: prediction bounds and
// kill switches that operators can change without a redeploy.
package featureflags

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/riskdesk/riskdesk/internal/premium"
)

// Well-known feature flag keys.
const (
	// FlagPremiumRejectCeiling rejects raw premium predictions above it.
	FlagPremiumRejectCeiling = "premium_reject_ceiling"

	// FlagPremiumClampFloor is the lower clamp for raw premium predictions.
	FlagPremiumClampFloor = "premium_clamp_floor"

	// FlagPremiumClampCeiling is the upper clamp for raw premium predictions.
	FlagPremiumClampCeiling = "premium_clamp_ceiling"

	// FlagPremiumFallbackEnabled attaches a rule-based estimate to failed
	// predictions.
	FlagPremiumFallbackEnabled = "premium_fallback_enabled"

	// FlagVisionClassificationEnabled gates the damage classification route.
	FlagVisionClassificationEnabled = "vision_classification_enabled"
)

// Flag represents a feature flag with its current value.
type Flag struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// FlagList represents a list of feature flags.
type FlagList struct {
	Items []Flag `json:"items"`
}

// FlagUpdate represents a single flag update request.
type FlagUpdate struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// FlagUpdateRequest represents a request to update feature flags.
type FlagUpdateRequest struct {
	Updates []FlagUpdate `json:"updates"`
	Reason  string       `json:"reason"`
}

// BoolValue returns the flag value as a boolean.
// Returns the default value if the flag is nil, not found, or not a boolean.
func (f *Flag) BoolValue(defaultValue bool) bool {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		// JSON unmarshals numbers as float64
		return v != 0
	default:
		return defaultValue
	}
}

// Float64Value returns the flag value as a float64.
// Returns the default value if the flag is nil, not found, or not a number.
func (f *Flag) Float64Value(defaultValue float64) float64 {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return defaultValue
		}
		return n
	default:
		return defaultValue
	}
}

type valueKind int

const (
	kindBool valueKind = iota
	kindNumber
)

var knownFlags = map[string]valueKind{
	FlagPremiumRejectCeiling:        kindNumber,
	FlagPremiumClampFloor:           kindNumber,
	FlagPremiumClampCeiling:         kindNumber,
	FlagPremiumFallbackEnabled:      kindBool,
	FlagVisionClassificationEnabled: kindBool,
}

// ValidateUpdate checks that key is a known flag and value has its type.
func ValidateUpdate(u FlagUpdate) error {
	kind, ok := knownFlags[u.Key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFlag, u.Key)
	}
	switch kind {
	case kindBool:
		if _, ok := u.Value.(bool); !ok {
			return fmt.Errorf("%w: %s must be a boolean", ErrInvalidValue, u.Key)
		}
	case kindNumber:
		v, ok := u.Value.(float64)
		if !ok {
			return fmt.Errorf("%w: %s must be a number", ErrInvalidValue, u.Key)
		}
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidValue, u.Key)
		}
	}
	return nil
}

// DefaultFlags returns the default feature flags for the application.
func DefaultFlags() map[string]*Flag {
	now := time.Now()
	bounds := premium.DefaultBounds()
	return map[string]*Flag{
		FlagPremiumRejectCeiling: {
			Key:       FlagPremiumRejectCeiling,
			Value:     bounds.RejectCeiling,
			UpdatedAt: now,
		},
		FlagPremiumClampFloor: {
			Key:       FlagPremiumClampFloor,
			Value:     bounds.ClampFloor,
			UpdatedAt: now,
		},
		FlagPremiumClampCeiling: {
			Key:       FlagPremiumClampCeiling,
			Value:     bounds.ClampCeiling,
			UpdatedAt: now,
		},
		FlagPremiumFallbackEnabled: {
			Key:       FlagPremiumFallbackEnabled,
			Value:     true,
			UpdatedAt: now,
		},
		FlagVisionClassificationEnabled: {
			Key:       FlagVisionClassificationEnabled,
			Value:     true,
			UpdatedAt: now,
		},
	}
}
