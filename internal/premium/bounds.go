package premium

import (
	"context"
	"fmt"
)

// Bounds are the plausibility limits applied to a raw regressor output.
type Bounds struct {
	// RejectCeiling: raw predictions above it are rejected outright.
	RejectCeiling float64
	// ClampFloor and ClampCeiling bound accepted raw predictions.
	ClampFloor   float64
	ClampCeiling float64
}

// DefaultBounds returns the limits the models were validated against.
func DefaultBounds() Bounds {
	return Bounds{
		RejectCeiling: 2_000_000,
		ClampFloor:    1_000,
		ClampCeiling:  1_500_000,
	}
}

// Validate checks the bounds are ordered.
func (b Bounds) Validate() error {
	if b.ClampFloor <= 0 {
		return fmt.Errorf("clamp floor must be positive, got %v", b.ClampFloor)
	}
	if b.ClampCeiling < b.ClampFloor {
		return fmt.Errorf("clamp ceiling %v below floor %v", b.ClampCeiling, b.ClampFloor)
	}
	if b.RejectCeiling < b.ClampCeiling {
		return fmt.Errorf("reject ceiling %v below clamp ceiling %v", b.RejectCeiling, b.ClampCeiling)
	}
	return nil
}

// Apply validates a raw prediction, already truncated to an integer, and
// clamps it. raw <= 0 yields ErrInvalidPrediction; raw above RejectCeiling
// yields ErrOutOfRange.
func (b Bounds) Apply(raw int64) (int64, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPrediction, raw)
	}
	if float64(raw) > b.RejectCeiling {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, raw)
	}
	clamped := float64(raw)
	if clamped < b.ClampFloor {
		clamped = b.ClampFloor
	}
	if clamped > b.ClampCeiling {
		clamped = b.ClampCeiling
	}
	return int64(clamped), nil
}

// BoundsSource supplies the current bounds, typically from runtime settings.
type BoundsSource interface {
	PremiumBounds(ctx context.Context) Bounds
}

// StaticBounds is a BoundsSource returning fixed bounds.
type StaticBounds Bounds

// PremiumBounds implements BoundsSource.
func (s StaticBounds) PremiumBounds(context.Context) Bounds {
	return Bounds(s)
}
