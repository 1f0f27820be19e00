package premium

import (
	"errors"
	"fmt"
)

// Pipeline errors.
var (
	ErrEncoding             = errors.New("invalid profile")
	ErrInvalidPrediction    = errors.New("model returned non-positive value")
	ErrOutOfRange           = errors.New("prediction implausibly high")
	ErrPredictionFailed     = errors.New("prediction failed")
	ErrArtifactsUnavailable = errors.New("premium model artifacts unavailable")
)

// EncodingError describes a profile field the encoder cannot represent.
type EncodingError struct {
	Field  string
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap lets callers match ErrEncoding with errors.Is.
func (e *EncodingError) Unwrap() error {
	return ErrEncoding
}

// PredictionFailedError is returned when encoding or the regressor call fails.
// Callers are expected to fall back to FallbackEstimate.
type PredictionFailedError struct {
	Reason string
	Err    error
}

func (e *PredictionFailedError) Error() string {
	return fmt.Sprintf("prediction failed: %s", e.Reason)
}

// Is reports ErrPredictionFailed so the wrapped cause stays reachable via Unwrap.
func (e *PredictionFailedError) Is(target error) bool {
	return target == ErrPredictionFailed
}

func (e *PredictionFailedError) Unwrap() error {
	return e.Err
}
