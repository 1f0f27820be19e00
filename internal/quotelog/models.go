// Package quotelog keeps an audit trail of premium predictions.
package quotelog

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Repository errors.
var (
	ErrEntryNotFound = errors.New("quote log entry not found")
)

// Status is the outcome of a prediction attempt.
type Status string

const (
	StatusQuoted   Status = "quoted"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// Entry is one recorded prediction attempt.
type Entry struct {
	ID               string
	Source           string
	Segment          string
	Age              int
	Plan             string
	Income           decimal.Decimal
	PredictedPremium *int64
	RawPrediction    *int64
	ModelUsed        string
	Status           Status
	Error            string
	Duration         time.Duration
	CreatedAt        time.Time
}

// SourceAPI tags entries recorded by the HTTP API.
const SourceAPI = "api"

type sourceKey struct{}

// WithSource tags predictions made under ctx with the given source.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFromContext returns the source set by WithSource, or "unknown".
func SourceFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return "unknown"
}
