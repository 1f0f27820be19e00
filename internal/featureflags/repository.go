package featureflags

import (
	"context"
	"errors"
)

var (
	ErrFlagNotFound = errors.New("feature flag not found")
	// ErrUnknownFlag means the key is not one of DefaultFlags.
	ErrUnknownFlag = errors.New("unknown feature flag")
	// ErrInvalidValue covers wrong JSON types and out-of-range or
	// inconsistent premium bounds.
	ErrInvalidValue = errors.New("invalid feature flag value")
)

// Repository persists operator overrides. Keys absent from the store take
// their value from DefaultFlags, so DeleteFlag is how an override is undone.
type Repository interface {
	// GetFlag returns ErrFlagNotFound when key has no override.
	GetFlag(ctx context.Context, key string) (*Flag, error)
	GetAllFlags(ctx context.Context) (map[string]*Flag, error)
	SetFlag(ctx context.Context, flag *Flag) error
	// SetFlags writes all overrides or none of them.
	SetFlags(ctx context.Context, flags []*Flag) error
	DeleteFlag(ctx context.Context, key string) error
}
