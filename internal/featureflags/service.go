package featureflags

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/riskdesk/riskdesk/internal/premium"
)

// ServiceConfig holds configuration for the feature flag service.
type ServiceConfig struct {
	Repository   Repository
	Logger       zerolog.Logger
	CacheTTL     time.Duration // How long to cache flags in memory
	DefaultFlags map[string]*Flag
}

// Service provides feature flag evaluation with caching and fallback.
type Service struct {
	repo         Repository
	logger       zerolog.Logger
	cacheTTL     time.Duration
	defaultFlags map[string]*Flag

	mu          sync.RWMutex
	cache       map[string]*Flag
	cacheExpiry time.Time
}

// NewService creates a new feature flag service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 1 * time.Minute
	}

	defaultFlags := cfg.DefaultFlags
	if defaultFlags == nil {
		defaultFlags = DefaultFlags()
	}

	return &Service{
		repo:         cfg.Repository,
		logger:       cfg.Logger,
		cacheTTL:     cacheTTL,
		defaultFlags: defaultFlags,
		cache:        make(map[string]*Flag),
	}
}

// GetFlag retrieves a feature flag by key.
// Uses cached value if available and not expired, with fallback to defaults.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	if flag := s.getCached(key); flag != nil {
		return flag
	}

	flag, err := s.repo.GetFlag(ctx, key)
	if err == nil {
		s.setCached(key, flag)
		return flag
	}

	if !errors.Is(err, ErrFlagNotFound) {
		s.logger.Warn().Err(err).Str("flag", key).Msg("failed to get feature flag from repository")
	}

	if defaultFlag, ok := s.defaultFlags[key]; ok {
		return defaultFlag
	}
	return nil
}

// GetAllFlags retrieves all feature flags, repository values merged over
// defaults.
func (s *Service) GetAllFlags(ctx context.Context) map[string]*Flag {
	result := make(map[string]*Flag, len(s.defaultFlags))
	for k, v := range s.defaultFlags {
		result[k] = v
	}

	flags, err := s.repo.GetAllFlags(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to get feature flags from repository, using defaults")
		return result
	}

	for k, v := range flags {
		result[k] = v
	}

	s.mu.Lock()
	s.cache = flags
	s.cacheExpiry = time.Now().Add(s.cacheTTL)
	s.mu.Unlock()

	return result
}

// List returns all flags sorted by key.
func (s *Service) List(ctx context.Context) FlagList {
	all := s.GetAllFlags(ctx)
	list := FlagList{Items: make([]Flag, 0, len(all))}
	for _, f := range all {
		list.Items = append(list.Items, *f)
	}
	sort.Slice(list.Items, func(i, j int) bool { return list.Items[i].Key < list.Items[j].Key })
	return list
}

// SetFlag updates a feature flag.
func (s *Service) SetFlag(ctx context.Context, flag *Flag) error {
	flag.UpdatedAt = time.Now()
	if err := s.repo.SetFlag(ctx, flag); err != nil {
		return err
	}
	s.setCached(flag.Key, flag)
	return nil
}

// SetFlags updates multiple feature flags atomically.
func (s *Service) SetFlags(ctx context.Context, flags []*Flag) error {
	now := time.Now()
	for _, flag := range flags {
		flag.UpdatedAt = now
	}

	if err := s.repo.SetFlags(ctx, flags); err != nil {
		return err
	}

	s.mu.Lock()
	for _, flag := range flags {
		s.cache[flag.Key] = flag
	}
	s.mu.Unlock()

	return nil
}

// Update validates and applies an operator change request. Bound updates
// must leave the premium bounds ordered.
func (s *Service) Update(ctx context.Context, req FlagUpdateRequest) (FlagList, error) {
	if len(req.Updates) == 0 {
		return FlagList{}, fmt.Errorf("%w: no updates", ErrInvalidValue)
	}

	flags := make([]*Flag, 0, len(req.Updates))
	pending := make(map[string]*Flag, len(req.Updates))
	for _, u := range req.Updates {
		if err := ValidateUpdate(u); err != nil {
			return FlagList{}, err
		}
		f := &Flag{Key: u.Key, Value: u.Value}
		flags = append(flags, f)
		pending[u.Key] = f
	}

	lookup := func(key string) *Flag {
		if f, ok := pending[key]; ok {
			return f
		}
		return s.GetFlag(ctx, key)
	}
	if err := boundsFrom(lookup).Validate(); err != nil {
		return FlagList{}, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	if err := s.SetFlags(ctx, flags); err != nil {
		return FlagList{}, err
	}

	keys := make([]string, 0, len(flags))
	for _, f := range flags {
		keys = append(keys, f.Key)
	}
	s.logger.Info().Strs("flags", keys).Str("reason", req.Reason).Msg("runtime settings updated")

	return s.List(ctx), nil
}

// Reset removes an operator override so the flag reverts to its default.
// The reset is refused if the default would leave the premium bounds
// inconsistent with the remaining overrides.
func (s *Service) Reset(ctx context.Context, key, reason string) (FlagList, error) {
	def, ok := s.defaultFlags[key]
	if !ok {
		return FlagList{}, fmt.Errorf("%w: %s", ErrUnknownFlag, key)
	}

	lookup := func(k string) *Flag {
		if k == key {
			return def
		}
		return s.GetFlag(ctx, k)
	}
	if err := boundsFrom(lookup).Validate(); err != nil {
		return FlagList{}, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	if err := s.repo.DeleteFlag(ctx, key); err != nil {
		return FlagList{}, err
	}

	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()

	s.logger.Info().Str("flag", key).Str("reason", reason).Msg("runtime setting reset to default")
	return s.List(ctx), nil
}

// InvalidateCache clears the cached flags, forcing a refresh on next access.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*Flag)
	s.cacheExpiry = time.Time{}
}

// IsEnabled returns true if the flag with the given key is enabled (truthy).
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	flag := s.GetFlag(ctx, key)
	return flag.BoolValue(false)
}

func (s *Service) getCached(key string) *Flag {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if time.Now().After(s.cacheExpiry) {
		return nil
	}
	return s.cache[key]
}

func (s *Service) setCached(key string, flag *Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[key] = flag
	if s.cacheExpiry.Before(time.Now()) {
		s.cacheExpiry = time.Now().Add(s.cacheTTL)
	}
}

// Convenience methods for well-known flags.

// PremiumBounds returns the configured prediction bounds. It implements
// premium.BoundsSource.
func (s *Service) PremiumBounds(ctx context.Context) premium.Bounds {
	return boundsFrom(func(key string) *Flag { return s.GetFlag(ctx, key) })
}

// IsFallbackEnabled reports whether failed predictions carry a rule-based
// estimate.
func (s *Service) IsFallbackEnabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagPremiumFallbackEnabled)
}

// IsVisionEnabled reports whether damage classification is served.
func (s *Service) IsVisionEnabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagVisionClassificationEnabled)
}

func boundsFrom(lookup func(key string) *Flag) premium.Bounds {
	def := premium.DefaultBounds()
	return premium.Bounds{
		RejectCeiling: lookup(FlagPremiumRejectCeiling).Float64Value(def.RejectCeiling),
		ClampFloor:    lookup(FlagPremiumClampFloor).Float64Value(def.ClampFloor),
		ClampCeiling:  lookup(FlagPremiumClampCeiling).Float64Value(def.ClampCeiling),
	}
}

var _ premium.BoundsSource = (*Service)(nil)
