package featureflags_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/riskdesk/riskdesk/internal/featureflags"
	"github.com/riskdesk/riskdesk/internal/premium"
)

func newService(repo featureflags.Repository) *featureflags.Service {
	return featureflags.NewService(featureflags.ServiceConfig{
		Repository: repo,
		Logger:     zerolog.Nop(),
		CacheTTL:   1 * time.Minute,
	})
}

// failingRepository fails every call.
type failingRepository struct{}

var errStorage = errors.New("storage down")

func (failingRepository) GetFlag(context.Context, string) (*featureflags.Flag, error) {
	return nil, errStorage
}

func (failingRepository) GetAllFlags(context.Context) (map[string]*featureflags.Flag, error) {
	return nil, errStorage
}

func (failingRepository) SetFlag(context.Context, *featureflags.Flag) error { return errStorage }

func (failingRepository) SetFlags(context.Context, []*featureflags.Flag) error { return errStorage }

func (failingRepository) DeleteFlag(context.Context, string) error { return errStorage }

func TestService_GetFlag(t *testing.T) {
	service := newService(featureflags.NewInMemoryRepository())
	ctx := context.Background()

	flag := service.GetFlag(ctx, featureflags.FlagPremiumFallbackEnabled)
	if flag == nil {
		t.Fatal("expected flag to be returned")
	}
	if flag.Key != featureflags.FlagPremiumFallbackEnabled {
		t.Errorf("expected key %q, got %q", featureflags.FlagPremiumFallbackEnabled, flag.Key)
	}
	if !flag.BoolValue(false) {
		t.Error("expected premium_fallback_enabled to be true by default")
	}
}

func TestService_PremiumBoundsDefaults(t *testing.T) {
	service := newService(featureflags.NewInMemoryRepository())

	got := service.PremiumBounds(context.Background())
	if got != premium.DefaultBounds() {
		t.Errorf("expected default bounds, got %+v", got)
	}
}

func TestService_PremiumBoundsFromRepository(t *testing.T) {
	repo := featureflags.NewInMemoryRepositoryWithFlags(map[string]*featureflags.Flag{
		featureflags.FlagPremiumClampFloor: {Key: featureflags.FlagPremiumClampFloor, Value: float64(2500)},
	})
	service := newService(repo)

	got := service.PremiumBounds(context.Background())
	if got.ClampFloor != 2500 {
		t.Errorf("expected clamp floor 2500, got %v", got.ClampFloor)
	}
	if got.ClampCeiling != premium.DefaultBounds().ClampCeiling {
		t.Errorf("expected default clamp ceiling, got %v", got.ClampCeiling)
	}
}

func TestService_PremiumBoundsRepositoryDown(t *testing.T) {
	service := newService(failingRepository{})

	if got := service.PremiumBounds(context.Background()); got != premium.DefaultBounds() {
		t.Errorf("expected default bounds when repository fails, got %+v", got)
	}
	if !service.IsFallbackEnabled(context.Background()) {
		t.Error("expected fallback enabled from defaults")
	}
}

func TestService_Update(t *testing.T) {
	service := newService(featureflags.NewInMemoryRepository())
	ctx := context.Background()

	list, err := service.Update(ctx, featureflags.FlagUpdateRequest{
		Updates: []featureflags.FlagUpdate{
			{Key: featureflags.FlagPremiumClampCeiling, Value: float64(1_200_000)},
			{Key: featureflags.FlagVisionClassificationEnabled, Value: false},
		},
		Reason: "model drift",
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if len(list.Items) != 5 {
		t.Errorf("expected 5 flags, got %d", len(list.Items))
	}
	for i := 1; i < len(list.Items); i++ {
		if list.Items[i-1].Key > list.Items[i].Key {
			t.Errorf("expected sorted keys, got %q before %q", list.Items[i-1].Key, list.Items[i].Key)
		}
	}

	if got := service.PremiumBounds(ctx).ClampCeiling; got != 1_200_000 {
		t.Errorf("expected clamp ceiling 1200000, got %v", got)
	}
	if service.IsVisionEnabled(ctx) {
		t.Error("expected vision classification to be disabled")
	}
}

func TestService_UpdateRejects(t *testing.T) {
	tests := []struct {
		name    string
		updates []featureflags.FlagUpdate
		wantErr error
	}{
		{
			name:    "empty",
			wantErr: featureflags.ErrInvalidValue,
		},
		{
			name:    "unknown key",
			updates: []featureflags.FlagUpdate{{Key: "dark_mode", Value: true}},
			wantErr: featureflags.ErrUnknownFlag,
		},
		{
			name:    "bool for number",
			updates: []featureflags.FlagUpdate{{Key: featureflags.FlagPremiumClampFloor, Value: true}},
			wantErr: featureflags.ErrInvalidValue,
		},
		{
			name:    "number for bool",
			updates: []featureflags.FlagUpdate{{Key: featureflags.FlagPremiumFallbackEnabled, Value: float64(1)}},
			wantErr: featureflags.ErrInvalidValue,
		},
		{
			name:    "negative bound",
			updates: []featureflags.FlagUpdate{{Key: featureflags.FlagPremiumClampFloor, Value: float64(-1)}},
			wantErr: featureflags.ErrInvalidValue,
		},
		{
			name:    "floor above ceiling",
			updates: []featureflags.FlagUpdate{{Key: featureflags.FlagPremiumClampFloor, Value: float64(1_600_000)}},
			wantErr: featureflags.ErrInvalidValue,
		},
		{
			name:    "reject below clamp ceiling",
			updates: []featureflags.FlagUpdate{{Key: featureflags.FlagPremiumRejectCeiling, Value: float64(1_000_000)}},
			wantErr: featureflags.ErrInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := newService(featureflags.NewInMemoryRepository())
			_, err := service.Update(context.Background(), featureflags.FlagUpdateRequest{Updates: tt.updates})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if got := service.PremiumBounds(context.Background()); got != premium.DefaultBounds() {
				t.Errorf("rejected update must not change bounds, got %+v", got)
			}
		})
	}
}

func TestService_UpdateRepositoryError(t *testing.T) {
	service := newService(failingRepository{})
	_, err := service.Update(context.Background(), featureflags.FlagUpdateRequest{
		Updates: []featureflags.FlagUpdate{{Key: featureflags.FlagPremiumFallbackEnabled, Value: false}},
	})
	if !errors.Is(err, errStorage) {
		t.Errorf("expected storage error, got %v", err)
	}
}

func TestService_InvalidateCache(t *testing.T) {
	repo := featureflags.NewInMemoryRepository()
	service := newService(repo)
	ctx := context.Background()

	if !service.IsFallbackEnabled(ctx) {
		t.Fatal("expected fallback enabled")
	}

	// Change the repository behind the service's back.
	if err := repo.SetFlag(ctx, &featureflags.Flag{Key: featureflags.FlagPremiumFallbackEnabled, Value: false}); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if !service.IsFallbackEnabled(ctx) {
		t.Error("expected cached value before invalidation")
	}

	service.InvalidateCache()
	if service.IsFallbackEnabled(ctx) {
		t.Error("expected fresh value after invalidation")
	}
}

func TestFlag_ValueHelpers(t *testing.T) {
	flag := &featureflags.Flag{Value: float64(1)}
	if !flag.BoolValue(false) {
		t.Error("expected non-zero number to be truthy")
	}
	flag = &featureflags.Flag{Value: "yes"}
	if flag.BoolValue(false) {
		t.Error("expected string to fall back to default")
	}
	flag = &featureflags.Flag{Value: 42}
	if flag.Float64Value(0) != 42 {
		t.Errorf("expected 42, got %v", flag.Float64Value(0))
	}
	flag = &featureflags.Flag{Value: true}
	if flag.Float64Value(7) != 7 {
		t.Error("expected bool to fall back to default")
	}
}

func TestFlag_NilFlag(t *testing.T) {
	var flag *featureflags.Flag
	if !flag.BoolValue(true) {
		t.Error("expected default for nil flag")
	}
	if flag.Float64Value(3.5) != 3.5 {
		t.Error("expected default for nil flag")
	}
}

func TestInMemoryRepository_DeleteFlag(t *testing.T) {
	repo := featureflags.NewInMemoryRepository()
	ctx := context.Background()

	if err := repo.DeleteFlag(ctx, featureflags.FlagPremiumClampFloor); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err := repo.GetFlag(ctx, featureflags.FlagPremiumClampFloor)
	if !errors.Is(err, featureflags.ErrFlagNotFound) {
		t.Errorf("expected ErrFlagNotFound, got %v", err)
	}
}

func TestService_Reset(t *testing.T) {
	repo := featureflags.NewInMemoryRepository()
	service := newService(repo)
	ctx := context.Background()

	if _, err := service.Update(ctx, featureflags.FlagUpdateRequest{
		Updates: []featureflags.FlagUpdate{{Key: featureflags.FlagPremiumFallbackEnabled, Value: false}},
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if service.IsFallbackEnabled(ctx) {
		t.Fatal("expected override to disable fallback")
	}

	if _, err := service.Reset(ctx, featureflags.FlagPremiumFallbackEnabled, "incident closed"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !service.IsFallbackEnabled(ctx) {
		t.Error("expected default after reset")
	}
	if _, err := repo.GetFlag(ctx, featureflags.FlagPremiumFallbackEnabled); !errors.Is(err, featureflags.ErrFlagNotFound) {
		t.Errorf("expected override removed from repository, got %v", err)
	}
}

func TestService_ResetUnknownFlag(t *testing.T) {
	service := newService(featureflags.NewInMemoryRepository())
	_, err := service.Reset(context.Background(), "premium_surcharge_rate", "")
	if !errors.Is(err, featureflags.ErrUnknownFlag) {
		t.Errorf("expected ErrUnknownFlag, got %v", err)
	}
}

func TestService_ResetRejectsInconsistentBounds(t *testing.T) {
	service := newService(featureflags.NewInMemoryRepository())
	ctx := context.Background()
	def := premium.DefaultBounds()

	// Raise the floor above the default ceiling together with the ceiling,
	// then try to put the ceiling back.
	if _, err := service.Update(ctx, featureflags.FlagUpdateRequest{
		Updates: []featureflags.FlagUpdate{
			{Key: featureflags.FlagPremiumClampCeiling, Value: def.ClampCeiling * 4},
			{Key: featureflags.FlagPremiumRejectCeiling, Value: def.ClampCeiling * 5},
			{Key: featureflags.FlagPremiumClampFloor, Value: def.ClampCeiling * 2},
		},
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	_, err := service.Reset(ctx, featureflags.FlagPremiumClampCeiling, "")
	if !errors.Is(err, featureflags.ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
}
