package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskdesk/riskdesk/internal/api/handler"
	"github.com/riskdesk/riskdesk/internal/api/models"
	"github.com/riskdesk/riskdesk/internal/featureflags"
)

func newSettingsHandler() (*handler.SettingsHandler, *featureflags.Service) {
	svc := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepository(),
		Logger:     zerolog.New(io.Discard),
	})
	return handler.NewSettingsHandler(svc, zerolog.New(io.Discard)), svc
}

func TestSettingsHandler_ListSettings(t *testing.T) {
	h, _ := newSettingsHandler()

	rec := httptest.NewRecorder()
	h.ListSettings(rec, httptest.NewRequest(http.MethodGet, "/v1/admin/settings", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body models.SettingList
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	keys := make([]string, 0, len(body.Items))
	for _, s := range body.Items {
		keys = append(keys, s.Key)
	}
	assert.Contains(t, keys, featureflags.FlagPremiumRejectCeiling)
	assert.Contains(t, keys, featureflags.FlagVisionClassificationEnabled)
}

func TestSettingsHandler_UpdateSettings(t *testing.T) {
	h, svc := newSettingsHandler()

	body := `{"updates":[{"key":"vision_classification_enabled","value":false}],"reason":"weights rollback"}`
	req := httptest.NewRequest(http.MethodPut, "/v1/admin/settings", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.UpdateSettings(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, svc.IsVisionEnabled(context.Background()))
}

func TestSettingsHandler_UpdateSettings_Rejected(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{"updates":`},
		{"no updates", `{"updates":[],"reason":"nothing"}`},
		{"missing key", `{"updates":[{"value":true}]}`},
		{"unknown flag", `{"updates":[{"key":"dark_mode","value":true}]}`},
		{"wrong type", `{"updates":[{"key":"premium_fallback_enabled","value":"yes"}]}`},
		{"inverted bounds", `{"updates":[{"key":"premium_clamp_floor","value":90000},{"key":"premium_clamp_ceiling","value":1000}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, svc := newSettingsHandler()
			before := svc.PremiumBounds(context.Background())

			req := httptest.NewRequest(http.MethodPut, "/v1/admin/settings", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			h.UpdateSettings(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, before, svc.PremiumBounds(context.Background()))
		})
	}
}

func TestSettingsHandler_InvalidateCache(t *testing.T) {
	h, _ := newSettingsHandler()

	rec := httptest.NewRecorder()
	h.InvalidateCache(rec, httptest.NewRequest(http.MethodPost, "/v1/admin/settings/invalidate", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSettingsHandler_ResetSetting(t *testing.T) {
	h, svc := newSettingsHandler()
	ctx := context.Background()
	_, err := svc.Update(ctx, featureflags.FlagUpdateRequest{
		Updates: []featureflags.FlagUpdate{{Key: featureflags.FlagVisionClassificationEnabled, Value: false}},
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Delete("/v1/admin/settings/{key}", h.ResetSetting)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/admin/settings/vision_classification_enabled", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.IsVisionEnabled(ctx))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/admin/settings/dark_mode", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
