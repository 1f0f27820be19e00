package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/riskdesk/riskdesk/internal/api/models"
	"github.com/riskdesk/riskdesk/internal/api/response"
	"github.com/riskdesk/riskdesk/internal/featureflags"
)

// SettingsHandler handles runtime settings endpoints.
type SettingsHandler struct {
	service  *featureflags.Service
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(service *featureflags.Service, logger zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// ListSettings handles GET /v1/admin/settings.
func (h *SettingsHandler) ListSettings(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, settingList(h.service.List(r.Context())))
}

// UpdateSettings handles PUT /v1/admin/settings.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in models.SettingsUpdateRequest
	if err := decodeJSON(r, &in); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		response.BadRequest(w, r, "validation failed", fieldErrors(err))
		return
	}

	req := featureflags.FlagUpdateRequest{Reason: in.Reason}
	if subject := GetSubject(r.Context()); subject != "" {
		req.Reason = subject + ": " + in.Reason
	}
	for _, u := range in.Updates {
		req.Updates = append(req.Updates, featureflags.FlagUpdate{Key: u.Key, Value: u.Value})
	}

	list, err := h.service.Update(r.Context(), req)
	switch {
	case err == nil:
		response.JSON(w, r, http.StatusOK, settingList(list))
	case errors.Is(err, featureflags.ErrUnknownFlag), errors.Is(err, featureflags.ErrInvalidValue):
		response.BadRequest(w, r, err.Error(), nil)
	default:
		h.logger.Error().Err(err).Msg("failed to update runtime settings")
		response.InternalError(w, r, "failed to update settings")
	}
}

// ResetSetting handles DELETE /v1/admin/settings/{key}, reverting one
// setting to its default.
func (h *SettingsHandler) ResetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	list, err := h.service.Reset(r.Context(), key, "reset by "+GetSubject(r.Context()))
	switch {
	case err == nil:
		response.JSON(w, r, http.StatusOK, settingList(list))
	case errors.Is(err, featureflags.ErrUnknownFlag):
		response.NotFound(w, r, "unknown setting "+key)
	case errors.Is(err, featureflags.ErrInvalidValue):
		response.BadRequest(w, r, err.Error(), nil)
	default:
		h.logger.Error().Err(err).Str("flag", key).Msg("failed to reset runtime setting")
		response.InternalError(w, r, "failed to reset setting")
	}
}

// InvalidateCache handles POST /v1/admin/settings/invalidate.
func (h *SettingsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	response.NoContent(w, r)
}

func settingList(list featureflags.FlagList) models.SettingList {
	out := models.SettingList{Items: make([]models.Setting, 0, len(list.Items))}
	for _, f := range list.Items {
		out.Items = append(out.Items, models.Setting{
			Key:       f.Key,
			Value:     f.Value,
			UpdatedAt: models.Timestamp(f.UpdatedAt),
		})
	}
	return out
}
