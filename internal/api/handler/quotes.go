package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/riskdesk/riskdesk/internal/api/models"
	"github.com/riskdesk/riskdesk/internal/api/response"
	"github.com/riskdesk/riskdesk/internal/quotelog"
)

// QuotesHandler exposes the quote log to operators.
type QuotesHandler struct {
	service *quotelog.Service
	logger  zerolog.Logger
}

// NewQuotesHandler creates a new QuotesHandler.
func NewQuotesHandler(service *quotelog.Service, logger zerolog.Logger) *QuotesHandler {
	return &QuotesHandler{service: service, logger: logger}
}

// ListQuotes handles GET /v1/admin/quotes?limit=&cursor=&status=.
func (h *QuotesHandler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := quotelog.ListOptions{Cursor: q.Get("cursor")}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			response.BadRequest(w, r, "limit must be a positive integer", nil)
			return
		}
		opts.Limit = limit
	}

	switch status := quotelog.Status(q.Get("status")); status {
	case "", quotelog.StatusQuoted, quotelog.StatusRejected, quotelog.StatusFailed:
		opts.Status = status
	default:
		response.BadRequest(w, r, "status must be one of quoted, rejected, failed", nil)
		return
	}

	result, err := h.service.Recent(r.Context(), opts)
	switch {
	case err == nil:
	case errors.Is(err, quotelog.ErrEntryNotFound):
		response.BadRequest(w, r, "unknown cursor", nil)
		return
	default:
		h.logger.Error().Err(err).Msg("failed to list quotes")
		response.InternalError(w, r, "failed to list quotes")
		return
	}

	page := models.PagedQuotes{
		Items: make([]models.Quote, 0, len(result.Items)),
		Meta:  models.PagedResponseMeta{Limit: effectiveLimit(opts.Limit)},
	}
	for _, e := range result.Items {
		page.Items = append(page.Items, quoteFrom(e))
	}
	if result.NextCursor != "" {
		page.Meta.NextCursor = &result.NextCursor
	}
	response.JSON(w, r, http.StatusOK, page)
}

// GetQuote handles GET /v1/admin/quotes/{quoteID}.
func (h *QuotesHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "quoteID")

	entry, err := h.service.Get(r.Context(), id)
	switch {
	case err == nil:
		response.JSON(w, r, http.StatusOK, quoteFrom(entry))
	case errors.Is(err, quotelog.ErrEntryNotFound):
		response.NotFound(w, r, "quote not found")
	default:
		h.logger.Error().Err(err).Str("quote_id", id).Msg("failed to load quote")
		response.InternalError(w, r, "failed to load quote")
	}
}

func effectiveLimit(limit int) int {
	switch {
	case limit <= 0:
		return quotelog.DefaultListLimit
	case limit > quotelog.MaxListLimit:
		return quotelog.MaxListLimit
	}
	return limit
}

func quoteFrom(e *quotelog.Entry) models.Quote {
	return models.Quote{
		ID:               e.ID,
		Source:           e.Source,
		Segment:          e.Segment,
		Age:              e.Age,
		Plan:             e.Plan,
		Income:           e.Income.String(),
		PredictedPremium: e.PredictedPremium,
		RawPrediction:    e.RawPrediction,
		ModelUsed:        e.ModelUsed,
		Status:           string(e.Status),
		Error:            e.Error,
		DurationMs:       float64(e.Duration.Microseconds()) / 1000,
		CreatedAt:        models.Timestamp(e.CreatedAt),
	}
}
