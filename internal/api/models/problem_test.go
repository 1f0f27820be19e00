package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskdesk/riskdesk/internal/api/models"
)

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		name   string
		new    func(traceID, detail string) *models.Problem
		typ    string
		title  string
		status int
	}{
		{"unauthorized", models.NewUnauthorized, models.ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized},
		{"forbidden", models.NewForbidden, models.ProblemTypeForbidden, "Forbidden", http.StatusForbidden},
		{"not found", models.NewNotFound, models.ProblemTypeNotFound, "Not found", http.StatusNotFound},
		{"payload too large", models.NewPayloadTooLarge, models.ProblemTypePayloadTooLarge, "Payload too large", http.StatusRequestEntityTooLarge},
		{"unsupported media type", models.NewUnsupportedMediaType, models.ProblemTypeUnsupportedMediaType, "Unsupported media type", http.StatusUnsupportedMediaType},
		{"prediction rejected", models.NewUnprocessable, models.ProblemTypeUnprocessable, "Prediction rejected", http.StatusUnprocessableEntity},
		{"too many requests", models.NewTooManyRequests, models.ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests},
		{"internal", models.NewInternalError, models.ProblemTypeInternal, "Internal server error", http.StatusInternalServerError},
		{"unavailable", models.NewServiceUnavailable, models.ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.new("req_123", "model artifacts unavailable")

			assert.Equal(t, tt.typ, p.Type)
			assert.Equal(t, tt.title, p.Title)
			assert.Equal(t, tt.status, p.Status)
			assert.Equal(t, "model artifacts unavailable", p.Detail)
			assert.Equal(t, "req_123", p.TraceID)
			assert.Nil(t, p.Errors)
		})
	}
}

func TestNewProblem_WithDetail(t *testing.T) {
	p := models.NewProblem(models.ProblemTypeValidation, "Validation error", http.StatusBadRequest, "req_test123")
	assert.Empty(t, p.Detail)
	assert.Empty(t, p.Instance)

	assert.Same(t, p, p.WithDetail("age must be between 18 and 100"))
	assert.Equal(t, "age must be between 18 and 100", p.Detail)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "invalid input", []models.FieldError{
		{Field: "region", Message: "must be one of Northeast Northwest Southeast Southwest"},
	})
	p.Instance = "/v1/premium:predict"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, *p, result)
}
