// Package response writes JSON and Problem bodies for the riskdesk handlers.
// Every write echoes the request ID so clients can correlate quotes with logs.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/riskdesk/riskdesk/internal/api/middleware"
	"github.com/riskdesk/riskdesk/internal/api/models"
)

func traceID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

func echoRequestID(w http.ResponseWriter, r *http.Request) {
	if id := traceID(r); id != "" {
		w.Header().Set(middleware.RequestIDHeader, id)
	}
}

// JSON encodes data with the given status. A nil data writes headers only.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	echoRequestID(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// NoContent writes a bare 204.
func NoContent(w http.ResponseWriter, r *http.Request) {
	echoRequestID(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// Error writes problem with the request path as its instance.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(traceID(r), detail, errors))
}

func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(traceID(r), detail))
}

func UnsupportedMediaType(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewUnsupportedMediaType(traceID(r), detail))
}

// PredictionRejected writes a 422 for a prediction the model refused. The
// body keeps the plain "error" field clients already parse and carries the
// fallback estimate when one was computed.
func PredictionRejected(w http.ResponseWriter, r *http.Request, detail string, fallback *models.FallbackEstimate) {
	problem := &models.PredictionProblem{
		Problem:  models.NewUnprocessable(traceID(r), detail),
		Error:    detail,
		Fallback: fallback,
	}
	problem.Instance = r.URL.Path
	problem.Write(w)
}

func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(traceID(r), detail))
}

func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(traceID(r), detail))
}
