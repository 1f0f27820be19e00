package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC7807 error body, served as application/problem+json.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// TraceID echoes the request ID so callers can quote it in support
	// tickets.
	TraceID string `json:"traceId"`

	// Errors lists per-field validation failures for 400 responses.
	Errors []FieldError `json:"errors,omitempty"`
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Problem type URIs.
const (
	ProblemTypeValidation           = "https://riskdesk.dev/problems/validation-error"
	ProblemTypeUnauthorized         = "https://riskdesk.dev/problems/unauthorized"
	ProblemTypeForbidden            = "https://riskdesk.dev/problems/forbidden"
	ProblemTypeNotFound             = "https://riskdesk.dev/problems/not-found"
	ProblemTypePayloadTooLarge      = "https://riskdesk.dev/problems/payload-too-large"
	ProblemTypeUnsupportedMediaType = "https://riskdesk.dev/problems/unsupported-media-type"
	ProblemTypeUnprocessable        = "https://riskdesk.dev/problems/prediction-rejected"
	ProblemTypeTooManyRequests      = "https://riskdesk.dev/problems/too-many-requests"
	ProblemTypeInternal             = "https://riskdesk.dev/problems/internal-error"
	ProblemTypeUnavailable          = "https://riskdesk.dev/problems/service-unavailable"
	ProblemTypeTLSRequired          = "https://riskdesk.dev/problems/tls-required"
)

// NewProblem creates a Problem without detail.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		TraceID: traceID,
	}
}

// WithDetail sets the detail message and returns p.
func (p *Problem) WithDetail(detail string) *Problem {
	p.Detail = detail
	return p
}

// Write sends p with its status code. The request ID header is set here too
// so that middleware which short-circuits still echoes it.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-Id", p.TraceID)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewBadRequest creates a 400 validation problem carrying field errors.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	p := NewProblem(ProblemTypeValidation, "Validation error", http.StatusBadRequest, traceID).WithDetail(detail)
	p.Errors = errors
	return p
}

func NewUnauthorized(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized, traceID).WithDetail(detail)
}

func NewForbidden(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeForbidden, "Forbidden", http.StatusForbidden, traceID).WithDetail(detail)
}

func NewNotFound(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeNotFound, "Not found", http.StatusNotFound, traceID).WithDetail(detail)
}

// NewPayloadTooLarge is returned when an uploaded image exceeds the body
// limit.
func NewPayloadTooLarge(traceID, detail string) *Problem {
	return NewProblem(ProblemTypePayloadTooLarge, "Payload too large", http.StatusRequestEntityTooLarge, traceID).WithDetail(detail)
}

func NewUnsupportedMediaType(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeUnsupportedMediaType, "Unsupported media type", http.StatusUnsupportedMediaType, traceID).WithDetail(detail)
}

// NewUnprocessable is used when the inputs are well formed but the model
// refuses them, e.g. a non-positive prediction.
func NewUnprocessable(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeUnprocessable, "Prediction rejected", http.StatusUnprocessableEntity, traceID).WithDetail(detail)
}

func NewTooManyRequests(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests, traceID).WithDetail(detail)
}

func NewInternalError(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeInternal, "Internal server error", http.StatusInternalServerError, traceID).WithDetail(detail)
}

func NewServiceUnavailable(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable, traceID).WithDetail(detail)
}
