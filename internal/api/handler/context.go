package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/riskdesk/riskdesk/internal/api/middleware"
	"github.com/riskdesk/riskdesk/internal/api/models"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

// GetSubject retrieves the authenticated principal from the context.
// This is a convenience wrapper around middleware.GetSubject.
func GetSubject(ctx context.Context) string {
	return middleware.GetSubject(ctx)
}

// decodeJSON decodes a JSON body into dst. An empty body leaves dst
// untouched, so optional-field requests may omit it.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// fieldErrors converts validator failures into problem field errors.
func fieldErrors(err error) []models.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, models.FieldError{
			Field:   fe.Field(),
			Message: validationMessage(fe),
			Code:    fe.Tag(),
		})
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " items"
	case "max":
		return "must be at most " + fe.Param() + " long"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func traceID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}
