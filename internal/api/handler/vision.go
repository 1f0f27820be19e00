package handler

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/riskdesk/riskdesk/internal/api/models"
	"github.com/riskdesk/riskdesk/internal/api/response"
	"github.com/riskdesk/riskdesk/internal/vision"
)

// MaxImageBytes caps uploaded images.
const MaxImageBytes = 10 << 20

// DamageClassifier classifies vehicle photos.
type DamageClassifier interface {
	ClassifyWithScores(ctx context.Context, img image.Image) (*vision.Result, error)
}

// VisionGate reports whether classification is switched on.
type VisionGate interface {
	IsVisionEnabled(ctx context.Context) bool
}

// VisionHandler handles vehicle damage classification.
type VisionHandler struct {
	classifier DamageClassifier
	gate       VisionGate
	logger     zerolog.Logger
}

// NewVisionHandler creates a new VisionHandler. A nil gate leaves the
// route always enabled.
func NewVisionHandler(classifier DamageClassifier, gate VisionGate, logger zerolog.Logger) *VisionHandler {
	return &VisionHandler{classifier: classifier, gate: gate, logger: logger}
}

// Classify handles POST /v1/vehicle-damage:classify. The image is either
// the raw request body or the multipart field "image".
func (h *VisionHandler) Classify(w http.ResponseWriter, r *http.Request) {
	if h.gate != nil && !h.gate.IsVisionEnabled(r.Context()) {
		response.ServiceUnavailable(w, r, "vehicle damage classification is disabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxImageBytes)
	data, ok := h.readImage(w, r)
	if !ok {
		return
	}

	img, format, err := vision.DecodeImage(bytes.NewReader(data))
	if err != nil {
		response.UnsupportedMediaType(w, r, "body is not a supported image")
		return
	}

	res, err := h.classifier.ClassifyWithScores(r.Context(), img)
	switch {
	case err == nil:
	case errors.Is(err, vision.ErrModelUnavailable):
		response.ServiceUnavailable(w, r, "vehicle damage model is unavailable")
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		response.ServiceUnavailable(w, r, "classification was cancelled")
		return
	default:
		h.logger.Error().Err(err).Msg("damage classification failed")
		response.InternalError(w, r, "classification failed")
		return
	}

	h.logger.Debug().Str("format", format).Str("label", string(res.Label)).Msg("image classified")

	scores := make(map[string]float64, len(res.Scores))
	for label, score := range res.Scores {
		scores[string(label)] = score
	}
	response.JSON(w, r, http.StatusOK, models.DamageClassification{
		Label:  string(res.Label),
		Scores: scores,
	})
}

// readImage reads the image bytes from the raw body or the multipart
// field "image". It writes the error response itself when the request
// carries no usable image.
func (h *VisionHandler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		response.UnsupportedMediaType(w, r, "Content-Type must be image/* or multipart/form-data")
		return nil, false
	}

	var body io.Reader
	switch {
	case mediaType == "multipart/form-data":
		file, _, err := r.FormFile("image")
		if err != nil {
			if isTooLarge(err) {
				payloadTooLarge(w, r)
				return nil, false
			}
			response.BadRequest(w, r, "multipart field \"image\" is required", nil)
			return nil, false
		}
		defer file.Close()
		body = file
	case strings.HasPrefix(mediaType, "image/"), mediaType == "application/octet-stream":
		body = r.Body
	default:
		response.UnsupportedMediaType(w, r, "Content-Type must be image/* or multipart/form-data")
		return nil, false
	}

	data, err := io.ReadAll(body)
	switch {
	case err == nil:
		return data, true
	case isTooLarge(err):
		payloadTooLarge(w, r)
	default:
		response.BadRequest(w, r, "failed to read image", nil)
	}
	return nil, false
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

func payloadTooLarge(w http.ResponseWriter, r *http.Request) {
	response.Error(w, r, models.NewPayloadTooLarge(traceID(r), "image exceeds 10 MiB"))
}
