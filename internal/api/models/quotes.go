package models

// Quote is one entry of the quote log.
type Quote struct {
	ID               string    `json:"id"`
	Source           string    `json:"source"`
	Segment          string    `json:"segment,omitempty"`
	Age              int       `json:"age"`
	Plan             string    `json:"plan"`
	Income           string    `json:"income"`
	PredictedPremium *int64    `json:"predicted_premium,omitempty"`
	RawPrediction    *int64    `json:"raw_prediction,omitempty"`
	ModelUsed        string    `json:"model_used,omitempty"`
	Status           string    `json:"status"`
	Error            string    `json:"error,omitempty"`
	DurationMs       float64   `json:"duration_ms"`
	CreatedAt        Timestamp `json:"created_at"`
}

// PagedQuotes is the response of GET /v1/admin/quotes.
type PagedQuotes struct {
	Items []Quote           `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}
