package models

// DamageClassification is the response of POST /v1/vehicle-damage:classify.
type DamageClassification struct {
	Label  string             `json:"label"`
	Scores map[string]float64 `json:"scores"`
}
