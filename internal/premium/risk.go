package premium

import (
	"math"
	"strings"
)

// medicalRiskWeights are the per-condition weights used to build
// normalized_risk_score during training.
var medicalRiskWeights = map[string]float64{
	"diabetes":            6,
	"heart disease":       8,
	"high blood pressure": 6,
	"thyroid":             5,
	"no disease":          0,
	"none":                0,
}

// maxMedicalRisk is the largest sum seen in training: heart disease + diabetes.
const maxMedicalRisk = 14

// medicalHistorySeparator joins multiple conditions in a medical history.
const medicalHistorySeparator = " & "

// NormalizedMedicalRisk scores a medical history into [0, 1].
func NormalizedMedicalRisk(history string) float64 {
	history = strings.TrimSpace(history)
	if history == "" {
		return 0
	}

	var total float64
	for _, condition := range strings.Split(strings.ToLower(history), medicalHistorySeparator) {
		total += medicalRiskWeights[strings.TrimSpace(condition)]
	}

	return math.Min(total/maxMedicalRisk, 1)
}

// HasMedicalCondition reports whether the history lists any condition. An
// empty or blank history is treated like "No Disease".
func HasMedicalCondition(history string) bool {
	history = strings.TrimSpace(history)
	return history != "" && !strings.EqualFold(history, NoDisease)
}

// IncomeLevel buckets an income in lakhs into the ordinal used by the
// historical dict-shaped scalers: <10 → 1, ≤25 → 2, ≤40 → 3, above → 4.
func IncomeLevel(incomeLakhs float64) float64 {
	switch {
	case incomeLakhs < 10:
		return 1
	case incomeLakhs <= 25:
		return 2
	case incomeLakhs <= 40:
		return 3
	default:
		return 4
	}
}

// Age group labels.
const (
	AgeGroup18To30 = "18-30"
	AgeGroup31To45 = "31-45"
	AgeGroup46To60 = "46-60"
	AgeGroup60Plus = "60+"
)

// AgeGroup buckets an age for reporting.
func AgeGroup(age int) string {
	switch {
	case age <= 30:
		return AgeGroup18To30
	case age <= 45:
		return AgeGroup31To45
	case age <= 60:
		return AgeGroup46To60
	default:
		return AgeGroup60Plus
	}
}

// maxRiskPoints is the largest attainable sum of the RiskScore factors.
const maxRiskPoints = 25

// RiskScore is a diagnostic 0-10 score derived from raw profile fields,
// independent of the regressor. An empty MedicalHistory adds no medical
// points, the same as "No Disease".
func RiskScore(p Profile, incomeLakhs float64) float64 {
	var points int

	switch {
	case p.Age < 25:
		points++
	case p.Age < 40:
		points += 2
	case p.Age < 55:
		points += 3
	default:
		points += 4
	}

	switch p.BMICategory {
	case BMIObesity:
		points += 4
	case BMIOverweight, BMIUnderweight:
		points += 2
	default:
		points++
	}

	switch p.SmokingStatus {
	case SmokingRegular:
		points += 5
	case SmokingOccasional:
		points += 3
	}

	if HasMedicalCondition(p.MedicalHistory) {
		points += 4
	}

	switch {
	case incomeLakhs < 5:
		points += 3
	case incomeLakhs < 15:
		points += 2
	case incomeLakhs < 30:
		points++
	}

	points += p.GeneticalRisk

	return math.Min(float64(points)/maxRiskPoints*10, 10)
}
