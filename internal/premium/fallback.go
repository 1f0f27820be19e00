package premium

import (
	"github.com/shopspring/decimal"
)

// FallbackModelName identifies the rule-based estimate in responses.
const FallbackModelName = "Rule-based Estimate"

// Fallback is a coarse rule-based premium offered when the models cannot
// produce a prediction.
type Fallback struct {
	EstimatedPremium decimal.Decimal
	ModelUsed        string
	AgeGroup         string
}

var (
	fallbackBase = map[Plan]decimal.Decimal{
		PlanBronze: decimal.NewFromInt(15000),
		PlanSilver: decimal.NewFromInt(25000),
		PlanGold:   decimal.NewFromInt(35000),
	}
	fallbackHealthy   = decimal.RequireFromString("0.9")
	fallbackCondition = decimal.RequireFromString("1.4")
)

// FallbackEstimate computes a rule-based premium from raw profile fields.
// It never fails; unknown plans price as Bronze. An empty MedicalHistory
// counts as "No Disease" and takes the healthy factor.
func FallbackEstimate(p Profile) Fallback {
	base, ok := fallbackBase[p.InsurancePlan]
	if !ok {
		base = fallbackBase[PlanBronze]
	}

	premium := base.
		Mul(fallbackAgeFactor(p.Age)).
		Mul(fallbackSmokingFactor(p.SmokingStatus))

	if HasMedicalCondition(p.MedicalHistory) {
		premium = premium.Mul(fallbackCondition)
	} else {
		premium = premium.Mul(fallbackHealthy)
	}

	return Fallback{
		EstimatedPremium: premium.Truncate(0),
		ModelUsed:        FallbackModelName,
		AgeGroup:         AgeGroup(p.Age),
	}
}

func fallbackAgeFactor(age int) decimal.Decimal {
	switch {
	case age <= 30:
		return decimal.RequireFromString("0.8")
	case age <= 45:
		return decimal.NewFromInt(1)
	default:
		return decimal.RequireFromString("1.3")
	}
}

func fallbackSmokingFactor(s SmokingStatus) decimal.Decimal {
	switch s {
	case SmokingRegular:
		return decimal.RequireFromString("1.5")
	case SmokingOccasional:
		return decimal.RequireFromString("1.2")
	default:
		return decimal.NewFromInt(1)
	}
}
