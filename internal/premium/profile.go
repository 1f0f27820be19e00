// Package premium reconstructs the feature encoding used to train the
// health-insurance premium regressors and routes profiles to the young or
// rest model.
package premium

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Gender is the applicant's gender.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// Region is the applicant's region of residence.
type Region string

const (
	RegionNortheast Region = "Northeast"
	RegionNorthwest Region = "Northwest"
	RegionSoutheast Region = "Southeast"
	RegionSouthwest Region = "Southwest"
)

// MaritalStatus is the applicant's marital status.
type MaritalStatus string

const (
	MaritalMarried   MaritalStatus = "Married"
	MaritalUnmarried MaritalStatus = "Unmarried"
)

// EmploymentStatus is the applicant's employment status.
type EmploymentStatus string

const (
	EmploymentSalaried     EmploymentStatus = "Salaried"
	EmploymentSelfEmployed EmploymentStatus = "Self-Employed"
	EmploymentFreelancer   EmploymentStatus = "Freelancer"
)

// Plan is the insurance plan tier. Tiers are ordered Bronze < Silver < Gold.
type Plan string

const (
	PlanBronze Plan = "Bronze"
	PlanSilver Plan = "Silver"
	PlanGold   Plan = "Gold"
)

// Ordinal returns the training-time ordinal encoding of the plan.
func (p Plan) Ordinal() int {
	switch p {
	case PlanSilver:
		return 2
	case PlanGold:
		return 3
	default:
		return 1
	}
}

var (
	multiplierSilver = decimal.RequireFromString("1.15")
	multiplierGold   = decimal.RequireFromString("1.30")
)

// Multiplier returns the post-hoc premium multiplier for the plan.
func (p Plan) Multiplier() decimal.Decimal {
	switch p {
	case PlanSilver:
		return multiplierSilver
	case PlanGold:
		return multiplierGold
	default:
		return decimal.NewFromInt(1)
	}
}

// BMICategory is the applicant's body-mass-index bucket.
type BMICategory string

const (
	BMINormal      BMICategory = "Normal"
	BMIObesity     BMICategory = "Obesity"
	BMIOverweight  BMICategory = "Overweight"
	BMIUnderweight BMICategory = "Underweight"
)

// SmokingStatus is the applicant's smoking habit.
type SmokingStatus string

const (
	SmokingNone       SmokingStatus = "No Smoking"
	SmokingOccasional SmokingStatus = "Occasional"
	SmokingRegular    SmokingStatus = "Regular"
)

// NoDisease is the medical history value for an applicant without conditions.
const NoDisease = "No Disease"

// Age and genetical risk bounds accepted by the encoder.
const (
	MinAge           = 18
	MaxAge           = 100
	MaxGeneticalRisk = 5
)

// Profile is the structured applicant record fed into the tabular pipeline.
type Profile struct {
	Age              int
	Gender           Gender
	Region           Region
	MaritalStatus    MaritalStatus
	Dependants       int
	Income           decimal.Decimal
	EmploymentStatus EmploymentStatus
	InsurancePlan    Plan
	GeneticalRisk    int
	BMICategory      BMICategory
	SmokingStatus    SmokingStatus
	MedicalHistory   string
}

// DefaultProfile returns the value used for every field the caller leaves out.
func DefaultProfile() Profile {
	return Profile{
		Age:              30,
		Gender:           GenderFemale,
		Region:           RegionNortheast,
		MaritalStatus:    MaritalMarried,
		Dependants:       0,
		Income:           decimal.Zero,
		EmploymentStatus: EmploymentFreelancer,
		InsurancePlan:    PlanBronze,
		GeneticalRisk:    2,
		BMICategory:      BMINormal,
		SmokingStatus:    SmokingNone,
		MedicalHistory:   NoDisease,
	}
}

// Validate reports the first field that falls outside the encoding domain.
func (p Profile) Validate() error {
	switch {
	case p.Age < MinAge || p.Age > MaxAge:
		return &EncodingError{Field: "age", Reason: fmt.Sprintf("must be between %d and %d", MinAge, MaxAge)}
	case p.Dependants < 0:
		return &EncodingError{Field: "number_of_dependants", Reason: "must not be negative"}
	case p.Income.IsNegative():
		return &EncodingError{Field: "income", Reason: "must not be negative"}
	case p.GeneticalRisk < 0 || p.GeneticalRisk > MaxGeneticalRisk:
		return &EncodingError{Field: "genetical_risk", Reason: fmt.Sprintf("must be between 0 and %d", MaxGeneticalRisk)}
	}

	switch p.Gender {
	case GenderMale, GenderFemale:
	default:
		return unknownValue("gender", string(p.Gender))
	}
	switch p.Region {
	case RegionNortheast, RegionNorthwest, RegionSoutheast, RegionSouthwest:
	default:
		return unknownValue("region", string(p.Region))
	}
	switch p.MaritalStatus {
	case MaritalMarried, MaritalUnmarried:
	default:
		return unknownValue("marital_status", string(p.MaritalStatus))
	}
	switch p.EmploymentStatus {
	case EmploymentSalaried, EmploymentSelfEmployed, EmploymentFreelancer:
	default:
		return unknownValue("employment_status", string(p.EmploymentStatus))
	}
	switch p.InsurancePlan {
	case PlanBronze, PlanSilver, PlanGold:
	default:
		return unknownValue("insurance_plan", string(p.InsurancePlan))
	}
	switch p.BMICategory {
	case BMINormal, BMIObesity, BMIOverweight, BMIUnderweight:
	default:
		return unknownValue("bmi_category", string(p.BMICategory))
	}
	switch p.SmokingStatus {
	case SmokingNone, SmokingOccasional, SmokingRegular:
	default:
		return unknownValue("smoking_status", string(p.SmokingStatus))
	}
	return nil
}

func unknownValue(field, value string) error {
	return &EncodingError{Field: field, Reason: fmt.Sprintf("unknown value %q", value)}
}
