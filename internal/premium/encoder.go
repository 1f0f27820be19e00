package premium

import (
	"github.com/shopspring/decimal"
)

// DefaultIncomeUnitsPerLakh converts base currency units to lakhs.
const DefaultIncomeUnitsPerLakh = 100000

// Encoder converts profiles into the feature vectors the regressors expect.
type Encoder struct {
	unitsPerLakh decimal.Decimal
}

// NewEncoder creates an Encoder. unitsPerLakh is how many input currency
// units make up one lakh; zero or negative selects DefaultIncomeUnitsPerLakh.
func NewEncoder(unitsPerLakh decimal.Decimal) *Encoder {
	if !unitsPerLakh.IsPositive() {
		unitsPerLakh = decimal.NewFromInt(DefaultIncomeUnitsPerLakh)
	}
	return &Encoder{unitsPerLakh: unitsPerLakh}
}

// IncomeLakhs converts an income amount into lakhs.
func (e *Encoder) IncomeLakhs(income decimal.Decimal) float64 {
	return income.Div(e.unitsPerLakh).InexactFloat64()
}

// Encode validates the profile and builds its feature vector.
func (e *Encoder) Encode(p Profile) (FeatureVector, error) {
	var v FeatureVector
	if err := p.Validate(); err != nil {
		return v, err
	}

	v[idxAge] = float64(p.Age)
	v[idxDependants] = float64(p.Dependants)
	v[idxIncomeLakhs] = e.IncomeLakhs(p.Income)
	v[idxInsurancePlan] = float64(p.InsurancePlan.Ordinal())
	v[idxGeneticalRisk] = float64(p.GeneticalRisk)
	v[idxNormalizedRiskScore] = NormalizedMedicalRisk(p.MedicalHistory)

	if p.Gender == GenderMale {
		v[idxGenderMale] = 1
	}

	switch p.Region {
	case RegionNorthwest:
		v[idxRegionNorthwest] = 1
	case RegionSoutheast:
		v[idxRegionSoutheast] = 1
	case RegionSouthwest:
		v[idxRegionSouthwest] = 1
	}

	if p.MaritalStatus == MaritalUnmarried {
		v[idxMaritalUnmarried] = 1
	}

	switch p.BMICategory {
	case BMIObesity:
		v[idxBMIObesity] = 1
	case BMIOverweight:
		v[idxBMIOverweight] = 1
	case BMIUnderweight:
		v[idxBMIUnderweight] = 1
	}

	switch p.SmokingStatus {
	case SmokingOccasional:
		v[idxSmokingOccasional] = 1
	case SmokingRegular:
		v[idxSmokingRegular] = 1
	}

	switch p.EmploymentStatus {
	case EmploymentSalaried:
		v[idxEmploymentSalaried] = 1
	case EmploymentSelfEmployed:
		v[idxEmploymentSelfEmployed] = 1
	}

	return v, nil
}

// Encode builds a feature vector using DefaultIncomeUnitsPerLakh.
func Encode(p Profile) (FeatureVector, error) {
	return NewEncoder(decimal.Zero).Encode(p)
}
