package premium

// Feature columns in the order the regressors were trained on.
const (
	ColAge                    = "age"
	ColDependants             = "number_of_dependants"
	ColIncomeLakhs            = "income_lakhs"
	ColInsurancePlan          = "insurance_plan"
	ColGeneticalRisk          = "genetical_risk"
	ColNormalizedRiskScore    = "normalized_risk_score"
	ColGenderMale             = "gender_Male"
	ColRegionNorthwest        = "region_Northwest"
	ColRegionSoutheast        = "region_Southeast"
	ColRegionSouthwest        = "region_Southwest"
	ColMaritalUnmarried       = "marital_status_Unmarried"
	ColBMIObesity             = "bmi_category_Obesity"
	ColBMIOverweight          = "bmi_category_Overweight"
	ColBMIUnderweight         = "bmi_category_Underweight"
	ColSmokingOccasional      = "smoking_status_Occasional"
	ColSmokingRegular         = "smoking_status_Regular"
	ColEmploymentSalaried     = "employment_status_Salaried"
	ColEmploymentSelfEmployed = "employment_status_Self-Employed"
	ColIncomeLevel            = "income_level"
	NumFeatures               = 18
)

// Columns lists the feature vector slots in order.
var Columns = [NumFeatures]string{
	ColAge,
	ColDependants,
	ColIncomeLakhs,
	ColInsurancePlan,
	ColGeneticalRisk,
	ColNormalizedRiskScore,
	ColGenderMale,
	ColRegionNorthwest,
	ColRegionSoutheast,
	ColRegionSouthwest,
	ColMaritalUnmarried,
	ColBMIObesity,
	ColBMIOverweight,
	ColBMIUnderweight,
	ColSmokingOccasional,
	ColSmokingRegular,
	ColEmploymentSalaried,
	ColEmploymentSelfEmployed,
}

// Slot indexes into FeatureVector.
const (
	idxAge = iota
	idxDependants
	idxIncomeLakhs
	idxInsurancePlan
	idxGeneticalRisk
	idxNormalizedRiskScore
	idxGenderMale
	idxRegionNorthwest
	idxRegionSoutheast
	idxRegionSouthwest
	idxMaritalUnmarried
	idxBMIObesity
	idxBMIOverweight
	idxBMIUnderweight
	idxSmokingOccasional
	idxSmokingRegular
	idxEmploymentSalaried
	idxEmploymentSelfEmployed
)

// OneHotGroups maps each categorical group to its indicator columns.
var OneHotGroups = map[string][]string{
	"gender":            {ColGenderMale},
	"region":            {ColRegionNorthwest, ColRegionSoutheast, ColRegionSouthwest},
	"marital_status":    {ColMaritalUnmarried},
	"bmi_category":      {ColBMIObesity, ColBMIOverweight, ColBMIUnderweight},
	"smoking_status":    {ColSmokingOccasional, ColSmokingRegular},
	"employment_status": {ColEmploymentSalaried, ColEmploymentSelfEmployed},
}

var columnIndex = func() map[string]int {
	m := make(map[string]int, NumFeatures)
	for i, c := range Columns {
		m[c] = i
	}
	return m
}()

// ColumnIndex returns the slot of a named column.
func ColumnIndex(name string) (int, bool) {
	i, ok := columnIndex[name]
	return i, ok
}

// FeatureVector is the fixed-order numeric input of the regressors.
type FeatureVector [NumFeatures]float64

// Get returns the value of a named column.
func (v FeatureVector) Get(name string) (float64, bool) {
	i, ok := columnIndex[name]
	if !ok {
		return 0, false
	}
	return v[i], true
}

// Map returns the vector keyed by column name.
func (v FeatureVector) Map() map[string]float64 {
	m := make(map[string]float64, NumFeatures)
	for i, c := range Columns {
		m[c] = v[i]
	}
	return m
}
