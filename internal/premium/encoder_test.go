package premium_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskdesk/riskdesk/internal/premium"
)

func TestEncode_BaselineScenario(t *testing.T) {
	p := premium.Profile{
		Age:              30,
		Gender:           premium.GenderMale,
		Region:           premium.RegionNortheast,
		MaritalStatus:    premium.MaritalMarried,
		Dependants:       0,
		Income:           decimal.NewFromInt(758000),
		EmploymentStatus: premium.EmploymentSalaried,
		InsurancePlan:    premium.PlanBronze,
		GeneticalRisk:    2,
		BMICategory:      premium.BMINormal,
		SmokingStatus:    premium.SmokingNone,
		MedicalHistory:   premium.NoDisease,
	}

	v, err := premium.Encode(p)
	require.NoError(t, err)

	for _, group := range premium.OneHotGroups {
		for _, col := range group {
			got, ok := v.Get(col)
			require.True(t, ok)
			switch col {
			case premium.ColGenderMale, premium.ColEmploymentSalaried:
				assert.Equal(t, 1.0, got, col)
			default:
				assert.Zero(t, got, col)
			}
		}
	}

	m := v.Map()
	assert.Equal(t, 30.0, m[premium.ColAge])
	assert.Equal(t, 1.0, m[premium.ColInsurancePlan])
	assert.Equal(t, 2.0, m[premium.ColGeneticalRisk])
	assert.Zero(t, m[premium.ColNormalizedRiskScore])
	assert.InDelta(t, 7.58, m[premium.ColIncomeLakhs], 1e-9)
}

func TestEncode_AllFields(t *testing.T) {
	p := premium.Profile{
		Age:              42,
		Gender:           premium.GenderFemale,
		Region:           premium.RegionSouthwest,
		MaritalStatus:    premium.MaritalUnmarried,
		Dependants:       3,
		Income:           decimal.NewFromInt(1_500_000),
		EmploymentStatus: premium.EmploymentSelfEmployed,
		InsurancePlan:    premium.PlanGold,
		GeneticalRisk:    4,
		BMICategory:      premium.BMIOverweight,
		SmokingStatus:    premium.SmokingRegular,
		MedicalHistory:   "Diabetes & High blood pressure",
	}

	v, err := premium.Encode(p)
	require.NoError(t, err)

	want := map[string]float64{
		premium.ColAge:                    42,
		premium.ColDependants:             3,
		premium.ColIncomeLakhs:            15,
		premium.ColInsurancePlan:          3,
		premium.ColGeneticalRisk:          4,
		premium.ColRegionSouthwest:        1,
		premium.ColMaritalUnmarried:       1,
		premium.ColBMIOverweight:          1,
		premium.ColSmokingRegular:         1,
		premium.ColEmploymentSelfEmployed: 1,
	}
	for col, got := range v.Map() {
		if col == premium.ColNormalizedRiskScore {
			assert.InDelta(t, 12.0/14.0, got, 1e-12)
			continue
		}
		assert.Equal(t, want[col], got, col)
	}
}

func TestEncode_Deterministic(t *testing.T) {
	p := premium.DefaultProfile()
	p.Income = decimal.RequireFromString("1234567.89")
	p.MedicalHistory = "Thyroid"

	first, err := premium.Encode(p)
	require.NoError(t, err)
	second, err := premium.Encode(p)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEncode_OneHotExclusivity(t *testing.T) {
	genders := []premium.Gender{premium.GenderMale, premium.GenderFemale}
	regions := []premium.Region{premium.RegionNortheast, premium.RegionNorthwest, premium.RegionSoutheast, premium.RegionSouthwest}
	bmis := []premium.BMICategory{premium.BMINormal, premium.BMIObesity, premium.BMIOverweight, premium.BMIUnderweight}
	smoking := []premium.SmokingStatus{premium.SmokingNone, premium.SmokingOccasional, premium.SmokingRegular}
	employment := []premium.EmploymentStatus{premium.EmploymentSalaried, premium.EmploymentSelfEmployed, premium.EmploymentFreelancer}

	for _, g := range genders {
		for _, r := range regions {
			for _, b := range bmis {
				for _, s := range smoking {
					for _, e := range employment {
						p := premium.DefaultProfile()
						p.Gender, p.Region, p.BMICategory, p.SmokingStatus, p.EmploymentStatus = g, r, b, s, e

						v, err := premium.Encode(p)
						require.NoError(t, err)

						for name, cols := range premium.OneHotGroups {
							var set float64
							for _, col := range cols {
								val, _ := v.Get(col)
								set += val
							}
							assert.LessOrEqual(t, set, 1.0, name)
						}
					}
				}
			}
		}
	}
}

func TestEncode_DefaultProfileIsBaseline(t *testing.T) {
	v, err := premium.Encode(premium.DefaultProfile())
	require.NoError(t, err)

	for name, cols := range premium.OneHotGroups {
		for _, col := range cols {
			val, _ := v.Get(col)
			assert.Zero(t, val, "%s/%s", name, col)
		}
	}
}

func TestEncode_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*premium.Profile)
		field  string
	}{
		{"age too low", func(p *premium.Profile) { p.Age = 17 }, "age"},
		{"age too high", func(p *premium.Profile) { p.Age = 101 }, "age"},
		{"negative dependants", func(p *premium.Profile) { p.Dependants = -1 }, "number_of_dependants"},
		{"negative income", func(p *premium.Profile) { p.Income = decimal.NewFromInt(-1) }, "income"},
		{"genetical risk", func(p *premium.Profile) { p.GeneticalRisk = 6 }, "genetical_risk"},
		{"unknown region", func(p *premium.Profile) { p.Region = "Central" }, "region"},
		{"unknown plan", func(p *premium.Profile) { p.InsurancePlan = "Platinum" }, "insurance_plan"},
		{"unknown smoking", func(p *premium.Profile) { p.SmokingStatus = "Sometimes" }, "smoking_status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := premium.DefaultProfile()
			tt.mutate(&p)

			_, err := premium.Encode(p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, premium.ErrEncoding))

			var encErr *premium.EncodingError
			require.ErrorAs(t, err, &encErr)
			assert.Equal(t, tt.field, encErr.Field)
		})
	}
}

func TestEncoder_IncomeUnits(t *testing.T) {
	enc := premium.NewEncoder(decimal.NewFromInt(37900))
	p := premium.DefaultProfile()
	p.Income = decimal.NewFromInt(379000)

	v, err := enc.Encode(p)
	require.NoError(t, err)

	lakhs, _ := v.Get(premium.ColIncomeLakhs)
	assert.InDelta(t, 10.0, lakhs, 1e-12)
}

func TestNewEncoder_NonPositiveUnitsUseDefault(t *testing.T) {
	enc := premium.NewEncoder(decimal.NewFromInt(-5))
	assert.InDelta(t, 2.0, enc.IncomeLakhs(decimal.NewFromInt(200000)), 1e-12)
}
