package premium_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/riskdesk/riskdesk/internal/premium"
)

func TestFallbackEstimate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*premium.Profile)
		want   int64
	}{
		{
			name:   "healthy young bronze",
			mutate: func(*premium.Profile) {},
			want:   10800, // 15000 * 0.8 * 1.0 * 0.9
		},
		{
			name: "silver middle age occasional smoker",
			mutate: func(p *premium.Profile) {
				p.Age = 40
				p.InsurancePlan = premium.PlanSilver
				p.SmokingStatus = premium.SmokingOccasional
			},
			want: 27000, // 25000 * 1.0 * 1.2 * 0.9
		},
		{
			name: "gold senior regular smoker with condition",
			mutate: func(p *premium.Profile) {
				p.Age = 50
				p.InsurancePlan = premium.PlanGold
				p.SmokingStatus = premium.SmokingRegular
				p.MedicalHistory = "Diabetes"
			},
			want: 95550, // 35000 * 1.3 * 1.5 * 1.4
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := premium.DefaultProfile()
			tt.mutate(&p)

			got := premium.FallbackEstimate(p)
			assert.Equal(t, tt.want, got.EstimatedPremium.IntPart())
			assert.Equal(t, premium.FallbackModelName, got.ModelUsed)
			assert.Equal(t, premium.AgeGroup(p.Age), got.AgeGroup)
		})
	}
}

func TestFallbackEstimate_EmptyHistoryIsHealthy(t *testing.T) {
	healthy := premium.DefaultProfile()
	healthy.MedicalHistory = premium.NoDisease
	blank := healthy
	blank.MedicalHistory = "  "

	assert.Equal(t, premium.FallbackEstimate(healthy), premium.FallbackEstimate(blank))
	assert.Equal(t, premium.RiskScore(healthy, 12), premium.RiskScore(blank, 12))
}
