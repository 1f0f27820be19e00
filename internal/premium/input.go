package premium

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ProfileInput is a profile as submitted over HTTP or Pub/Sub. Every field
// is optional; omitted fields take their DefaultProfile value.
type ProfileInput struct {
	Age                *int             `json:"age,omitempty" validate:"omitempty,gte=18,lte=100"`
	Gender             *string          `json:"gender,omitempty" validate:"omitempty,oneof=Male Female"`
	Region             *string          `json:"region,omitempty" validate:"omitempty,oneof=Northeast Northwest Southeast Southwest"`
	MaritalStatus      *string          `json:"marital_status,omitempty" validate:"omitempty,oneof=Married Unmarried"`
	NumberOfDependants *int             `json:"number_of_dependants,omitempty" validate:"omitempty,gte=0,lte=20"`
	BMICategory        *string          `json:"bmi_category,omitempty" validate:"omitempty,oneof=Normal Obesity Overweight Underweight"`
	SmokingStatus      *string          `json:"smoking_status,omitempty" validate:"omitempty,oneof='No Smoking' Occasional Regular"`
	EmploymentStatus   *string          `json:"employment_status,omitempty" validate:"omitempty,oneof=Salaried Self-Employed Freelancer"`
	Income             *decimal.Decimal `json:"income,omitempty" validate:"omitempty,gte=0"`
	MedicalHistory     *string          `json:"medical_history,omitempty" validate:"omitempty,max=200"`
	InsurancePlan      *string          `json:"insurance_plan,omitempty" validate:"omitempty,oneof=Bronze Silver Gold"`
	GeneticalRisk      *int             `json:"genetical_risk,omitempty" validate:"omitempty,gte=0,lte=5"`
}

// Profile applies the documented defaults to every omitted field.
func (in ProfileInput) Profile() Profile {
	p := DefaultProfile()
	if in.Age != nil {
		p.Age = *in.Age
	}
	if in.Gender != nil {
		p.Gender = Gender(*in.Gender)
	}
	if in.Region != nil {
		p.Region = Region(*in.Region)
	}
	if in.MaritalStatus != nil {
		p.MaritalStatus = MaritalStatus(*in.MaritalStatus)
	}
	if in.NumberOfDependants != nil {
		p.Dependants = *in.NumberOfDependants
	}
	if in.BMICategory != nil {
		p.BMICategory = BMICategory(*in.BMICategory)
	}
	if in.SmokingStatus != nil {
		p.SmokingStatus = SmokingStatus(*in.SmokingStatus)
	}
	if in.EmploymentStatus != nil {
		p.EmploymentStatus = EmploymentStatus(*in.EmploymentStatus)
	}
	if in.Income != nil {
		p.Income = *in.Income
	}
	if in.MedicalHistory != nil && *in.MedicalHistory != "" {
		p.MedicalHistory = *in.MedicalHistory
	}
	if in.InsurancePlan != nil {
		p.InsurancePlan = Plan(*in.InsurancePlan)
	}
	if in.GeneticalRisk != nil {
		p.GeneticalRisk = *in.GeneticalRisk
	}
	return p
}

// NewValidator returns a validator that understands decimal fields, so
// numeric tags such as gte apply to Income.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
