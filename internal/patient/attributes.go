// Package patient defines the clinical and lifestyle attributes submitted for
// a diabetes risk assessment.
package patient

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

type SmokingHistory string

const (
	SmokingNever   SmokingHistory = "Never"
	SmokingFormer  SmokingHistory = "Former"
	SmokingCurrent SmokingHistory = "Current"
)

type AlcoholConsumption string

const (
	AlcoholNone       AlcoholConsumption = "None"
	AlcoholOccasional AlcoholConsumption = "Occasional"
	AlcoholFrequent   AlcoholConsumption = "Frequent"
)

type PhysicalActivity string

const (
	ActivitySedentary PhysicalActivity = "Sedentary"
	ActivityModerate  PhysicalActivity = "Moderate"
	ActivityActive    PhysicalActivity = "Active"
)

// Attributes is the complete input record for one assessment. Numeric
// measures use the units of the intake form: glucose and cholesterol in
// mg/dL, blood pressure in mm Hg, insulin in mu U/ml.
type Attributes struct {
	Pregnancies              float64            `json:"pregnancies"`
	Glucose                  float64            `json:"glucose"`
	BloodPressure            float64            `json:"bloodPressure"`
	Insulin                  float64            `json:"insulin"`
	BMI                      float64            `json:"bmi"`
	DiabetesPedigreeFunction float64            `json:"diabetesPedigreeFunction"`
	Age                      float64            `json:"age"`
	Gender                   Gender             `json:"gender"`
	Cholesterol              float64            `json:"cholesterol"`
	SmokingHistory           SmokingHistory     `json:"smokingHistory"`
	AlcoholConsumption       AlcoholConsumption `json:"alcoholConsumption"`
	PhysicalActivity         PhysicalActivity   `json:"physicalActivity"`
	FamilyHistory            bool               `json:"familyHistory"`
}

// Default returns the template that fills any attribute a caller leaves out.
func Default() Attributes {
	return Attributes{
		Pregnancies:              0,
		Glucose:                  100,
		BloodPressure:            72,
		Insulin:                  79,
		BMI:                      25.0,
		DiabetesPedigreeFunction: 0.5,
		Age:                      30,
		Gender:                   GenderFemale,
		Cholesterol:              180,
		SmokingHistory:           SmokingNever,
		AlcoholConsumption:       AlcoholNone,
		PhysicalActivity:         ActivityModerate,
		FamilyHistory:            false,
	}
}

// Merge decodes a (possibly partial) JSON document over base. Fields absent
// from data keep their value from base.
func Merge(base Attributes, data []byte) (Attributes, error) {
	merged := base
	if len(strings.TrimSpace(string(data))) == 0 {
		return merged, nil
	}
	if err := json.Unmarshal(data, &merged); err != nil {
		return base, fmt.Errorf("failed to decode attributes: %w", err)
	}
	return merged, nil
}

// UnmarshalJSON accepts familyHistory as a boolean or as the strings
// "true"/"false"/"yes"/"no", which is how form selects submit it.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	type plain Attributes
	aux := struct {
		*plain
		FamilyHistory json.RawMessage `json:"familyHistory"`
	}{plain: (*plain)(a)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.FamilyHistory) == 0 || string(aux.FamilyHistory) == "null" {
		return nil
	}

	var b bool
	if err := json.Unmarshal(aux.FamilyHistory, &b); err == nil {
		a.FamilyHistory = b
		return nil
	}

	var s string
	if err := json.Unmarshal(aux.FamilyHistory, &s); err != nil {
		return NewValidationError("familyHistory", "must be a boolean", string(aux.FamilyHistory))
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		a.FamilyHistory = true
	case "false", "no", "0", "":
		a.FamilyHistory = false
	default:
		return NewValidationError("familyHistory", "must be a boolean", s)
	}
	return nil
}

type bound struct {
	field string
	value float64
	max   float64
}

// Validate rejects values that cannot describe a real patient: negative or
// non-finite numbers, implausible magnitudes, and unknown enumeration values.
// Clinical judgement is left to the assessment.
func (a Attributes) Validate() error {
	bounds := []bound{
		{"pregnancies", a.Pregnancies, 30},
		{"glucose", a.Glucose, 1000},
		{"bloodPressure", a.BloodPressure, 300},
		{"insulin", a.Insulin, 1500},
		{"bmi", a.BMI, 100},
		{"diabetesPedigreeFunction", a.DiabetesPedigreeFunction, 5},
		{"age", a.Age, 130},
		{"cholesterol", a.Cholesterol, 1000},
	}
	for _, b := range bounds {
		if math.IsNaN(b.value) || math.IsInf(b.value, 0) {
			return NewValidationError(b.field, "must be a finite number", b.value)
		}
		if b.value < 0 || b.value > b.max {
			return NewValidationError(b.field, fmt.Sprintf("must be between 0 and %g", b.max), b.value)
		}
	}

	switch a.Gender {
	case GenderMale, GenderFemale, GenderOther:
	default:
		return NewValidationError("gender", "must be one of Male, Female, Other", a.Gender)
	}
	switch a.SmokingHistory {
	case SmokingNever, SmokingFormer, SmokingCurrent:
	default:
		return NewValidationError("smokingHistory", "must be one of Never, Former, Current", a.SmokingHistory)
	}
	switch a.AlcoholConsumption {
	case AlcoholNone, AlcoholOccasional, AlcoholFrequent:
	default:
		return NewValidationError("alcoholConsumption", "must be one of None, Occasional, Frequent", a.AlcoholConsumption)
	}
	switch a.PhysicalActivity {
	case ActivitySedentary, ActivityModerate, ActivityActive:
	default:
		return NewValidationError("physicalActivity", "must be one of Sedentary, Moderate, Active", a.PhysicalActivity)
	}

	return nil
}

// ValidationError reports the first attribute that failed validation.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
