// Package prediction holds the normalized assessment returned to callers and
// the normalizer that builds it from the inference service's raw object.
package prediction

import "time"

type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
	RiskVeryHigh RiskLevel = "Very High"
)

type SafetyStatus string

const (
	SafetySafe     SafetyStatus = "Safe"
	SafetyMonitor  SafetyStatus = "Monitor"
	SafetyCritical SafetyStatus = "Critical"
)

type ModelType string

const (
	ModelANN ModelType = "ANN"
	ModelDNN ModelType = "DNN"
	ModelKNN ModelType = "KNN"
)

type Outcome string

const (
	OutcomeDiabetic    Outcome = "Diabetic"
	OutcomeNonDiabetic Outcome = "Non-Diabetic"
)

// ModelOutput is the verdict of one simulated sub-model.
type ModelOutput struct {
	Name        string    `json:"name"`
	Type        ModelType `json:"type"`
	Confidence  float64   `json:"confidence"`
	Prediction  Outcome   `json:"prediction"`
	Description string    `json:"description"`
}

// FeatureContribution attributes risk to one attribute. Positive values
// increase risk, negative values reduce it.
type FeatureContribution struct {
	Feature     string  `json:"feature"`
	Value       float64 `json:"value"`
	Description string  `json:"description"`
}

type Feedback struct {
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Timestamp time.Time `json:"timestamp"`
}

// Result is one normalized assessment. Everything except Feedback is fixed
// once the normalizer returns it.
type Result struct {
	ID                string                `json:"id"`
	Timestamp         time.Time             `json:"timestamp"`
	OverallRisk       float64               `json:"overallRisk"`
	RiskLevel         RiskLevel             `json:"riskLevel"`
	SafetyStatus      SafetyStatus          `json:"safetyStatus"`
	SafetyDescription string                `json:"safetyDescription"`
	ModelOutputs      []ModelOutput         `json:"modelOutputs"`
	KeyFactors        []string              `json:"keyFactors"`
	FeatureImportance []FeatureContribution `json:"featureImportance"`
	Recommendations   []string              `json:"recommendations"`
	Analysis          string                `json:"analysis"`
	Feedback          *Feedback             `json:"feedback,omitempty"`
}

// Model returns the first output of the given architecture.
func (r *Result) Model(t ModelType) (ModelOutput, bool) {
	for _, m := range r.ModelOutputs {
		if m.Type == t {
			return m, true
		}
	}
	return ModelOutput{}, false
}
