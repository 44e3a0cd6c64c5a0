package llm

import "github.com/sashabaranov/go-openai/jsonschema"

// SchemaName identifies the response format in the inference request.
const SchemaName = "diabetes_risk_assessment"

// RequiredFields are the top-level fields the inference service is asked to
// return. The service may still omit them; the normalizer supplies defaults.
var RequiredFields = []string{
	"overallRisk",
	"riskLevel",
	"safetyStatus",
	"safetyDescription",
	"modelOutputs",
	"keyFactors",
	"featureImportance",
	"recommendations",
	"analysis",
}

// ResponseSchema describes the assessment object sent alongside the prompt.
// It biases generation and is not used for validation.
func ResponseSchema() jsonschema.Definition {
	required := make([]string, len(RequiredFields))
	copy(required, RequiredFields)

	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"overallRisk": {
				Type:        jsonschema.Number,
				Description: "Overall risk percentage from 0 to 100",
			},
			"riskLevel": {
				Type: jsonschema.String,
				Enum: []string{"Low", "Moderate", "High", "Very High"},
			},
			"safetyStatus": {
				Type:        jsonschema.String,
				Enum:        []string{"Safe", "Monitor", "Critical"},
				Description: "Immediate safety assessment from current vitals.",
			},
			"safetyDescription": {
				Type:        jsonschema.String,
				Description: "Brief explanation of the safety status, e.g. 'Blood pressure is dangerously high'.",
			},
			"modelOutputs": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"name": {Type: jsonschema.String},
						"type": {
							Type: jsonschema.String,
							Enum: []string{"ANN", "DNN", "KNN"},
						},
						"confidence": {
							Type:        jsonschema.Number,
							Description: "Confidence score between 0 and 1",
						},
						"prediction": {
							Type: jsonschema.String,
							Enum: []string{"Diabetic", "Non-Diabetic"},
						},
						"description": {
							Type:        jsonschema.String,
							Description: "Short description of what this model detected",
						},
					},
					Required: []string{"name", "type", "confidence", "prediction", "description"},
				},
			},
			"keyFactors": {
				Type:        jsonschema.Array,
				Items:       &jsonschema.Definition{Type: jsonschema.String},
				Description: "Key health factors contributing to the risk",
			},
			"featureImportance": {
				Type:        jsonschema.Array,
				Description: "Directional contribution of each factor. Positive values increase risk, negative values decrease it.",
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"feature": {Type: jsonschema.String},
						"value": {
							Type:        jsonschema.Number,
							Description: "Score from -100 to 100, e.g. high BMI +40, young age -20",
						},
						"description": {
							Type:        jsonschema.String,
							Description: "Why this feature mattered",
						},
					},
				},
			},
			"recommendations": {
				Type:        jsonschema.Array,
				Items:       &jsonschema.Definition{Type: jsonschema.String},
				Description: "Actionable health recommendations",
			},
			"analysis": {
				Type:        jsonschema.String,
				Description: "Comprehensive textual analysis of the patient's condition",
			},
		},
		Required: required,
	}
}
