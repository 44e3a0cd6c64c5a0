package llm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/riskassess/backend/internal/patient"
)

// SystemPrompt frames every assessment request.
const SystemPrompt = `You are a high-precision multimodal medical AI system for diabetes risk prediction.
You MUST answer with a single JSON object matching the requested schema and nothing else.`

const ensembleDirective = `Perform an ensemble analysis simulation using STRICTLY the following three architectures, and return exactly one modelOutputs entry for each, each with its own confidence (0 to 1) and prediction (Diabetic or Non-Diabetic):
1. ANN (Artificial Neural Network): analyze basic clinical relationships (Glucose, BMI, Age).
2. DNN (Deep Neural Network): deep analysis of complex interactions between lifestyle factors and clinical metrics.
3. KNN (K-Nearest Neighbors): compare the patient against a simulated dataset of 10,000 cases and classify by the nearest neighbour clusters.`

const safetyDirective = `CRITICAL: Evaluate 'safetyStatus' from the immediate vitals only.
- 'Critical': Glucose > 200 mg/dL OR Blood Pressure > 160/100 OR BMI > 40.
- 'Monitor': Glucose 140-199 mg/dL OR Blood Pressure 140-159.
- 'Safe': all metrics within normal ranges.`

const formatDirective = `IMPORTANT: Return the result STRICTLY as a valid JSON object matching the schema. Do not add markdown formatting or conversational text outside the JSON.
For 'featureImportance', every value must be between -100 (strongly reduces risk) and +100 (strongly increases risk).`

// BuildPrompt renders the assessment request for one patient. The output
// depends only on attrs, and each attribute appears on exactly one line.
func BuildPrompt(attrs patient.Attributes) string {
	var b strings.Builder

	b.WriteString("Analyze the following patient data.\n\n")

	b.WriteString("Clinical Data:\n")
	fmt.Fprintf(&b, "- Gender: %s\n", attrs.Gender)
	fmt.Fprintf(&b, "- Age: %s years\n", formatNumber(attrs.Age))
	fmt.Fprintf(&b, "- BMI: %s\n", formatNumber(attrs.BMI))
	fmt.Fprintf(&b, "- Pregnancies: %s\n", formatNumber(attrs.Pregnancies))
	fmt.Fprintf(&b, "- Glucose: %s mg/dL\n", formatNumber(attrs.Glucose))
	fmt.Fprintf(&b, "- Blood Pressure: %s mm Hg\n", formatNumber(attrs.BloodPressure))
	fmt.Fprintf(&b, "- Insulin: %s mu U/ml\n", formatNumber(attrs.Insulin))
	fmt.Fprintf(&b, "- Diabetes Pedigree: %s\n", formatNumber(attrs.DiabetesPedigreeFunction))

	b.WriteString("\nLifestyle & Health History:\n")
	fmt.Fprintf(&b, "- Cholesterol: %s mg/dL\n", formatNumber(attrs.Cholesterol))
	fmt.Fprintf(&b, "- Smoking Status: %s\n", attrs.SmokingHistory)
	fmt.Fprintf(&b, "- Alcohol Consumption: %s\n", attrs.AlcoholConsumption)
	fmt.Fprintf(&b, "- Physical Activity: %s\n", attrs.PhysicalActivity)
	fmt.Fprintf(&b, "- Family History of Diabetes: %s\n", yesNo(attrs.FamilyHistory))

	b.WriteString("\n")
	b.WriteString(ensembleDirective)
	b.WriteString("\n\n")
	b.WriteString(safetyDirective)
	b.WriteString("\n\n")
	b.WriteString(formatDirective)
	b.WriteString("\n")

	return b.String()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
