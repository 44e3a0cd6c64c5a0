package prediction

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	minRisk       = 0
	maxRisk       = 100
	minConfidence = 0
	maxConfidence = 1
	minImportance = -100
	maxImportance = 100
)

// Normalize builds a Result from a decoded response object, stamping a new
// id and the current time. It never fails: missing or mistyped fields fall
// back to zero values and list fields are always non-nil.
func Normalize(obj map[string]any) *Result {
	return NormalizeAt(obj, uuid.New().String(), time.Now().UTC())
}

// NormalizeAt is Normalize with the identity and timestamp supplied.
func NormalizeAt(obj map[string]any, id string, now time.Time) *Result {
	r := &Result{
		ID:                id,
		Timestamp:         now,
		OverallRisk:       clamp(number(obj["overallRisk"]), minRisk, maxRisk),
		RiskLevel:         RiskLevel(str(obj["riskLevel"])),
		SafetyStatus:      SafetyStatus(str(obj["safetyStatus"])),
		SafetyDescription: str(obj["safetyDescription"]),
		ModelOutputs:      []ModelOutput{},
		KeyFactors:        strs(obj["keyFactors"]),
		FeatureImportance: []FeatureContribution{},
		Recommendations:   strs(obj["recommendations"]),
		Analysis:          str(obj["analysis"]),
	}

	for _, item := range objects(obj["modelOutputs"]) {
		r.ModelOutputs = append(r.ModelOutputs, ModelOutput{
			Name:        str(item["name"]),
			Type:        ModelType(str(item["type"])),
			Confidence:  clamp(number(item["confidence"]), minConfidence, maxConfidence),
			Prediction:  Outcome(str(item["prediction"])),
			Description: str(item["description"]),
		})
	}

	for _, item := range objects(obj["featureImportance"]) {
		r.FeatureImportance = append(r.FeatureImportance, FeatureContribution{
			Feature:     str(item["feature"]),
			Value:       clamp(number(item["value"]), minImportance, maxImportance),
			Description: str(item["description"]),
		})
	}

	return r
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// number accepts JSON numbers and numeric strings such as "42" or "42%".
// Magnitudes beyond float64 come back as ±Inf for the caller to clamp.
func number(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case json.Number:
		f = parseFloat(string(n))
	case int:
		f = float64(n)
	case string:
		f = parseFloat(strings.TrimSuffix(strings.TrimSpace(n), "%"))
	default:
		return 0
	}
	if math.IsNaN(f) {
		return 0
	}
	return f
}

// parseFloat keeps the ±Inf that strconv reports with ErrRange.
func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0
	}
	return f
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func strs(v any) []string {
	out := []string{}
	items, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func objects(v any) []map[string]any {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
