// Package importer loads patient attributes from uploaded JSON or CSV files.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/riskassess/backend/internal/patient"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format, expected .json or .csv")
	ErrNoDataRow         = errors.New("csv file has no data row")
)

// Import picks the format from the file extension. JSON documents are merged
// over the default template; CSV values overlay current.
func Import(filename string, r io.Reader, current patient.Attributes) (patient.Attributes, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return FromJSON(r)
	case ".csv":
		return FromCSV(r, current)
	default:
		return current, ErrUnsupportedFormat
	}
}

func FromJSON(r io.Reader) (patient.Attributes, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return patient.Attributes{}, fmt.Errorf("failed to read json: %w", err)
	}
	return patient.Merge(patient.Default(), data)
}

type column struct {
	matches func(header string) bool
	set     func(a *patient.Attributes, v float64)
}

func contains(words ...string) func(string) bool {
	return func(header string) bool {
		for _, w := range words {
			if !strings.Contains(header, w) {
				return false
			}
		}
		return true
	}
}

// a header may match more than one column; every match applies
var columns = []column{
	{contains("glucose"), func(a *patient.Attributes, v float64) { a.Glucose = v }},
	{contains("bmi"), func(a *patient.Attributes, v float64) { a.BMI = v }},
	{contains("blood", "pressure"), func(a *patient.Attributes, v float64) { a.BloodPressure = v }},
	{contains("age"), func(a *patient.Attributes, v float64) { a.Age = v }},
	{contains("insulin"), func(a *patient.Attributes, v float64) { a.Insulin = v }},
	{contains("pedigree"), func(a *patient.Attributes, v float64) { a.DiabetesPedigreeFunction = v }},
	{contains("pregnancies"), func(a *patient.Attributes, v float64) { a.Pregnancies = v }},
	{contains("cholesterol"), func(a *patient.Attributes, v float64) { a.Cholesterol = v }},
}

// FromCSV reads the header and the first data row only. Numeric cells under
// a recognised header overwrite the matching field of current; anything else
// is ignored.
func FromCSV(r io.Reader, current patient.Attributes) (patient.Attributes, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err == io.EOF {
		return current, ErrNoDataRow
	}
	if err != nil {
		return current, fmt.Errorf("failed to read csv header: %w", err)
	}

	values, err := reader.Read()
	if err == io.EOF {
		return current, ErrNoDataRow
	}
	if err != nil {
		return current, fmt.Errorf("failed to read csv row: %w", err)
	}

	out := current
	for i, header := range headers {
		if i >= len(values) {
			break
		}
		v, ok := parseNumber(values[i])
		if !ok {
			continue
		}
		h := strings.ToLower(strings.TrimSpace(header))
		for _, col := range columns {
			if col.matches(h) {
				col.set(&out, v)
			}
		}
	}
	return out, nil
}

func parseNumber(cell string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
