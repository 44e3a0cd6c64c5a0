package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskassess/backend/internal/patient"
)

func TestFromCSV_OverlaysMatchedColumns(t *testing.T) {
	current := patient.Default()
	current.Gender = patient.GenderMale
	current.Age = 44

	csvData := "Glucose,BMI,Blood Pressure,Insulin,DiabetesPedigreeFunction,Pregnancies,Cholesterol,Notes\n" +
		"148,33.6,72,94,0.627,6,210,fasting\n" +
		"999,99,99,99,9,9,999,ignored\n"

	got, err := FromCSV(strings.NewReader(csvData), current)

	require.NoError(t, err)
	assert.Equal(t, 148.0, got.Glucose)
	assert.Equal(t, 33.6, got.BMI)
	assert.Equal(t, 72.0, got.BloodPressure)
	assert.Equal(t, 94.0, got.Insulin)
	assert.Equal(t, 0.627, got.DiabetesPedigreeFunction)
	assert.Equal(t, 6.0, got.Pregnancies)
	assert.Equal(t, 210.0, got.Cholesterol)

	// untouched by the file
	assert.Equal(t, 44.0, got.Age)
	assert.Equal(t, patient.GenderMale, got.Gender)
}

func TestFromCSV_IgnoresBadCells(t *testing.T) {
	current := patient.Default()
	csvData := "glucose,age,pressure,bmi\nhigh,52,130,\n"

	got, err := FromCSV(strings.NewReader(csvData), current)

	require.NoError(t, err)
	assert.Equal(t, current.Glucose, got.Glucose, "non-numeric cell")
	assert.Equal(t, 52.0, got.Age)
	assert.Equal(t, current.BloodPressure, got.BloodPressure, "pressure alone is not blood pressure")
	assert.Equal(t, current.BMI, got.BMI, "empty cell")
}

func TestFromCSV_ShortRowAndHeaderOnly(t *testing.T) {
	current := patient.Default()

	got, err := FromCSV(strings.NewReader("glucose,bmi\n120\n"), current)
	require.NoError(t, err)
	assert.Equal(t, 120.0, got.Glucose)
	assert.Equal(t, current.BMI, got.BMI)

	_, err = FromCSV(strings.NewReader("glucose,bmi\n"), current)
	assert.ErrorIs(t, err, ErrNoDataRow)

	_, err = FromCSV(strings.NewReader(""), current)
	assert.ErrorIs(t, err, ErrNoDataRow)
}

func TestFromJSON_MergesOverDefaults(t *testing.T) {
	got, err := FromJSON(strings.NewReader(`{"glucose": 165, "gender": "Male", "familyHistory": "yes"}`))

	require.NoError(t, err)
	want := patient.Default()
	want.Glucose = 165
	want.Gender = patient.GenderMale
	want.FamilyHistory = true
	assert.Equal(t, want, got)
}

func TestFromJSON_Invalid(t *testing.T) {
	_, err := FromJSON(strings.NewReader(`{"glucose": `))
	assert.Error(t, err)
}

func TestImport_ByExtension(t *testing.T) {
	current := patient.Default()
	current.Age = 61

	fromJSON, err := Import("patient.JSON", strings.NewReader(`{"bmi": 31}`), current)
	require.NoError(t, err)
	assert.Equal(t, 31.0, fromJSON.BMI)
	assert.Equal(t, patient.Default().Age, fromJSON.Age, "json starts from the template")

	fromCSV, err := Import("labs.csv", strings.NewReader("bmi\n28\n"), current)
	require.NoError(t, err)
	assert.Equal(t, 28.0, fromCSV.BMI)
	assert.Equal(t, 61.0, fromCSV.Age, "csv overlays current values")

	_, err = Import("scan.pdf", strings.NewReader(""), current)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
