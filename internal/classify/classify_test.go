package classify

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vickyymosafan/posyandu-core/internal/apperrors"
	"github.com/vickyymosafan/posyandu-core/internal/models"
)

func TestBMICategoryBoundaries(t *testing.T) {
	tests := []struct {
		bmi  float64
		want string
	}{
		{16.9, "Very Underweight"},
		{17.0, "Underweight"},
		{18.4, "Underweight"},
		{18.5, "Normal"},
		{24.9, "Normal"},
		{25.0, "Normal"}, // inclusive upper bound
		{25.1, "Overweight"},
		{27.0, "Overweight"},
		{27.1, "Obese I"},
		{30.0, "Obese I"},
		{30.1, "Obese II"},
		{99.0, "Obese II"},
	}
	for _, tt := range tests {
		got, err := BMICategory(tt.bmi)
		require.NoError(t, err, "bmi=%v", tt.bmi)
		assert.Equal(t, tt.want, got, "bmi=%v", tt.bmi)
	}
}

func TestBMICategoryRejectsImplausible(t *testing.T) {
	for _, v := range []float64{4.9, 100.1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := BMICategory(v)
		require.Error(t, err, "bmi=%v", v)
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	}
}

func TestBMIFrom(t *testing.T) {
	// 70 kg at 170 cm is 24.22, inside the Normal band.
	bmi, err := BMIFrom(70, 170)
	require.NoError(t, err)
	assert.InDelta(t, 24.22, bmi, 0.005)

	cat, err := BMICategory(bmi)
	require.NoError(t, err)
	assert.Equal(t, "Normal", cat)
}

func TestBMIFromRejectsImplausible(t *testing.T) {
	_, err := BMIFrom(9, 170)
	assert.Error(t, err)
	_, err = BMIFrom(70, 40)
	assert.Error(t, err)
	_, err = BMIFrom(math.NaN(), 170)
	assert.Error(t, err)
}

func TestBloodPressureCategory(t *testing.T) {
	tests := []struct {
		sys, dia  int
		want      string
		emergency bool
	}{
		{185, 100, BPCrisis, true},
		{181, 80, BPCrisis, true},
		{150, 121, BPCrisis, true},
		// 180/120 exactly is not a crisis: the boundary is strict.
		{180, 120, BPStage2, false},
		{140, 85, BPStage2, false},
		{135, 91, BPStage2, false},
		{130, 70, BPStage1, false},
		{125, 85, BPStage1, false},
		{120, 79, BPElevated, false},
		{125, 75, BPElevated, false},
		{119, 75, BPNormal, false},
		{110, 70, BPNormal, false},
	}
	for _, tt := range tests {
		got, emergency, err := BloodPressureCategory(tt.sys, tt.dia)
		require.NoError(t, err, "%d/%d", tt.sys, tt.dia)
		assert.Equal(t, tt.want, got, "%d/%d", tt.sys, tt.dia)
		assert.Equal(t, tt.emergency, emergency, "%d/%d", tt.sys, tt.dia)
	}
}

func TestBloodPressureCategoryRejectsImplausible(t *testing.T) {
	_, _, err := BloodPressureCategory(40, 30)
	assert.Error(t, err)
	_, _, err = BloodPressureCategory(310, 90)
	assert.Error(t, err)
	_, _, err = BloodPressureCategory(120, 130)
	assert.Error(t, err, "diastolic above systolic")
}

func TestGlucoseCategories(t *testing.T) {
	tests := []struct {
		name string
		fn   func(float64) (string, error)
		v    float64
		want string
	}{
		{"fasting 99", FastingGlucoseCategory, 99, "Normal"},
		{"fasting 100", FastingGlucoseCategory, 100, "Pre-diabetes"},
		{"fasting 110", FastingGlucoseCategory, 110, "Pre-diabetes"},
		{"fasting 125.9", FastingGlucoseCategory, 125.9, "Pre-diabetes"},
		{"fasting 126", FastingGlucoseCategory, 126, "Diabetes"},
		{"random 199", RandomGlucoseCategory, 199, "Normal"},
		{"random 200", RandomGlucoseCategory, 200, "Diabetes"},
		{"postprandial 139", PostprandialGlucoseCategory, 139, "Normal"},
		{"postprandial 140", PostprandialGlucoseCategory, 140, "Pre-diabetes"},
		{"postprandial 199", PostprandialGlucoseCategory, 199, "Pre-diabetes"},
		{"postprandial 200", PostprandialGlucoseCategory, 200, "Diabetes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCholesterolCategory(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{199, "Normal"},
		{200, "Borderline High"},
		{239, "Borderline High"},
		{240, "High"},
	}
	for _, tt := range tests {
		got, err := CholesterolCategory(tt.v)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "v=%v", tt.v)
	}
}

func TestUricAcidCategoryByGender(t *testing.T) {
	tests := []struct {
		v      float64
		gender models.Gender
		want   string
	}{
		{3.3, models.GenderMale, "Low"},
		{3.4, models.GenderMale, "Normal"},
		{7.0, models.GenderMale, "Normal"}, // inclusive upper bound
		{7.1, models.GenderMale, "High"},
		{2.3, models.GenderFemale, "Low"},
		{2.4, models.GenderFemale, "Normal"},
		{6.0, models.GenderFemale, "Normal"}, // inclusive upper bound
		{6.1, models.GenderFemale, "High"},
	}
	for _, tt := range tests {
		got, err := UricAcidCategory(tt.v, tt.gender)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "v=%v gender=%s", tt.v, tt.gender)
	}
}

// Every standard must classify any plausible input to exactly one label
// without falling off the table.
func TestClassifierTotality(t *testing.T) {
	standards := []Standard{
		BMIStandard, FastingGlucoseStandard, RandomGlucoseStandard,
		PostprandialGlucoseStandard, CholesterolStandard,
		UricAcidMaleStandard, UricAcidFemaleStandard,
	}
	for _, s := range standards {
		last := s.Ranges[len(s.Ranges)-1]
		assert.True(t, math.IsInf(last.Upper, 1), "%s last range must be unbounded", s.Name)

		for v := s.Min; v <= s.Max; v += (s.Max - s.Min) / 997 {
			r := s.Classify(v)
			assert.NotEmpty(t, r.Label, "%s value %v", s.Name, v)
		}
	}
}

func TestSafeVariantsTolerateMissingInput(t *testing.T) {
	assert.Nil(t, BMICategorySafe(nil))
	assert.Nil(t, FastingGlucoseCategorySafe(nil))
	assert.Nil(t, RandomGlucoseCategorySafe(nil))
	assert.Nil(t, PostprandialGlucoseCategorySafe(nil))
	assert.Nil(t, CholesterolCategorySafe(nil))
	assert.Nil(t, UricAcidCategorySafe(nil, models.GenderMale))

	bad := math.NaN()
	assert.Nil(t, BMICategorySafe(&bad))

	v := 22.5
	got := BMICategorySafe(&v)
	require.NotNil(t, got)
	assert.Equal(t, "Normal", *got)

	sys := 185
	dia := 100
	cat, emergency := BloodPressureCategorySafe(&sys, &dia)
	require.NotNil(t, cat)
	require.NotNil(t, emergency)
	assert.Equal(t, BPCrisis, *cat)
	assert.True(t, *emergency)

	cat, emergency = BloodPressureCategorySafe(&sys, nil)
	assert.Nil(t, cat)
	assert.Nil(t, emergency)
}
