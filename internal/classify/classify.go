// Package classify maps measured health-metric values to categorical
// labels using ordered range tables.
//
// Each standard is an ascending list of ranges; a value matches the first
// range whose upper bound it does not reach (exceed, for inclusive bounds).
// The final range of every table is unbounded, so classification is total
// for any non-negative input. The thresholds are part of the external
// contract shared with the posyandu backend and must not drift.
//
// Two calling conventions are provided: the strict functions reject
// non-finite or implausible input with a validation error and are used when
// submitting a new examination, while the Safe variants return nil for
// missing or invalid input and are used for live previews and offline
// best-effort classification.
package classify

import (
	"math"

	"github.com/vickyymosafan/posyandu-core/internal/apperrors"
	"github.com/vickyymosafan/posyandu-core/internal/models"
)

// Range is one entry of an ordered classification table. The lower bound is
// implied by the previous range's upper bound (0 for the first range).
type Range struct {
	Upper     float64 // upper bound, exclusive unless Inclusive is set
	Inclusive bool    // value equal to Upper still falls in this range
	Label     string
	Emergency bool
}

// Standard is a named ordered classification table. The last range must be
// unbounded (Upper = +Inf).
type Standard struct {
	Name   string
	Min    float64 // lowest plausible input, strict functions reject below
	Max    float64 // highest plausible input, strict functions reject above
	Ranges []Range
}

// Classify returns the matching range for v. It never fails for
// non-negative finite input because the last range is unbounded.
func (s Standard) Classify(v float64) Range {
	for _, r := range s.Ranges {
		if v < r.Upper || (r.Inclusive && v == r.Upper) {
			return r
		}
	}
	return s.Ranges[len(s.Ranges)-1]
}

// classifyStrict validates v against the standard's plausible bounds before
// classifying.
func (s Standard) classifyStrict(v float64) (Range, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Range{}, apperrors.Newf(apperrors.ErrValidation, "%s value is not a finite number", s.Name)
	}
	if v < s.Min || v > s.Max {
		return Range{}, apperrors.Newf(apperrors.ErrValidation,
			"%s value %.2f outside plausible range [%.1f, %.1f]", s.Name, v, s.Min, s.Max)
	}
	return s.Classify(v), nil
}

// classifySafe returns nil for missing or implausible input.
func (s Standard) classifySafe(v *float64) *string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v < s.Min || *v > s.Max {
		return nil
	}
	label := s.Classify(*v).Label
	return &label
}

var inf = math.Inf(1)

// BMIStandard is the Asia-Pacific adult BMI classification.
var BMIStandard = Standard{
	Name: "BMI",
	Min:  5, Max: 100,
	Ranges: []Range{
		{Upper: 17.0, Label: "Very Underweight"},
		{Upper: 18.5, Label: "Underweight"},
		{Upper: 25.0, Inclusive: true, Label: "Normal"},
		{Upper: 27.0, Inclusive: true, Label: "Overweight"},
		{Upper: 30.0, Inclusive: true, Label: "Obese I"},
		{Upper: inf, Label: "Obese II"},
	},
}

// FastingGlucoseStandard classifies fasting blood glucose (GDP, mg/dL).
var FastingGlucoseStandard = Standard{
	Name: "fasting glucose",
	Min:  10, Max: 1000,
	Ranges: []Range{
		{Upper: 100, Label: "Normal"},
		{Upper: 126, Label: "Pre-diabetes"},
		{Upper: inf, Label: "Diabetes"},
	},
}

// RandomGlucoseStandard classifies random blood glucose (GDS, mg/dL).
var RandomGlucoseStandard = Standard{
	Name: "random glucose",
	Min:  10, Max: 1000,
	Ranges: []Range{
		{Upper: 200, Label: "Normal"},
		{Upper: inf, Label: "Diabetes"},
	},
}

// PostprandialGlucoseStandard classifies 2-hour postprandial glucose (mg/dL).
var PostprandialGlucoseStandard = Standard{
	Name: "postprandial glucose",
	Min:  10, Max: 1000,
	Ranges: []Range{
		{Upper: 140, Label: "Normal"},
		{Upper: 200, Label: "Pre-diabetes"},
		{Upper: inf, Label: "Diabetes"},
	},
}

// CholesterolStandard classifies total cholesterol (mg/dL).
var CholesterolStandard = Standard{
	Name: "total cholesterol",
	Min:  50, Max: 1000,
	Ranges: []Range{
		{Upper: 200, Label: "Normal"},
		{Upper: 240, Label: "Borderline High"},
		{Upper: inf, Label: "High"},
	},
}

// UricAcidMaleStandard classifies uric acid for male patients (mg/dL).
var UricAcidMaleStandard = Standard{
	Name: "uric acid",
	Min:  0.5, Max: 30,
	Ranges: []Range{
		{Upper: 3.4, Label: "Low"},
		{Upper: 7.0, Inclusive: true, Label: "Normal"},
		{Upper: inf, Label: "High"},
	},
}

// UricAcidFemaleStandard classifies uric acid for female patients (mg/dL).
var UricAcidFemaleStandard = Standard{
	Name: "uric acid",
	Min:  0.5, Max: 30,
	Ranges: []Range{
		{Upper: 2.4, Label: "Low"},
		{Upper: 6.0, Inclusive: true, Label: "Normal"},
		{Upper: inf, Label: "High"},
	},
}

// BMIFrom computes the body mass index from weight in kilograms and height
// in centimeters.
func BMIFrom(weightKG, heightCM float64) (float64, error) {
	if math.IsNaN(weightKG) || math.IsInf(weightKG, 0) || weightKG < 10 || weightKG > 300 {
		return 0, apperrors.Newf(apperrors.ErrValidation, "weight %.1f kg outside plausible range [10, 300]", weightKG)
	}
	if math.IsNaN(heightCM) || math.IsInf(heightCM, 0) || heightCM < 50 || heightCM > 250 {
		return 0, apperrors.Newf(apperrors.ErrValidation, "height %.1f cm outside plausible range [50, 250]", heightCM)
	}
	m := heightCM / 100
	return weightKG / (m * m), nil
}

// BMICategory returns the Asia-Pacific BMI category, strict convention.
func BMICategory(bmi float64) (string, error) {
	r, err := BMIStandard.classifyStrict(bmi)
	if err != nil {
		return "", err
	}
	return r.Label, nil
}

// BMICategorySafe returns the BMI category, or nil for missing or
// implausible input.
func BMICategorySafe(bmi *float64) *string {
	return BMIStandard.classifySafe(bmi)
}

// FastingGlucoseCategory returns the GDP category, strict convention.
func FastingGlucoseCategory(v float64) (string, error) {
	r, err := FastingGlucoseStandard.classifyStrict(v)
	if err != nil {
		return "", err
	}
	return r.Label, nil
}

// FastingGlucoseCategorySafe returns the GDP category, or nil.
func FastingGlucoseCategorySafe(v *float64) *string {
	return FastingGlucoseStandard.classifySafe(v)
}

// RandomGlucoseCategory returns the GDS category, strict convention.
func RandomGlucoseCategory(v float64) (string, error) {
	r, err := RandomGlucoseStandard.classifyStrict(v)
	if err != nil {
		return "", err
	}
	return r.Label, nil
}

// RandomGlucoseCategorySafe returns the GDS category, or nil.
func RandomGlucoseCategorySafe(v *float64) *string {
	return RandomGlucoseStandard.classifySafe(v)
}

// PostprandialGlucoseCategory returns the 2-hour postprandial category,
// strict convention.
func PostprandialGlucoseCategory(v float64) (string, error) {
	r, err := PostprandialGlucoseStandard.classifyStrict(v)
	if err != nil {
		return "", err
	}
	return r.Label, nil
}

// PostprandialGlucoseCategorySafe returns the postprandial category, or nil.
func PostprandialGlucoseCategorySafe(v *float64) *string {
	return PostprandialGlucoseStandard.classifySafe(v)
}

// CholesterolCategory returns the total cholesterol category, strict
// convention.
func CholesterolCategory(v float64) (string, error) {
	r, err := CholesterolStandard.classifyStrict(v)
	if err != nil {
		return "", err
	}
	return r.Label, nil
}

// CholesterolCategorySafe returns the cholesterol category, or nil.
func CholesterolCategorySafe(v *float64) *string {
	return CholesterolStandard.classifySafe(v)
}

// uricAcidStandard selects the gender-specific uric acid table.
func uricAcidStandard(gender models.Gender) Standard {
	if gender == models.GenderFemale {
		return UricAcidFemaleStandard
	}
	return UricAcidMaleStandard
}

// UricAcidCategory returns the gender-specific uric acid category, strict
// convention.
func UricAcidCategory(v float64, gender models.Gender) (string, error) {
	r, err := uricAcidStandard(gender).classifyStrict(v)
	if err != nil {
		return "", err
	}
	return r.Label, nil
}

// UricAcidCategorySafe returns the uric acid category, or nil.
func UricAcidCategorySafe(v *float64, gender models.Gender) *string {
	return uricAcidStandard(gender).classifySafe(v)
}
