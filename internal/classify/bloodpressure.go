package classify

import "github.com/vickyymosafan/posyandu-core/internal/apperrors"

// Blood pressure category labels.
const (
	BPNormal   = "Normal"
	BPElevated = "Elevated"
	BPStage1   = "Hypertension Stage 1"
	BPStage2   = "Hypertension Stage 2"
	BPCrisis   = "Hypertensive Crisis"
)

// Blood pressure is classified on two inputs, so it does not fit the
// single-value range engine. The crisis boundary is strictly greater than
// 180/120 and is applied uniformly everywhere.
func classifyBloodPressure(systolic, diastolic int) (category string, emergency bool) {
	switch {
	case systolic > 180 || diastolic > 120:
		return BPCrisis, true
	case systolic >= 140 || diastolic >= 90:
		return BPStage2, false
	case systolic >= 130 || diastolic >= 80:
		return BPStage1, false
	case systolic >= 120 && diastolic < 80:
		return BPElevated, false
	default:
		return BPNormal, false
	}
}

// BloodPressureCategory classifies a systolic/diastolic pair (mmHg), strict
// convention. The emergency flag marks a hypertensive crisis requiring
// referral.
func BloodPressureCategory(systolic, diastolic int) (category string, emergency bool, err error) {
	if systolic < 50 || systolic > 300 {
		return "", false, apperrors.Newf(apperrors.ErrValidation,
			"systolic %d outside plausible range [50, 300]", systolic)
	}
	if diastolic < 30 || diastolic > 200 {
		return "", false, apperrors.Newf(apperrors.ErrValidation,
			"diastolic %d outside plausible range [30, 200]", diastolic)
	}
	if diastolic >= systolic {
		return "", false, apperrors.Newf(apperrors.ErrValidation,
			"diastolic %d not below systolic %d", diastolic, systolic)
	}
	category, emergency = classifyBloodPressure(systolic, diastolic)
	return category, emergency, nil
}

// BloodPressureCategorySafe classifies a systolic/diastolic pair, returning
// nils when either value is missing or implausible.
func BloodPressureCategorySafe(systolic, diastolic *int) (category *string, emergency *bool) {
	if systolic == nil || diastolic == nil {
		return nil, nil
	}
	c, e, err := BloodPressureCategory(*systolic, *diastolic)
	if err != nil {
		return nil, nil
	}
	return &c, &e
}
