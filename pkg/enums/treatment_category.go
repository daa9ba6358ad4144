package enums

import (
	"fmt"
	"strings"
)

// TreatmentCategory groups catalog entries for display.
type TreatmentCategory string

const (
	TreatmentCategoryImplants      TreatmentCategory = "implants"
	TreatmentCategoryCrownsVeneers TreatmentCategory = "crowns_veneers"
	TreatmentCategoryWhitening     TreatmentCategory = "whitening"
	TreatmentCategoryFullMouth     TreatmentCategory = "full_mouth"
	TreatmentCategoryGeneral       TreatmentCategory = "general"
	TreatmentCategoryOther         TreatmentCategory = "other"
)

var validTreatmentCategories = []TreatmentCategory{
	TreatmentCategoryImplants,
	TreatmentCategoryCrownsVeneers,
	TreatmentCategoryWhitening,
	TreatmentCategoryFullMouth,
	TreatmentCategoryGeneral,
	TreatmentCategoryOther,
}

// String implements fmt.Stringer.
func (t TreatmentCategory) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TreatmentCategory.
func (t TreatmentCategory) IsValid() bool {
	for _, candidate := range validTreatmentCategories {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTreatmentCategory converts raw input into a TreatmentCategory.
func ParseTreatmentCategory(value string) (TreatmentCategory, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validTreatmentCategories {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid treatment category %q", value)
}
