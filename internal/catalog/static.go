package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mydentalfly/quote-backend/pkg/enums"
	"github.com/mydentalfly/quote-backend/pkg/types"
)

// Static serves treatments from an in-process table.
type Static struct {
	byID  map[string]Treatment
	order []string
}

// NewStatic builds a catalog from the supplied entries. Duplicate ids are rejected.
func NewStatic(entries ...Treatment) (*Static, error) {
	s := &Static{byID: make(map[string]Treatment, len(entries))}
	for _, t := range entries {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			return nil, fmt.Errorf("treatment id required")
		}
		if _, dup := s.byID[id]; dup {
			return nil, fmt.Errorf("duplicate treatment %q", id)
		}
		if t.Price.IsNegative() {
			return nil, fmt.Errorf("treatment %q has negative price", id)
		}
		t.ID = id
		s.byID[id] = t
		s.order = append(s.order, id)
	}
	sort.Strings(s.order)
	return s, nil
}

// Default returns the built-in dental catalog.
func Default() *Static {
	s, err := NewStatic(defaultTreatments...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Static) GetTreatment(_ context.Context, id string) (Treatment, error) {
	t, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return Treatment{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t, nil
}

func (s *Static) ListTreatments(context.Context) ([]Treatment, error) {
	out := make([]Treatment, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out, nil
}

// Kept in step with the seed migration.
var defaultTreatments = []Treatment{
	{ID: "dental_implant_standard", Name: "Dental Implant (Standard)", Category: enums.TreatmentCategoryImplants, Price: types.NewMoney(875, 1120), GuaranteeTerm: "10 years"},
	{ID: "dental_implant_premium", Name: "Dental Implant (Premium)", Category: enums.TreatmentCategoryImplants, Price: types.NewMoney(1150, 1470), GuaranteeTerm: "Lifetime"},
	{ID: "all_on_4_implants", Name: "All-on-4 Implants (per arch)", Category: enums.TreatmentCategoryFullMouth, Price: types.NewMoney(4950, 6300), GuaranteeTerm: "10 years"},
	{ID: "all_on_6_implants", Name: "All-on-6 Implants (per arch)", Category: enums.TreatmentCategoryFullMouth, Price: types.NewMoney(5950, 7600), GuaranteeTerm: "10 years"},
	{ID: "sinus_lift", Name: "Sinus Lift", Category: enums.TreatmentCategoryImplants, Price: types.NewMoney(550, 700)},
	{ID: "bone_graft", Name: "Bone Graft", Category: enums.TreatmentCategoryImplants, Price: types.NewMoney(450, 575)},
	{ID: "zirconia_crown", Name: "Zirconia Crown", Category: enums.TreatmentCategoryCrownsVeneers, Price: types.NewMoney(290, 370), GuaranteeTerm: "5 years"},
	{ID: "porcelain_crown", Name: "Porcelain Crown", Category: enums.TreatmentCategoryCrownsVeneers, Price: types.NewMoney(220, 280), GuaranteeTerm: "5 years"},
	{ID: "porcelain_veneer", Name: "Porcelain Veneer", Category: enums.TreatmentCategoryCrownsVeneers, Price: types.NewMoney(250, 320), GuaranteeTerm: "5 years"},
	{ID: "emax_veneer", Name: "E-max Veneer", Category: enums.TreatmentCategoryCrownsVeneers, Price: types.NewMoney(320, 410), GuaranteeTerm: "5 years"},
	{ID: "hollywood_smile", Name: "Hollywood Smile (20 units)", Category: enums.TreatmentCategoryFullMouth, Price: types.NewMoney(4200, 5350), GuaranteeTerm: "5 years"},
	{ID: "teeth_whitening", Name: "Professional Teeth Whitening", Category: enums.TreatmentCategoryWhitening, Price: types.NewMoney(150, 190), GuaranteeTerm: "1 year"},
	{ID: "root_canal_treatment", Name: "Root Canal Treatment", Category: enums.TreatmentCategoryGeneral, Price: types.NewMoney(180, 230), GuaranteeTerm: "2 years"},
	{ID: "dental_consultation", Name: "Dental Consultation", Category: enums.TreatmentCategoryGeneral, Price: types.NewMoney(60, 75)},
	{ID: "panoramic_xray", Name: "Panoramic X-Ray", Category: enums.TreatmentCategoryGeneral, Price: types.NewMoney(40, 50)},
}
