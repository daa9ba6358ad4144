package discounts

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mydentalfly/quote-backend/pkg/enums"
	"github.com/mydentalfly/quote-backend/pkg/types"
)

// PromoCode is a validated user-entered discount token. DiscountValue is a
// percentage; FixedValue holds the per-currency amount of fixed codes.
type PromoCode struct {
	Code          string             `json:"code" validate:"required"`
	DiscountType  enums.DiscountType `json:"discountType" validate:"required,oneof=percentage fixed"`
	DiscountValue decimal.Decimal    `json:"discountValue"`
	FixedValue    types.Money        `json:"fixedValue"`
}

// SpecialOffer is a clinic or platform discount. In price_discount mode it
// reduces the portion of the quote contributed by ApplicableTreatmentID (or the
// whole quote when empty); in bonus_item mode it injects BonusTreatmentID at
// zero price.
type SpecialOffer struct {
	ID                    string             `json:"id" validate:"required"`
	Title                 string             `json:"title" validate:"required"`
	ClinicID              string             `json:"clinicId" validate:"required"`
	Mode                  enums.OfferMode    `json:"mode" validate:"required,oneof=price_discount bonus_item"`
	DiscountType          enums.DiscountType `json:"discountType,omitempty" validate:"omitempty,oneof=percentage fixed"`
	DiscountValue         decimal.Decimal    `json:"discountValue"`
	FixedValue            types.Money        `json:"fixedValue"`
	ApplicableTreatmentID string             `json:"applicableTreatmentId,omitempty"`
	BonusTreatmentID      string             `json:"bonusTreatmentId,omitempty"`
}

// Package bundles treatments at a fixed price. Repeated ids in
// IncludedTreatments mean more than one unit.
type Package struct {
	ID                 string      `json:"id" validate:"required"`
	Title              string      `json:"title" validate:"required"`
	ClinicID           string      `json:"clinicId" validate:"required"`
	FixedPrice         types.Money `json:"fixedPrice"`
	IncludedTreatments []string    `json:"includedTreatments" validate:"min=1,dive,required"`
}

// Source is the tagged union of discount mechanisms. Exactly one of Promo,
// Offer or Package is set, matching Kind.
type Source struct {
	Kind    enums.DiscountKind `json:"kind"`
	Promo   *PromoCode         `json:"promo,omitempty"`
	Offer   *SpecialOffer      `json:"offer,omitempty"`
	Package *Package           `json:"package,omitempty"`
}

// NewPromoSource validates p and wraps it in a Source.
func NewPromoSource(p PromoCode) (*Source, error) {
	p.Code = NormalizeCode(p.Code)
	src := &Source{Kind: enums.DiscountKindPromo, Promo: &p}
	if err := src.Validate(); err != nil {
		return nil, err
	}
	return src, nil
}

// NewOfferSource validates o and wraps it in a Source.
func NewOfferSource(o SpecialOffer) (*Source, error) {
	if o.Mode == "" {
		o.Mode = enums.OfferModePriceDiscount
	}
	src := &Source{Kind: enums.DiscountKindOffer, Offer: &o}
	if err := src.Validate(); err != nil {
		return nil, err
	}
	return src, nil
}

// NewPackageSource validates p and wraps it in a Source.
func NewPackageSource(p Package) (*Source, error) {
	src := &Source{Kind: enums.DiscountKindPackage, Package: &p}
	if err := src.Validate(); err != nil {
		return nil, err
	}
	return src, nil
}

// NormalizeCode upper-cases and trims a promo code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Identity distinguishes sources for idempotent re-apply and line item ownership.
func (s *Source) Identity() string {
	if s == nil {
		return ""
	}
	switch s.Kind {
	case enums.DiscountKindPromo:
		if s.Promo != nil {
			return "promo:" + NormalizeCode(s.Promo.Code)
		}
	case enums.DiscountKindOffer:
		if s.Offer != nil {
			return "offer:" + s.Offer.ID
		}
	case enums.DiscountKindPackage:
		if s.Package != nil {
			return "package:" + s.Package.ID
		}
	}
	return ""
}

// State maps the source onto the quote discount state machine.
func (s *Source) State() enums.DiscountState {
	if s == nil {
		return enums.DiscountStateNone
	}
	switch s.Kind {
	case enums.DiscountKindPromo:
		return enums.DiscountStatePromoApplied
	case enums.DiscountKindOffer:
		return enums.DiscountStateOfferApplied
	case enums.DiscountKindPackage:
		return enums.DiscountStatePackageApplied
	default:
		return enums.DiscountStateNone
	}
}

// Title is a short display label.
func (s *Source) Title() string {
	if s == nil {
		return ""
	}
	switch {
	case s.Promo != nil:
		return s.Promo.Code
	case s.Offer != nil:
		return s.Offer.Title
	case s.Package != nil:
		return s.Package.Title
	}
	return ""
}

// Clone deep-copies the source.
func (s *Source) Clone() *Source {
	if s == nil {
		return nil
	}
	out := &Source{Kind: s.Kind}
	if s.Promo != nil {
		p := *s.Promo
		out.Promo = &p
	}
	if s.Offer != nil {
		o := *s.Offer
		out.Offer = &o
	}
	if s.Package != nil {
		p := *s.Package
		p.IncludedTreatments = append([]string(nil), s.Package.IncludedTreatments...)
		out.Package = &p
	}
	return out
}
