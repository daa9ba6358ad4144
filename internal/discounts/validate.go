package discounts

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/mydentalfly/quote-backend/pkg/enums"
	pkgerrors "github.com/mydentalfly/quote-backend/pkg/errors"
	"github.com/mydentalfly/quote-backend/pkg/types"
)

var validate = newValidator()

var hundred = decimal.NewFromInt(100)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// Validate checks struct tags and the cross-field rules of the populated variant.
func (s *Source) Validate() error {
	if s == nil {
		return invalidSource("discount source is empty", nil)
	}

	var (
		target any
		rules  func() map[string]string
		count  int
	)
	if s.Promo != nil {
		count++
		target = s.Promo
		rules = func() map[string]string { return s.Promo.rules() }
	}
	if s.Offer != nil {
		count++
		target = s.Offer
		rules = func() map[string]string { return s.Offer.rules() }
	}
	if s.Package != nil {
		count++
		target = s.Package
		rules = func() map[string]string { return s.Package.rules() }
	}
	if count != 1 {
		return invalidSource("exactly one discount variant must be set", nil)
	}
	if want := kindOf(s); want != s.Kind {
		return invalidSource(fmt.Sprintf("discount kind %q does not match populated variant %q", s.Kind, want), nil)
	}

	details := map[string]string{}
	if err := validate.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return invalidSource("discount source is invalid", nil)
		}
		for _, fe := range fieldErrs {
			details[fe.Field()] = validationMessage(fe)
		}
	}
	for field, msg := range rules() {
		if _, seen := details[field]; !seen {
			details[field] = msg
		}
	}
	if len(details) > 0 {
		return invalidSource(fmt.Sprintf("%s discount is invalid", s.Kind), details)
	}
	return nil
}

func kindOf(s *Source) enums.DiscountKind {
	switch {
	case s.Promo != nil:
		return enums.DiscountKindPromo
	case s.Offer != nil:
		return enums.DiscountKindOffer
	default:
		return enums.DiscountKindPackage
	}
}

func (p *PromoCode) rules() map[string]string {
	return reductionRules(p.DiscountType, p.DiscountValue, p.FixedValue)
}

func (o *SpecialOffer) rules() map[string]string {
	if o.Mode == enums.OfferModeBonusItem {
		if strings.TrimSpace(o.BonusTreatmentID) == "" {
			return map[string]string{"bonusTreatmentId": "is required for bonus offers"}
		}
		return nil
	}
	if o.DiscountType == "" {
		return map[string]string{"discountType": "is required"}
	}
	return reductionRules(o.DiscountType, o.DiscountValue, o.FixedValue)
}

func (p *Package) rules() map[string]string {
	if p.FixedPrice.IsNegative() {
		return map[string]string{"fixedPrice": "must not be negative"}
	}
	return nil
}

func reductionRules(kind enums.DiscountType, value decimal.Decimal, fixed types.Money) map[string]string {
	switch kind {
	case enums.DiscountTypePercentage:
		if !value.IsPositive() || value.GreaterThan(hundred) {
			return map[string]string{"discountValue": "must be greater than 0 and at most 100"}
		}
	case enums.DiscountTypeFixed:
		if fixed.IsNegative() {
			return map[string]string{"fixedValue": "must not be negative"}
		}
		if fixed.IsZero() {
			return map[string]string{"fixedValue": "must be positive in at least one currency"}
		}
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	}
	return "is invalid"
}

func invalidSource(msg string, details map[string]string) error {
	err := pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidDiscountSource, msg)
	if len(details) > 0 {
		err = err.WithDetails(details)
	}
	return err
}
