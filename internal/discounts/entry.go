package discounts

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mydentalfly/quote-backend/pkg/enums"
	"github.com/mydentalfly/quote-backend/pkg/types"
)

// Entry holds the discount signals found in a quote-flow entry URL.
type Entry struct {
	RefToken  string      `json:"ref,omitempty"`
	Package   *PackageRef `json:"package,omitempty"`
	Offer     *OfferRef   `json:"offer,omitempty"`
	PromoCode string      `json:"promoCode,omitempty"`
}

// IsZero reports whether no discount signal is present.
func (e Entry) IsZero() bool {
	return e.RefToken == "" && e.Package == nil && e.Offer == nil && e.PromoCode == ""
}

// Legacy landing pages used several names for the offer id.
var offerIDParams = []string{"offerId", "specialOfferId", "specialOffer"}

var promoParams = []string{"promoCode", "promo", "code"}

// ParseEntry extracts discount signals from entry query parameters. Offers and
// packages carrying enough embedded data are returned with Embedded set so
// they resolve without a fetch.
func ParseEntry(values url.Values) (Entry, error) {
	entry := Entry{
		RefToken:  strings.TrimSpace(values.Get("ref")),
		PromoCode: NormalizeCode(first(values, promoParams...)),
	}

	if id := strings.TrimSpace(values.Get("packageId")); id != "" {
		ref, err := parsePackageRef(id, values)
		if err != nil {
			return Entry{}, err
		}
		entry.Package = ref
	}

	if id := first(values, offerIDParams...); id != "" {
		ref, err := parseOfferRef(id, values)
		if err != nil {
			return Entry{}, err
		}
		entry.Offer = ref
	}

	return entry, nil
}

func parsePackageRef(id string, values url.Values) (*PackageRef, error) {
	ref := &PackageRef{ID: id}

	title := strings.TrimSpace(values.Get("packageTitle"))
	clinic := strings.TrimSpace(values.Get("clinicId"))
	treatments := splitList(values.Get("packageTreatments"))
	rawGBP, rawUSD := values.Get("packagePriceGBP"), values.Get("packagePriceUSD")
	if title == "" || clinic == "" || len(treatments) == 0 || rawGBP == "" || rawUSD == "" {
		return ref, nil
	}

	price, err := parseMoney("packagePrice", rawGBP, rawUSD)
	if err != nil {
		return nil, err
	}
	ref.Embedded = &Package{
		ID:                 id,
		Title:              title,
		ClinicID:           clinic,
		FixedPrice:         price,
		IncludedTreatments: treatments,
	}
	return ref, nil
}

func parseOfferRef(id string, values url.Values) (*OfferRef, error) {
	ref := &OfferRef{ID: id}

	title := strings.TrimSpace(values.Get("offerTitle"))
	clinic := strings.TrimSpace(values.Get("clinicId"))
	if title == "" || clinic == "" {
		return ref, nil
	}

	offer := &SpecialOffer{
		ID:                    id,
		Title:                 title,
		ClinicID:              clinic,
		Mode:                  enums.OfferModePriceDiscount,
		ApplicableTreatmentID: strings.TrimSpace(values.Get("treatmentId")),
		BonusTreatmentID:      strings.TrimSpace(values.Get("bonusTreatmentId")),
	}
	if raw := values.Get("offerMode"); raw != "" {
		mode, err := enums.ParseOfferMode(raw)
		if err != nil {
			return nil, invalidSource(err.Error(), map[string]string{"offerMode": "is invalid"})
		}
		offer.Mode = mode
	}

	if offer.Mode == enums.OfferModeBonusItem {
		if offer.BonusTreatmentID == "" {
			return ref, nil
		}
		ref.Embedded = offer
		return ref, nil
	}

	rawType := values.Get("discountType")
	if rawType == "" {
		return ref, nil
	}
	kind, err := enums.ParseDiscountType(rawType)
	if err != nil {
		return nil, invalidSource(err.Error(), map[string]string{"discountType": "is invalid"})
	}
	offer.DiscountType = kind

	switch kind {
	case enums.DiscountTypePercentage:
		raw := values.Get("discountValue")
		if raw == "" {
			return ref, nil
		}
		value, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, invalidSource("discountValue must be numeric", map[string]string{"discountValue": "must be numeric"})
		}
		offer.DiscountValue = value
	case enums.DiscountTypeFixed:
		rawGBP, rawUSD := values.Get("offerFixedGBP"), values.Get("offerFixedUSD")
		if rawGBP == "" && rawUSD == "" {
			return ref, nil
		}
		fixed, err := parseMoney("offerFixed", rawGBP, rawUSD)
		if err != nil {
			return nil, err
		}
		offer.FixedValue = fixed
	}

	ref.Embedded = offer
	return ref, nil
}

func parseMoney(prefix, rawGBP, rawUSD string) (types.Money, error) {
	gbp, err := parseAmount(rawGBP)
	if err != nil {
		return types.Money{}, invalidSource(fmt.Sprintf("%sGBP must be a whole number", prefix), map[string]string{prefix + "GBP": "must be a whole number"})
	}
	usd, err := parseAmount(rawUSD)
	if err != nil {
		return types.Money{}, invalidSource(fmt.Sprintf("%sUSD must be a whole number", prefix), map[string]string{prefix + "USD": "must be a whole number"})
	}
	return types.NewMoney(gbp, usd), nil
}

func parseAmount(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func first(values url.Values, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(values.Get(key)); v != "" {
			return v
		}
	}
	return ""
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
