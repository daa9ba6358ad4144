package discounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mydentalfly/quote-backend/pkg/config"
	"github.com/mydentalfly/quote-backend/pkg/enums"
	pkgerrors "github.com/mydentalfly/quote-backend/pkg/errors"
	"github.com/mydentalfly/quote-backend/pkg/types"
)

type stubPromos struct {
	codes map[string]PromoCode
	err   error
	calls int
}

func (s *stubPromos) ValidatePromoCode(_ context.Context, code string) (*PromoCode, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.codes[code]
	if !ok {
		return nil, ErrInvalidPromoCode
	}
	return &p, nil
}

type stubOffers struct {
	offers map[string]SpecialOffer
	err    error
	calls  int
}

func (s *stubOffers) GetSpecialOffer(_ context.Context, id string) (*SpecialOffer, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	o, ok := s.offers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

type stubPackages struct {
	packages map[string]Package
	err      error
	calls    int
}

func (s *stubPackages) GetPackage(_ context.Context, id string) (*Package, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.packages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func newTestResolver(t *testing.T, refs *RefCodec, opts ...ResolverOption) (*Resolver, *stubPromos, *stubOffers, *stubPackages) {
	t.Helper()
	promos := &stubPromos{codes: map[string]PromoCode{
		"TEST10":      {Code: "TEST10", DiscountType: enums.DiscountTypePercentage, DiscountValue: decimal.NewFromInt(10)},
		"FREECONSULT": {Code: "FREECONSULT", DiscountType: enums.DiscountTypeFixed, FixedValue: types.NewMoney(60, 75)},
	}}
	offers := &stubOffers{offers: map[string]SpecialOffer{
		"spring": {ID: "spring", Title: "Spring", ClinicID: "c1", Mode: enums.OfferModePriceDiscount, DiscountType: enums.DiscountTypePercentage, DiscountValue: decimal.NewFromInt(20)},
	}}
	packages := &stubPackages{packages: map[string]Package{
		"duo": {ID: "duo", Title: "Duo", ClinicID: "c1", FixedPrice: types.NewMoney(1500, 1920), IncludedTreatments: []string{"dental_implant_standard", "dental_implant_standard"}},
	}}
	r, err := NewResolver(promos, offers, packages, refs, opts...)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r, promos, offers, packages
}

func TestNewResolverRequiresCollaborators(t *testing.T) {
	if _, err := NewResolver(nil, &stubOffers{}, &stubPackages{}, nil); err == nil {
		t.Fatalf("expected missing promo validator to fail")
	}
	if _, err := NewResolver(&stubPromos{}, nil, &stubPackages{}, nil); err == nil {
		t.Fatalf("expected missing offer fetcher to fail")
	}
	if _, err := NewResolver(&stubPromos{}, &stubOffers{}, nil, nil); err == nil {
		t.Fatalf("expected missing package fetcher to fail")
	}
}

func TestResolvePromo(t *testing.T) {
	r, _, _, _ := newTestResolver(t, nil)

	src, err := r.ResolvePromo(context.Background(), "test10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Identity() != "promo:TEST10" {
		t.Fatalf("unexpected identity %s", src.Identity())
	}

	_, err = r.ResolvePromo(context.Background(), "EXPIRED2020")
	if !errors.Is(err, ErrInvalidPromoCode) {
		t.Fatalf("expected invalid promo code, got %v", err)
	}
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %s", code)
	}

	if _, err := r.ResolvePromo(context.Background(), "   "); !errors.Is(err, ErrInvalidPromoCode) {
		t.Fatalf("expected blank code to be invalid, got %v", err)
	}
}

func TestResolvePromoDependencyFailure(t *testing.T) {
	r, promos, _, _ := newTestResolver(t, nil)
	promos.err = errors.New("connection refused")

	_, err := r.ResolvePromo(context.Background(), "TEST10")
	if !errors.Is(err, ErrDiscountSourceUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency code, got %s", pkgerrors.CodeOf(err))
	}
}

func TestResolveOfferUsesEmbeddedDataWithoutFetching(t *testing.T) {
	r, _, offers, _ := newTestResolver(t, nil, TrustEmbedded(true))

	embedded := &SpecialOffer{ID: "landing-1", Title: "Landing", ClinicID: "c9", DiscountType: enums.DiscountTypePercentage, DiscountValue: decimal.NewFromInt(15)}
	src, err := r.ResolveOffer(context.Background(), OfferRef{ID: "landing-1", Embedded: embedded})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if offers.calls != 0 {
		t.Fatalf("embedded offer should not be fetched")
	}
	if src.Offer.Mode != enums.OfferModePriceDiscount {
		t.Fatalf("expected default mode price_discount, got %s", src.Offer.Mode)
	}
}

func TestResolveIgnoresUntrustedEmbeddedData(t *testing.T) {
	r, _, offers, packages := newTestResolver(t, nil)

	forged := &SpecialOffer{ID: "spring", Title: "Spring", ClinicID: "c1", DiscountType: enums.DiscountTypePercentage, DiscountValue: decimal.NewFromInt(100)}
	src, err := r.ResolveOffer(context.Background(), OfferRef{ID: "spring", Embedded: forged})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if offers.calls != 1 {
		t.Fatalf("untrusted offer should be fetched, calls=%d", offers.calls)
	}
	if !src.Offer.DiscountValue.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected fetched 20%% offer, got %s", src.Offer.DiscountValue)
	}

	cheap := &Package{ID: "duo", Title: "Duo", ClinicID: "c1", FixedPrice: types.NewMoney(1, 1), IncludedTreatments: []string{"dental_implant_standard"}}
	pkgSrc, err := r.ResolvePackage(context.Background(), PackageRef{Embedded: cheap})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if packages.calls != 1 || pkgSrc.Package.FixedPrice != types.NewMoney(1500, 1920) {
		t.Fatalf("expected fetched package price, got %s after %d calls", pkgSrc.Package.FixedPrice, packages.calls)
	}

	if _, err := r.ResolveOffer(context.Background(), OfferRef{ID: "forged-only", Embedded: forged}); !errors.Is(err, ErrDiscountSourceUnavailable) {
		t.Fatalf("expected unknown untrusted offer to be unavailable, got %v", err)
	}
}

func TestResolveOfferFetchFailure(t *testing.T) {
	r, _, offers, _ := newTestResolver(t, nil)

	_, err := r.ResolveOffer(context.Background(), OfferRef{ID: "unknown"})
	if !errors.Is(err, ErrDiscountSourceUnavailable) || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected unavailable not found, got %v", err)
	}
	if pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found code, got %s", pkgerrors.CodeOf(err))
	}

	offers.err = context.DeadlineExceeded
	_, err = r.ResolveOffer(context.Background(), OfferRef{ID: "spring"})
	if !errors.Is(err, ErrDiscountSourceUnavailable) || pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency unavailable, got %v", err)
	}
}

func TestResolveEntryPriority(t *testing.T) {
	codec, err := NewRefCodec(config.DiscountsConfig{RefSecret: "secret", RefIssuer: "mydentalfly"})
	if err != nil {
		t.Fatalf("NewRefCodec: %v", err)
	}
	r, promos, offers, packages := newTestResolver(t, codec)

	signedOffer, err := NewOfferSource(SpecialOffer{ID: "signed", Title: "Signed", ClinicID: "c2", DiscountType: enums.DiscountTypeFixed, FixedValue: types.NewMoney(100, 125)})
	if err != nil {
		t.Fatalf("NewOfferSource: %v", err)
	}
	token, err := codec.Sign(signedOffer, time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	all := Entry{
		RefToken:  token,
		Package:   &PackageRef{ID: "duo"},
		Offer:     &OfferRef{ID: "spring"},
		PromoCode: "TEST10",
	}

	cases := []struct {
		name     string
		entry    Entry
		identity string
	}{
		{name: "signed reference wins", entry: all, identity: "offer:signed"},
		{name: "package beats offer", entry: Entry{Package: all.Package, Offer: all.Offer, PromoCode: all.PromoCode}, identity: "package:duo"},
		{name: "offer beats promo", entry: Entry{Offer: all.Offer, PromoCode: all.PromoCode}, identity: "offer:spring"},
		{name: "promo alone", entry: Entry{PromoCode: all.PromoCode}, identity: "promo:TEST10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src, err := r.ResolveEntry(context.Background(), tc.entry)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if src.Identity() != tc.identity {
				t.Fatalf("expected %s, got %s", tc.identity, src.Identity())
			}
		})
	}

	if promos.calls != 1 || offers.calls != 1 || packages.calls != 1 {
		t.Fatalf("each lower tier should only be consulted when it is the highest present: promos=%d offers=%d packages=%d", promos.calls, offers.calls, packages.calls)
	}
}

func TestResolveEntryDoesNotFallBack(t *testing.T) {
	r, promos, _, packages := newTestResolver(t, nil)
	packages.err = errors.New("timeout")

	src, err := r.ResolveEntry(context.Background(), Entry{Package: &PackageRef{ID: "duo"}, PromoCode: "TEST10"})
	if src != nil {
		t.Fatalf("expected no source on failure")
	}
	if !errors.Is(err, ErrDiscountSourceUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if promos.calls != 0 {
		t.Fatalf("promo should not be consulted when the package fails")
	}

	none, err := r.ResolveEntry(context.Background(), Entry{})
	if none != nil || err != nil {
		t.Fatalf("empty entry should yield nothing, got %v %v", none, err)
	}
}

func TestResolveRefWithoutCodec(t *testing.T) {
	r, _, _, _ := newTestResolver(t, nil)
	if _, err := r.ResolveRef("anything"); !errors.Is(err, ErrInvalidDiscountSource) {
		t.Fatalf("expected refs to be rejected without codec, got %v", err)
	}
}
