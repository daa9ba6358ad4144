package discounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/mydentalfly/quote-backend/pkg/errors"
)

// PromoValidator returns a currently valid promo code or ErrInvalidPromoCode.
type PromoValidator interface {
	ValidatePromoCode(ctx context.Context, code string) (*PromoCode, error)
}

// OfferFetcher loads special offer details by id.
type OfferFetcher interface {
	GetSpecialOffer(ctx context.Context, id string) (*SpecialOffer, error)
}

// PackageFetcher loads package details by id.
type PackageFetcher interface {
	GetPackage(ctx context.Context, id string) (*Package, error)
}

// OfferRef points at a special offer. Embedded offers are used as-is when the
// resolver trusts unsigned data; otherwise the id is fetched.
type OfferRef struct {
	ID       string        `json:"id"`
	Embedded *SpecialOffer `json:"embedded,omitempty"`
}

// PackageRef points at a package. Embedded packages are used as-is when the
// resolver trusts unsigned data; otherwise the id is fetched.
type PackageRef struct {
	ID       string   `json:"id"`
	Embedded *Package `json:"embedded,omitempty"`
}

// Resolver turns promo codes, references and entry parameters into validated sources.
type Resolver struct {
	promos   PromoValidator
	offers   OfferFetcher
	packages PackageFetcher
	refs     *RefCodec

	trustEmbedded bool
}

// ResolverOption tunes a Resolver.
type ResolverOption func(*Resolver)

// TrustEmbedded lets unsigned embedded offer and package data resolve without
// a fetch. Signed references are always accepted.
func TrustEmbedded(on bool) ResolverOption {
	return func(r *Resolver) { r.trustEmbedded = on }
}

// NewResolver wires the resolver collaborators. refs may be nil, in which case
// signed references are rejected.
func NewResolver(promos PromoValidator, offers OfferFetcher, packages PackageFetcher, refs *RefCodec, opts ...ResolverOption) (*Resolver, error) {
	if promos == nil {
		return nil, fmt.Errorf("promo validator required")
	}
	if offers == nil {
		return nil, fmt.Errorf("offer fetcher required")
	}
	if packages == nil {
		return nil, fmt.Errorf("package fetcher required")
	}
	r := &Resolver{promos: promos, offers: offers, packages: packages, refs: refs}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ResolvePromo validates a user-entered code.
func (r *Resolver) ResolvePromo(ctx context.Context, code string) (*Source, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidPromoCode, "promo code is required")
	}

	promo, err := r.promos.ValidatePromoCode(ctx, normalized)
	switch {
	case errors.Is(err, ErrInvalidPromoCode):
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("promo code %s is not valid", normalized))
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("%w: %w", ErrDiscountSourceUnavailable, err), "promo codes could not be checked")
	case promo == nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidPromoCode, fmt.Sprintf("promo code %s is not valid", normalized))
	}
	return NewPromoSource(*promo)
}

// ResolveOffer validates trusted embedded offer data or fetches by id.
func (r *Resolver) ResolveOffer(ctx context.Context, ref OfferRef) (*Source, error) {
	id := strings.TrimSpace(ref.ID)
	if ref.Embedded != nil {
		if r.trustEmbedded {
			return NewOfferSource(*ref.Embedded)
		}
		if id == "" {
			id = strings.TrimSpace(ref.Embedded.ID)
		}
	}
	if id == "" {
		return nil, invalidSource("special offer id is required", nil)
	}
	offer, err := r.offers.GetSpecialOffer(ctx, id)
	if err != nil {
		return nil, unavailable("special offer", id, err)
	}
	if offer == nil {
		return nil, unavailable("special offer", id, ErrNotFound)
	}
	return NewOfferSource(*offer)
}

// ResolvePackage validates trusted embedded package data or fetches by id.
func (r *Resolver) ResolvePackage(ctx context.Context, ref PackageRef) (*Source, error) {
	id := strings.TrimSpace(ref.ID)
	if ref.Embedded != nil {
		if r.trustEmbedded {
			return NewPackageSource(*ref.Embedded)
		}
		if id == "" {
			id = strings.TrimSpace(ref.Embedded.ID)
		}
	}
	if id == "" {
		return nil, invalidSource("package id is required", nil)
	}
	pkg, err := r.packages.GetPackage(ctx, id)
	if err != nil {
		return nil, unavailable("package", id, err)
	}
	if pkg == nil {
		return nil, unavailable("package", id, ErrNotFound)
	}
	return NewPackageSource(*pkg)
}

// ResolveRef verifies a signed reference token.
func (r *Resolver) ResolveRef(token string) (*Source, error) {
	if r.refs == nil {
		return nil, invalidSource("signed discount references are not enabled", nil)
	}
	return r.refs.Verify(token)
}

// ResolveEntry picks the single authoritative discount from flow-entry
// parameters. Only the highest-priority signal present is considered:
// signed reference, then package, then special offer, then promo code. A
// failure of that signal is returned as-is without falling back.
func (r *Resolver) ResolveEntry(ctx context.Context, entry Entry) (*Source, error) {
	switch {
	case entry.RefToken != "":
		return r.ResolveRef(entry.RefToken)
	case entry.Package != nil:
		return r.ResolvePackage(ctx, *entry.Package)
	case entry.Offer != nil:
		return r.ResolveOffer(ctx, *entry.Offer)
	case entry.PromoCode != "":
		return r.ResolvePromo(ctx, entry.PromoCode)
	default:
		return nil, nil
	}
}

func unavailable(what, id string, cause error) error {
	code := pkgerrors.CodeDependency
	if errors.Is(cause, ErrNotFound) {
		code = pkgerrors.CodeNotFound
	}
	return pkgerrors.Wrap(code, fmt.Errorf("%w: %w", ErrDiscountSourceUnavailable, cause), fmt.Sprintf("%s %s is unavailable", what, id))
}
