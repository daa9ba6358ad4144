package discounts

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mydentalfly/quote-backend/pkg/config"
	"github.com/mydentalfly/quote-backend/pkg/enums"
	pkgerrors "github.com/mydentalfly/quote-backend/pkg/errors"
)

var refSigningMethod = jwt.SigningMethodHS256

// RefClaims carries an offer or package inside a signed landing-page reference.
type RefClaims struct {
	Kind    enums.DiscountKind `json:"kind"`
	Offer   *SpecialOffer      `json:"offer,omitempty"`
	Package *Package           `json:"package,omitempty"`
	jwt.RegisteredClaims
}

// RefCodec signs and verifies discount reference tokens.
type RefCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewRefCodec builds a codec from the discount config.
func NewRefCodec(cfg config.DiscountsConfig) (*RefCodec, error) {
	if strings.TrimSpace(cfg.RefSecret) == "" {
		return nil, fmt.Errorf("discount reference secret required")
	}
	if strings.TrimSpace(cfg.RefIssuer) == "" {
		return nil, fmt.Errorf("discount reference issuer required")
	}
	return &RefCodec{secret: []byte(cfg.RefSecret), issuer: cfg.RefIssuer, now: time.Now}, nil
}

// Sign encodes an offer or package source. Promo codes cannot be embedded.
func (c *RefCodec) Sign(src *Source, ttl time.Duration) (string, error) {
	if err := src.Validate(); err != nil {
		return "", err
	}
	if src.Kind == enums.DiscountKindPromo {
		return "", invalidSource("promo codes cannot be signed into references", nil)
	}
	now := c.now()
	claims := RefClaims{
		Kind:    src.Kind,
		Offer:   src.Offer,
		Package: src.Package,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   c.issuer,
			Subject:  src.Identity(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(refSigningMethod, claims).SignedString(c.secret)
}

// Verify checks signature, issuer and expiry and returns the embedded source.
func (c *RefCodec) Verify(token string) (*Source, error) {
	if strings.TrimSpace(token) == "" {
		return nil, invalidSource("discount reference is empty", nil)
	}

	claims := &RefClaims{}
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != refSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{refSigningMethod.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, fmt.Errorf("%w: %w", ErrInvalidDiscountSource, err), "discount reference is invalid or expired")
	}

	switch claims.Kind {
	case enums.DiscountKindOffer:
		if claims.Offer == nil {
			return nil, invalidSource("discount reference has no offer", nil)
		}
		return NewOfferSource(*claims.Offer)
	case enums.DiscountKindPackage:
		if claims.Package == nil {
			return nil, invalidSource("discount reference has no package", nil)
		}
		return NewPackageSource(*claims.Package)
	default:
		return nil, invalidSource(fmt.Sprintf("discount reference kind %q is not supported", claims.Kind), nil)
	}
}
