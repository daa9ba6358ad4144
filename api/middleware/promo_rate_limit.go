package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mydentalfly/quote-backend/api/responses"
	pkgerrors "github.com/mydentalfly/quote-backend/pkg/errors"
	"github.com/mydentalfly/quote-backend/pkg/logger"
)

// RateLimiterStore counts hits for a scope within a fixed window.
type RateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// PromoRateLimitPolicy defines how many promo code attempts a client and a
// single quote may make within a window.
type PromoRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	quoteLimit int
}

// NewPromoRateLimitPolicy builds a policy with the supplied window and limits.
func NewPromoRateLimitPolicy(name string, window time.Duration, ipLimit, quoteLimit int) PromoRateLimitPolicy {
	return PromoRateLimitPolicy{
		name:       strings.ToLower(strings.TrimSpace(name)),
		window:     window,
		ipLimit:    ipLimit,
		quoteLimit: quoteLimit,
	}
}

func (p PromoRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.quoteLimit > 0)
}

func (p PromoRateLimitPolicy) normalizedName() string {
	if p.name == "" {
		return "promo"
	}
	return p.name
}

func (p PromoRateLimitPolicy) ipKey(ip string) string {
	if ip == "" {
		return ""
	}
	return fmt.Sprintf("ip:%s:%s", p.normalizedName(), ip)
}

func (p PromoRateLimitPolicy) quoteKey(hash string) string {
	if hash == "" {
		return ""
	}
	return fmt.Sprintf("quote:%s:%s", p.normalizedName(), hash)
}

// PromoRateLimit counts requests that carry a promo code per client IP and per
// quote key. Requests without a promo code pass through uncounted.
func PromoRateLimit(policy PromoRateLimitPolicy, store RateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if !carriesPromoCode(r, body) {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			if policy.ipLimit > 0 {
				if key := policy.ipKey(ip); key != "" {
					if allowed, count, err := store.FixedWindowAllow(ctx, key, int64(policy.ipLimit), policy.window); err != nil {
						responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
						return
					} else if !allowed {
						respondRateLimited(ctx, logg, w, policy, "ip", ip, "", count, policy.ipLimit)
						return
					}
				}
			}

			if policy.quoteLimit > 0 {
				if quote := strings.TrimSpace(chi.URLParam(r, "quoteKey")); quote != "" {
					hash := hashValue(quote)
					if allowed, count, err := store.FixedWindowAllow(ctx, policy.quoteKey(hash), int64(policy.quoteLimit), policy.window); err != nil {
						responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
						return
					} else if !allowed {
						respondRateLimited(ctx, logg, w, policy, "quote", "", hash, count, policy.quoteLimit)
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func respondRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy PromoRateLimitPolicy, scope, ip, quoteHash string, count int64, limit int) {
	if logg != nil {
		fields := map[string]any{
			"scope":          scope,
			"policy":         policy.normalizedName(),
			"attempts":       count,
			"limit":          limit,
			"window_seconds": int(policy.window.Seconds()),
		}
		if ip != "" {
			fields["ip"] = ip
		}
		if quoteHash != "" {
			fields["quote_hash"] = quoteHash
		}
		logCtx := logg.WithFields(ctx, fields)
		logg.Warn(logCtx, "promo.rate_limit.blocked")
	}
	err := pkgerrors.New(pkgerrors.CodeRateLimit, "too many promo code attempts")
	responses.WriteError(ctx, nil, w, err)
}

// carriesPromoCode looks for a promo code in the JSON body or the entry query.
func carriesPromoCode(r *http.Request, payload []byte) bool {
	query := r.URL.Query()
	for _, key := range []string{"promoCode", "promo", "code"} {
		if strings.TrimSpace(query.Get(key)) != "" {
			return true
		}
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return false
	}
	var body struct {
		PromoCode string `json:"promoCode"`
		Promo     string `json:"promo"`
		Code      string `json:"code"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return false
	}
	return strings.TrimSpace(body.PromoCode+body.Promo+body.Code) != ""
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
