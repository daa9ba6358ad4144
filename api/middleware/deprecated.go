package middleware

import (
	"fmt"
	"net/http"
)

const deprecationHeader = "Deprecation"

// Deprecated marks responses of a legacy route and points callers at its
// successor.
func Deprecated(successor string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(deprecationHeader, "true")
			if successor != "" {
				w.Header().Set("Link", fmt.Sprintf("<%s>; rel=\"successor-version\"", successor))
			}
			next.ServeHTTP(w, r)
		})
	}
}
