package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

// APIKey wraps next with API-key enforcement.
//
// Behaviour:
//   - If key == "", all requests are allowed (pass-through for local dev).
//   - Otherwise the value of header is compared to key in constant time.
//   - A missing, empty, or incorrect key returns 401 with a JSON error.
//   - Paths listed in exempt skip the check (e.g. the health endpoint).
func APIKey(header, key string, next http.Handler, exempt ...string) http.Handler {
	exemptSet := make(map[string]struct{}, len(exempt))
	for _, p := range exempt {
		exemptSet[p] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := exemptSet[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		got := r.Header.Get(header)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"}) //nolint:errcheck
			return
		}

		next.ServeHTTP(w, r)
	})
}
