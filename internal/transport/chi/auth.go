package chi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// APIKeyHeader is the alternative credential header, the same one the
// vector index proxy accepts.
const APIKeyHeader = "X-API-Key"

// publicPaths never require a key so health checks and scrapers keep working.
var publicPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

var (
	errNoCredential = errors.New("missing credentials: send Authorization: Bearer <key> or " + APIKeyHeader)
	errBadScheme    = errors.New("authorization header must use Bearer scheme")
	errBadKey       = errors.New("invalid api key")
)

// APIKeyMiddleware guards every non-public route with one of apiKeys.
// Empty keys are ignored; with no keys left the middleware is a pass-through.
func APIKeyMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	var keys [][]byte
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if err := authorize(r, keys); err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="vecsnap"`)
				writeError(w, http.StatusUnauthorized, ErrorResponseCodeUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authorize extracts the presented key. Authorization wins over X-API-Key.
func authorize(r *http.Request, keys [][]byte) error {
	var token string
	switch auth := r.Header.Get("Authorization"); {
	case auth != "":
		scheme, rest, ok := strings.Cut(auth, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return errBadScheme
		}
		token = strings.TrimSpace(rest)
	case r.Header.Get(APIKeyHeader) != "":
		token = r.Header.Get(APIKeyHeader)
	default:
		return errNoCredential
	}

	// Compare against every key so timing does not reveal which one matched.
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, []byte(token))
	}
	if found != 1 {
		return errBadKey
	}
	return nil
}
