package middleware

import (
	"context"
	"net/http"
	"strings"

	ownid "github.com/ownid/ownid-go"
)

// TokenVerifier checks a backend-issued ID token. *backend.Service
// implements it.
type TokenVerifier interface {
	VerifyIDToken(token string) (*ownid.Session, error)
}

type sessionContextKey struct{}

// SessionFromContext returns the session Guard stored on the request.
func SessionFromContext(ctx context.Context) (*ownid.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(*ownid.Session)
	return sess, ok
}

// Guard rejects requests without a valid bearer ID token with 401 and
// passes the verified session to next through the request context.
func Guard(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			sess, err := verifier.VerifyIDToken(token)
			if err != nil || sess == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
