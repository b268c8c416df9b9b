package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const callerClaimsKey contextKey = "callerClaims"

// CallerClaims carries the authenticated caller's identity as issued by the
// identity provider. Role distinguishes patient and doctor sessions.
type CallerClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// BearerAuth enforces an HMAC-signed JWT on API endpoints. The token subject is
// the caller's id; the platform trusts the identity provider and does not
// re-authenticate.
func BearerAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "auth disabled", http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			claims := CallerClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid || claims.Subject == "" {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), callerClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFromContext returns the authenticated caller claims if present.
func CallerFromContext(ctx context.Context) (CallerClaims, bool) {
	claims, ok := ctx.Value(callerClaimsKey).(CallerClaims)
	return claims, ok
}
