package daemon

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"gemdesk/internal/access"
)

type claimsKey struct{}

func claimsFrom(ctx context.Context) *access.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*access.Claims)
	return claims
}

// authMiddleware resolves the bearer credential into claims. The static API
// token maps to admin claims; anything else must be a token signed with the
// configured secret. With neither configured every request is rejected.
func (s *apiServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

		var claims *access.Claims
		switch {
		case s.token != "" && subtle.ConstantTimeCompare([]byte(raw), []byte(s.token)) == 1:
			claims = &access.Claims{Role: access.RoleAdmin}
		case s.daemon.issuer != nil:
			parsed, err := s.daemon.issuer.Parse(raw)
			if err != nil {
				s.writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			claims = parsed
		default:
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

// requireAdmin rejects non-admin claims.
func (s *apiServer) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !claimsFrom(r.Context()).IsAdmin() {
			s.writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// entitlementFor returns the scope applied to catalog reads. Admins read
// the catalog unrestricted.
func entitlementFor(claims *access.Claims, now time.Time) access.Entitlement {
	if claims.IsAdmin() {
		until := now.AddDate(0, 0, 1)
		return access.Entitlement{Verified: true, SubscriptionUntil: &until}
	}
	if claims == nil {
		return access.Entitlement{}
	}
	return claims.Entitlement
}
