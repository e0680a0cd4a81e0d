package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/0111v/projeto-faculdade/api/responses"
	pkgAuth "github.com/0111v/projeto-faculdade/pkg/auth"
	"github.com/0111v/projeto-faculdade/pkg/auth/session"
	"github.com/0111v/projeto-faculdade/pkg/config"
	pkgerrors "github.com/0111v/projeto-faculdade/pkg/errors"
	"github.com/0111v/projeto-faculdade/pkg/logger"
)

type tokenParser func(config.JWTConfig, string) (*pkgAuth.AccessTokenClaims, error)

// Auth admits requests carrying a live access token and a session that has
// not been revoked. A nil verifier skips the session lookup.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			claims, err := authenticate(r, cfg, pkgAuth.ParseAccessToken)
			if err == nil && verifier != nil {
				err = checkSession(ctx, verifier, claims.ID)
			}
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(ctx, claims, logg)))
		})
	}
}

// SessionClaims authenticates a logout or refresh call. Expired access tokens
// are accepted so a client can still end or renew its session.
func SessionClaims(r *http.Request, cfg config.JWTConfig) (*pkgAuth.AccessTokenClaims, error) {
	return authenticate(r, cfg, pkgAuth.ParseAccessTokenAllowExpired)
}

func authenticate(r *http.Request, cfg config.JWTConfig, parse tokenParser) (*pkgAuth.AccessTokenClaims, error) {
	token := BearerToken(r)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := parse(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	return claims, nil
}

func checkSession(ctx context.Context, verifier session.AccessSessionChecker, accessID string) error {
	live, err := verifier.HasSession(ctx, accessID)
	switch {
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
	case !live:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
	}
	return nil
}

func withPrincipal(ctx context.Context, claims *pkgAuth.AccessTokenClaims, logg *logger.Logger) context.Context {
	userID, role := claims.UserID.String(), string(claims.Role)
	ctx = WithRole(WithUserID(ctx, userID), role)
	if logg != nil {
		ctx = logg.WithActorRole(logg.WithUserID(ctx, userID), role)
	}
	return ctx
}

// BearerToken returns the credentials of an "Authorization: Bearer" header,
// matching the scheme case-insensitively.
func BearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
