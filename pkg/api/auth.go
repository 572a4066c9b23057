package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/cuemby/hardwared/pkg/errs"
)

// AuthContext is the resolved identity attached to a request context (spec
// §6: "the token resolves to a (user_id, project_id, roles) tuple that is
// attached to the request context"), grounded on doni's
// common.context.RequestContext.
type AuthContext struct {
	UserID    string
	ProjectID string
	Roles     []string
}

// IsAdmin reports whether the context carries the admin role, mirroring
// doni policy.py's ROLE_ADMIN check_str ("role:admin").
func (a AuthContext) IsAdmin() bool {
	for _, r := range a.Roles {
		if r == "admin" {
			return true
		}
	}
	return false
}

type authContextKey struct{}

// WithAuthContext returns a copy of ctx carrying auth.
func WithAuthContext(ctx context.Context, auth AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// AuthFromContext extracts the AuthContext attached by AuthMiddleware.
// Handlers reachable only behind AuthMiddleware can assume ok is true.
func AuthFromContext(ctx context.Context) (AuthContext, bool) {
	auth, ok := ctx.Value(authContextKey{}).(AuthContext)
	return auth, ok
}

// TokenResolver resolves a bearer token into an AuthContext. Production
// deployments wire a real identity service here (e.g. a Keystone token
// validation client); StaticTokenResolver below is the dev/test
// equivalent of doni's devstack "noauth" policy.
type TokenResolver func(token string) (AuthContext, error)

// AuthMiddleware extracts the bearer token from the Authorization header,
// resolves it via resolve, and attaches the resulting AuthContext to the
// request context. Missing or unresolvable tokens are rejected with 403,
// matching the PolicyNotAuthorized kind for unauthenticated mutating
// requests (spec §6).
func AuthMiddleware(resolve TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if token == "" || token == header {
				writeError(w, errs.PolicyNotAuthorized("this request"))
				return
			}

			auth, err := resolve(token)
			if err != nil {
				writeError(w, errs.PolicyNotAuthorized("this request"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), auth)))
		})
	}
}

// StaticTokenResolver is a TokenResolver backed by an in-memory token ->
// AuthContext map, suitable for development and test deployments where no
// external identity service is configured.
func StaticTokenResolver(tokens map[string]AuthContext) TokenResolver {
	return func(token string) (AuthContext, error) {
		auth, ok := tokens[token]
		if !ok {
			return AuthContext{}, errs.PolicyNotAuthorized("token lookup")
		}
		return auth, nil
	}
}
