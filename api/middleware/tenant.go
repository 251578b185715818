package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/tenants"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const forwardedHostHeader = "X-Forwarded-Host"

type tenantResolver interface {
	Resolve(ctx context.Context, rawHost string) (*tenants.Snapshot, error)
}

// TenantContext resolves the storefront from the request host and attaches it
// to the context. Paths under a skip prefix pass through untouched.
func TenantContext(resolver tenantResolver, logg *logger.Logger, skipPrefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipTenant(r.URL.Path, skipPrefixes) {
				next.ServeHTTP(w, r)
				return
			}

			host := requestHost(r)
			if host == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, tenants.ErrInvalidHost, "host header required"))
				return
			}

			snapshot, err := resolver.Resolve(r.Context(), host)
			if err != nil {
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithField(ctx, "host", host)
				}
				responses.WriteError(ctx, logg, w, err)
				return
			}

			ctx := WithTenant(r.Context(), snapshot)
			if logg != nil {
				ctx = logg.WithTenantID(ctx, snapshot.TenantID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTenant rejects requests that reached a tenant route without a resolved tenant.
func RequireTenant(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := TenantIDFromContext(r.Context()); !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "store not found for this domain"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestHost(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get(forwardedHostHeader)); forwarded != "" {
		return forwarded
	}
	return strings.TrimSpace(r.Host)
}

func skipTenant(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
