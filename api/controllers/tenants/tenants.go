// Package tenants exposes platform administration of storefronts and their domains.
package tenants

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internaltenants "github.com/angelmondragon/storefront-backend/internal/tenants"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Create registers a tenant in DRAFT.
func Create(svc internaltenants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !available(w, r, svc, logg) {
			return
		}
		var payload internaltenants.CreateTenantInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tenant, err := svc.Create(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, tenant)
	}
}

// List returns every tenant, optionally narrowed by ?status=.
func List(svc internaltenants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !available(w, r, svc, logg) {
			return
		}
		var status *enums.TenantStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseTenantStatus(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}
		list, err := svc.List(r.Context(), status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func Get(svc internaltenants.Service, logg *logger.Logger) http.HandlerFunc {
	return withTenant(svc, logg, func(ctx context.Context, id uuid.UUID) (any, error) {
		return svc.Get(ctx, id)
	})
}

// UpdateConfig patches branding and contact settings.
func UpdateConfig(svc internaltenants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !available(w, r, svc, logg) {
			return
		}
		tenantID, err := validators.ParseUUIDParam(r, "tenantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload internaltenants.UpdateConfigInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tenant, err := svc.UpdateConfig(r.Context(), tenantID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tenant)
	}
}

// AddDomain binds a hostname to the tenant.
func AddDomain(svc internaltenants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !available(w, r, svc, logg) {
			return
		}
		tenantID, err := validators.ParseUUIDParam(r, "tenantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload internaltenants.AddDomainInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		domain, err := svc.AddDomain(r.Context(), tenantID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, domain)
	}
}

func RemoveDomain(svc internaltenants.Service, logg *logger.Logger) http.HandlerFunc {
	return withDomain(svc, logg, func(ctx context.Context, tenantID, domainID uuid.UUID) (any, error) {
		return nil, svc.RemoveDomain(ctx, tenantID, domainID)
	})
}

func SetPrimaryDomain(svc internaltenants.Service, logg *logger.Logger) http.HandlerFunc {
	return withDomain(svc, logg, func(ctx context.Context, tenantID, domainID uuid.UUID) (any, error) {
		return nil, svc.SetPrimaryDomain(ctx, tenantID, domainID)
	})
}

func VerifyDomain(svc internaltenants.Service, logg *logger.Logger) http.HandlerFunc {
	return withDomain(svc, logg, func(ctx context.Context, tenantID, domainID uuid.UUID) (any, error) {
		return svc.VerifyDomain(ctx, tenantID, domainID)
	})
}

func Activate(svc internaltenants.Service, logg *logger.Logger) http.HandlerFunc {
	return withTenant(svc, logg, func(ctx context.Context, id uuid.UUID) (any, error) {
		return svc.Activate(ctx, id)
	})
}

func Suspend(svc internaltenants.Service, logg *logger.Logger) http.HandlerFunc {
	return withTenant(svc, logg, func(ctx context.Context, id uuid.UUID) (any, error) {
		return svc.Suspend(ctx, id)
	})
}

func Archive(svc internaltenants.Service, logg *logger.Logger) http.HandlerFunc {
	return withTenant(svc, logg, func(ctx context.Context, id uuid.UUID) (any, error) {
		return svc.Archive(ctx, id)
	})
}

func withTenant(svc internaltenants.Service, logg *logger.Logger, fn func(context.Context, uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !available(w, r, svc, logg) {
			return
		}
		tenantID, err := validators.ParseUUIDParam(r, "tenantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := fn(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// withDomain answers 204 when fn returns no body.
func withDomain(svc internaltenants.Service, logg *logger.Logger, fn func(context.Context, uuid.UUID, uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !available(w, r, svc, logg) {
			return
		}
		tenantID, err := validators.ParseUUIDParam(r, "tenantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		domainID, err := validators.ParseUUIDParam(r, "domainId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := fn(r.Context(), tenantID, domainID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if out == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func available(w http.ResponseWriter, r *http.Request, svc internaltenants.Service, logg *logger.Logger) bool {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tenant service unavailable"))
		return false
	}
	return true
}
