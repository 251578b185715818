package tenants

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Snapshot is the immutable view of a tenant attached to a request.
type Snapshot struct {
	TenantID      uuid.UUID          `json:"tenantId"`
	Name          string             `json:"name"`
	Slug          string             `json:"slug"`
	Status        enums.TenantStatus `json:"status"`
	Hostname      string             `json:"hostname"`
	PrimaryDomain string             `json:"primaryDomain"`
	Branding      Branding           `json:"branding"`
}

// Branding carries the storefront presentation settings.
type Branding struct {
	DisplayName   string            `json:"displayName"`
	LogoURL       string            `json:"logoUrl,omitempty"`
	PrimaryColor  string            `json:"primaryColor,omitempty"`
	Locale        string            `json:"locale"`
	Currency      string            `json:"currency"`
	ContactEmail  string            `json:"contactEmail,omitempty"`
	ContactPhone  string            `json:"contactPhone,omitempty"`
	BusinessHours map[string]string `json:"businessHours,omitempty"`
}

func newSnapshot(host string, tenant *models.Tenant) Snapshot {
	snap := Snapshot{
		TenantID: tenant.ID,
		Name:     tenant.Name,
		Slug:     tenant.Slug,
		Status:   tenant.Status,
		Hostname: host,
		Branding: Branding{DisplayName: tenant.Name},
	}
	for _, domain := range tenant.Domains {
		if domain.IsPrimary {
			snap.PrimaryDomain = domain.Hostname
			break
		}
	}
	if snap.PrimaryDomain == "" {
		snap.PrimaryDomain = host
	}
	if cfg := tenant.Config; cfg != nil {
		if cfg.DisplayName != "" {
			snap.Branding.DisplayName = cfg.DisplayName
		}
		snap.Branding.LogoURL = deref(cfg.LogoURL)
		snap.Branding.PrimaryColor = deref(cfg.PrimaryColor)
		snap.Branding.Locale = cfg.Locale
		snap.Branding.Currency = cfg.Currency
		snap.Branding.ContactEmail = deref(cfg.ContactEmail)
		snap.Branding.ContactPhone = deref(cfg.ContactPhone)
		if len(cfg.BusinessHours) > 0 {
			hours := make(map[string]string, len(cfg.BusinessHours))
			for k, v := range cfg.BusinessHours {
				hours[k] = v
			}
			snap.Branding.BusinessHours = hours
		}
	}
	return snap
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
