package tenants

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// CreateTenantInput registers a new storefront in DRAFT.
type CreateTenantInput struct {
	Name string `json:"name" validate:"required,min=2,max=120"`
	Slug string `json:"slug" validate:"omitempty,max=120"`
}

// UpdateConfigInput patches branding and contact settings; nil fields are left untouched.
type UpdateConfigInput struct {
	DisplayName   *string           `json:"displayName" validate:"omitempty,max=120"`
	LogoURL       *string           `json:"logoUrl" validate:"omitempty,url"`
	PrimaryColor  *string           `json:"primaryColor" validate:"omitempty,hexcolor"`
	Locale        *string           `json:"locale" validate:"omitempty,bcp47_language_tag"`
	Currency      *string           `json:"currency" validate:"omitempty,iso4217"`
	ContactEmail  *string           `json:"contactEmail" validate:"omitempty,email"`
	ContactPhone  *string           `json:"contactPhone" validate:"omitempty,max=40"`
	BusinessHours map[string]string `json:"businessHours"`
}

// AddDomainInput binds a hostname to a tenant.
type AddDomainInput struct {
	Hostname  string `json:"hostname" validate:"required,max=253"`
	IsPrimary bool   `json:"isPrimary"`
}

type TenantDTO struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	Slug        string             `json:"slug"`
	Status      enums.TenantStatus `json:"status"`
	SuspendedAt *time.Time         `json:"suspendedAt,omitempty"`
	ArchivedAt  *time.Time         `json:"archivedAt,omitempty"`
	Domains     []DomainDTO        `json:"domains"`
	Config      *ConfigDTO         `json:"config,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

type DomainDTO struct {
	ID                 uuid.UUID                      `json:"id"`
	Hostname           string                         `json:"hostname"`
	IsPrimary          bool                           `json:"isPrimary"`
	VerificationStatus enums.DomainVerificationStatus `json:"verificationStatus"`
	VerifiedAt         *time.Time                     `json:"verifiedAt,omitempty"`
}

type ConfigDTO struct {
	DisplayName   string            `json:"displayName"`
	LogoURL       *string           `json:"logoUrl,omitempty"`
	PrimaryColor  *string           `json:"primaryColor,omitempty"`
	Locale        string            `json:"locale"`
	Currency      string            `json:"currency"`
	ContactEmail  *string           `json:"contactEmail,omitempty"`
	ContactPhone  *string           `json:"contactPhone,omitempty"`
	BusinessHours map[string]string `json:"businessHours,omitempty"`
}

func toTenantDTO(t *models.Tenant) TenantDTO {
	dto := TenantDTO{
		ID:          t.ID,
		Name:        t.Name,
		Slug:        t.Slug,
		Status:      t.Status,
		SuspendedAt: t.SuspendedAt,
		ArchivedAt:  t.ArchivedAt,
		Domains:     make([]DomainDTO, 0, len(t.Domains)),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	for _, d := range t.Domains {
		dto.Domains = append(dto.Domains, toDomainDTO(d))
	}
	if t.Config != nil {
		dto.Config = &ConfigDTO{
			DisplayName:   t.Config.DisplayName,
			LogoURL:       t.Config.LogoURL,
			PrimaryColor:  t.Config.PrimaryColor,
			Locale:        t.Config.Locale,
			Currency:      t.Config.Currency,
			ContactEmail:  t.Config.ContactEmail,
			ContactPhone:  t.Config.ContactPhone,
			BusinessHours: t.Config.BusinessHours,
		}
	}
	return dto
}

func toDomainDTO(d models.TenantDomain) DomainDTO {
	return DomainDTO{
		ID:                 d.ID,
		Hostname:           d.Hostname,
		IsPrimary:          d.IsPrimary,
		VerificationStatus: d.VerificationStatus,
		VerifiedAt:         d.VerifiedAt,
	}
}
