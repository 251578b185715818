package tenants

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const defaultDisplayName = "New Shop"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes platform administration of tenants and their domains.
// Every mutation invalidates the resolver cache before it returns.
type Service interface {
	Create(ctx context.Context, input CreateTenantInput) (*TenantDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*TenantDTO, error)
	List(ctx context.Context, status *enums.TenantStatus) ([]TenantDTO, error)
	UpdateConfig(ctx context.Context, id uuid.UUID, input UpdateConfigInput) (*TenantDTO, error)
	AddDomain(ctx context.Context, id uuid.UUID, input AddDomainInput) (*DomainDTO, error)
	RemoveDomain(ctx context.Context, tenantID, domainID uuid.UUID) error
	SetPrimaryDomain(ctx context.Context, tenantID, domainID uuid.UUID) error
	VerifyDomain(ctx context.Context, tenantID, domainID uuid.UUID) (*DomainDTO, error)
	Activate(ctx context.Context, id uuid.UUID) (*TenantDTO, error)
	Suspend(ctx context.Context, id uuid.UUID) (*TenantDTO, error)
	Archive(ctx context.Context, id uuid.UUID) (*TenantDTO, error)
	GetPrimaryDomain(ctx context.Context, id uuid.UUID) (string, error)
}

type ServiceParams struct {
	Repository Repository
	DB         txRunner
	Outbox     outbox.Emitter
	Cache      Cache
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	repo   Repository
	db     txRunner
	outbox outbox.Emitter
	cache  Cache
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds the tenant administration service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("tenant repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Cache == nil {
		return nil, fmt.Errorf("tenant cache required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:   params.Repository,
		db:     params.DB,
		outbox: params.Outbox,
		cache:  params.Cache,
		logg:   params.Logger,
		now:    now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateTenantInput) (*TenantDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	tenantSlug := slug.Make(input.Slug)
	if tenantSlug == "" {
		tenantSlug = slug.Make(name)
	}
	if tenantSlug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug could not be derived from name")
	}

	var created models.Tenant
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		exists, err := repo.SlugExists(ctx, tenantSlug)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check tenant slug")
		}
		if exists {
			return pkgerrors.New(pkgerrors.CodeConflict, "tenant slug already exists")
		}
		created = models.Tenant{
			Name:   name,
			Slug:   tenantSlug,
			Status: enums.TenantStatusDraft,
		}
		if err := repo.Create(ctx, &created); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "tenant slug already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create tenant")
		}
		if err := repo.UpsertConfig(ctx, &models.TenantConfig{
			TenantID:    created.ID,
			DisplayName: defaultDisplayNameFor(name),
			Locale:      "nl-BE",
			Currency:    "EUR",
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create tenant config")
		}
		return s.emit(ctx, tx, &created, "created", nil)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, created.ID)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*TenantDTO, error) {
	tenant, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	dto := toTenantDTO(tenant)
	return &dto, nil
}

func (s *service) List(ctx context.Context, status *enums.TenantStatus) ([]TenantDTO, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid tenant status")
	}
	rows, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list tenants")
	}
	out := make([]TenantDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toTenantDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) UpdateConfig(ctx context.Context, id uuid.UUID, input UpdateConfigInput) (*TenantDTO, error) {
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		tenant, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		cfg := models.TenantConfig{
			TenantID:    tenant.ID,
			DisplayName: defaultDisplayNameFor(tenant.Name),
			Locale:      "nl-BE",
			Currency:    "EUR",
		}
		if tenant.Config != nil {
			cfg = *tenant.Config
		}
		applyConfigPatch(&cfg, input)
		if err := repo.UpsertConfig(ctx, &cfg); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update tenant config")
		}
		return s.emit(ctx, tx, tenant, "config_updated", nil)
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateTenant(id)
	return s.Get(ctx, id)
}

func (s *service) AddDomain(ctx context.Context, id uuid.UUID, input AddDomainInput) (*DomainDTO, error) {
	host, err := NormalizeHost(input.Hostname)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid hostname")
	}

	var domain models.TenantDomain
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		tenant, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		if _, err := repo.FindDomainByHostname(ctx, host); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "domain already registered")
		} else if !isNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check domain")
		}
		domain = models.TenantDomain{
			TenantID:           tenant.ID,
			Hostname:           host,
			VerificationStatus: enums.DomainVerificationPending,
		}
		if err := repo.CreateDomain(ctx, &domain); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "domain already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create domain")
		}
		if input.IsPrimary || len(tenant.Domains) == 0 {
			if err := repo.SetPrimaryDomain(ctx, tenant.ID, domain.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "set primary domain")
			}
			domain.IsPrimary = true
		}
		return s.emit(ctx, tx, tenant, "domain_added", []string{host})
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(host)
	s.cache.InvalidateTenant(id)
	dto := toDomainDTO(domain)
	return &dto, nil
}

// RemoveDomain refuses to drop the primary or the last remaining domain.
func (s *service) RemoveDomain(ctx context.Context, tenantID, domainID uuid.UUID) error {
	var host string
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		tenant, err := s.load(ctx, repo, tenantID)
		if err != nil {
			return err
		}
		domain := findDomain(tenant.Domains, domainID)
		if domain == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "domain not found")
		}
		if len(tenant.Domains) <= 1 {
			return pkgerrors.New(pkgerrors.CodeConflict, "cannot remove the last domain of a tenant")
		}
		if domain.IsPrimary {
			return pkgerrors.New(pkgerrors.CodeConflict, "cannot remove primary domain")
		}
		if err := repo.DeleteDomain(ctx, tenantID, domainID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete domain")
		}
		host = domain.Hostname
		return s.emit(ctx, tx, tenant, "domain_removed", []string{host})
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(host)
	s.cache.InvalidateTenant(tenantID)
	return nil
}

func (s *service) SetPrimaryDomain(ctx context.Context, tenantID, domainID uuid.UUID) error {
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		tenant, err := s.load(ctx, repo, tenantID)
		if err != nil {
			return err
		}
		domain := findDomain(tenant.Domains, domainID)
		if domain == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "domain not found")
		}
		if err := repo.SetPrimaryDomain(ctx, tenantID, domainID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "set primary domain")
		}
		return s.emit(ctx, tx, tenant, "primary_domain_changed", []string{domain.Hostname})
	})
	if err != nil {
		return err
	}
	s.cache.InvalidateTenant(tenantID)
	return nil
}

// VerifyDomain marks ownership as confirmed. DNS checks are performed out of band.
func (s *service) VerifyDomain(ctx context.Context, tenantID, domainID uuid.UUID) (*DomainDTO, error) {
	var verified models.TenantDomain
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		tenant, err := s.load(ctx, repo, tenantID)
		if err != nil {
			return err
		}
		domain := findDomain(tenant.Domains, domainID)
		if domain == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "domain not found")
		}
		at := s.now().UTC()
		if err := repo.MarkDomainVerified(ctx, tenantID, domainID, at); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify domain")
		}
		verified = *domain
		verified.VerificationStatus = enums.DomainVerificationVerified
		verified.VerifiedAt = &at
		return s.emit(ctx, tx, tenant, "domain_verified", []string{domain.Hostname})
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateTenant(tenantID)
	dto := toDomainDTO(verified)
	return &dto, nil
}

// Activate requires at least one verified domain and a config row.
func (s *service) Activate(ctx context.Context, id uuid.UUID) (*TenantDTO, error) {
	return s.transition(ctx, id, enums.TenantStatusActive, "activated", func(t *models.Tenant) error {
		if t.Status == enums.TenantStatusArchived {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "archived tenants cannot be activated")
		}
		verified := false
		for _, d := range t.Domains {
			if d.VerificationStatus == enums.DomainVerificationVerified {
				verified = true
				break
			}
		}
		if !verified {
			return pkgerrors.New(pkgerrors.CodeConflict, "tenant must have at least one verified domain before activation")
		}
		if t.Config == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "tenant must have config before activation")
		}
		return nil
	})
}

func (s *service) Suspend(ctx context.Context, id uuid.UUID) (*TenantDTO, error) {
	return s.transition(ctx, id, enums.TenantStatusSuspended, "suspended", nil)
}

func (s *service) Archive(ctx context.Context, id uuid.UUID) (*TenantDTO, error) {
	return s.transition(ctx, id, enums.TenantStatusArchived, "archived", nil)
}

// GetPrimaryDomain returns the primary hostname, falling back to any domain.
func (s *service) GetPrimaryDomain(ctx context.Context, id uuid.UUID) (string, error) {
	domains, err := s.repo.ListDomains(ctx, id)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list domains")
	}
	return primaryHostname(domains), nil
}

func (s *service) transition(ctx context.Context, id uuid.UUID, status enums.TenantStatus, change string, guard func(*models.Tenant) error) (*TenantDTO, error) {
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		tenant, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(tenant); err != nil {
				return err
			}
		}
		if err := repo.UpdateStatus(ctx, id, status, s.now().UTC()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update tenant status")
		}
		tenant.Status = status
		return s.emit(ctx, tx, tenant, change, nil)
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateTenant(id)
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"tenant_id": id.String(), "status": string(status)})
		s.logg.Info(logCtx, "tenant status changed, cache invalidated")
	}
	return s.Get(ctx, id)
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.Tenant, error) {
	tenant, err := repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load tenant")
	}
	return tenant, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, tenant *models.Tenant, change string, hostnames []string) error {
	if len(hostnames) == 0 {
		for _, d := range tenant.Domains {
			hostnames = append(hostnames, d.Hostname)
		}
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventTenantUpdated,
		AggregateType: enums.AggregateTenant,
		AggregateID:   tenant.ID,
		TenantID:      tenant.ID,
		Data: payloads.TenantUpdatedEvent{
			TenantID:  tenant.ID,
			Change:    change,
			Status:    tenant.Status,
			Hostnames: hostnames,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit tenant_updated")
	}
	return nil
}

func applyConfigPatch(cfg *models.TenantConfig, input UpdateConfigInput) {
	if input.DisplayName != nil && strings.TrimSpace(*input.DisplayName) != "" {
		cfg.DisplayName = strings.TrimSpace(*input.DisplayName)
	}
	if input.LogoURL != nil {
		cfg.LogoURL = input.LogoURL
	}
	if input.PrimaryColor != nil {
		cfg.PrimaryColor = input.PrimaryColor
	}
	if input.Locale != nil && *input.Locale != "" {
		cfg.Locale = *input.Locale
	}
	if input.Currency != nil && *input.Currency != "" {
		cfg.Currency = strings.ToUpper(*input.Currency)
	}
	if input.ContactEmail != nil {
		cfg.ContactEmail = input.ContactEmail
	}
	if input.ContactPhone != nil {
		cfg.ContactPhone = input.ContactPhone
	}
	if input.BusinessHours != nil {
		cfg.BusinessHours = input.BusinessHours
	}
}

func findDomain(domains []models.TenantDomain, id uuid.UUID) *models.TenantDomain {
	for i := range domains {
		if domains[i].ID == id {
			return &domains[i]
		}
	}
	return nil
}

func primaryHostname(domains []models.TenantDomain) string {
	for _, d := range domains {
		if d.IsPrimary {
			return d.Hostname
		}
	}
	if len(domains) > 0 {
		return domains[0].Hostname
	}
	return ""
}

func defaultDisplayNameFor(name string) string {
	if strings.TrimSpace(name) == "" {
		return defaultDisplayName
	}
	return name
}
