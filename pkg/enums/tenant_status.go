package enums

import "fmt"

// TenantStatus is the administrative lifecycle of a storefront.
type TenantStatus string

const (
	TenantStatusDraft     TenantStatus = "DRAFT"
	TenantStatusSeeding   TenantStatus = "SEEDING"
	TenantStatusActive    TenantStatus = "ACTIVE"
	TenantStatusSuspended TenantStatus = "SUSPENDED"
	TenantStatusArchived  TenantStatus = "ARCHIVED"
)

var validTenantStatuses = []TenantStatus{
	TenantStatusDraft,
	TenantStatusSeeding,
	TenantStatusActive,
	TenantStatusSuspended,
	TenantStatusArchived,
}

func (s TenantStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TenantStatus.
func (s TenantStatus) IsValid() bool {
	for _, candidate := range validTenantStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTenantStatus converts raw input into a TenantStatus.
func ParseTenantStatus(value string) (TenantStatus, error) {
	for _, candidate := range validTenantStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tenant status %q", value)
}

// DomainVerificationStatus tracks hostname ownership checks.
type DomainVerificationStatus string

const (
	DomainVerificationPending  DomainVerificationStatus = "PENDING"
	DomainVerificationVerified DomainVerificationStatus = "VERIFIED"
)

// IsValid reports whether the value is a known DomainVerificationStatus.
func (s DomainVerificationStatus) IsValid() bool {
	return s == DomainVerificationPending || s == DomainVerificationVerified
}
