package discounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Service resolves codes for checkout and the storefront code preview.
type Service interface {
	EvaluateByID(ctx context.Context, tenantID, codeID uuid.UUID, subtotal decimal.Decimal) (Result, error)
	Validate(ctx context.Context, tenantID uuid.UUID, input ValidateInput) (*ValidationDTO, error)
	IncrementUsage(ctx context.Context, codeID uuid.UUID) error
}

type ValidateInput struct {
	Code     string          `json:"code" validate:"required,max=64"`
	Subtotal decimal.Decimal `json:"subtotal" validate:"gte=0"`
}

type ValidationDTO struct {
	Valid          bool            `json:"valid"`
	DiscountID     *uuid.UUID      `json:"discountId,omitempty"`
	Code           string          `json:"code,omitempty"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Reason         Reason          `json:"reason,omitempty"`
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("discount repository required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, now: now}, nil
}

// EvaluateByID looks up the code within the tenant. A missing code is not an error.
func (s *service) EvaluateByID(ctx context.Context, tenantID, codeID uuid.UUID, subtotal decimal.Decimal) (Result, error) {
	code, err := s.repo.FindByID(ctx, tenantID, codeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Result{Amount: decimal.Zero, Reason: ReasonMissing}, nil
		}
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load discount code")
	}
	return Evaluate(code, subtotal, s.now()), nil
}

func (s *service) Validate(ctx context.Context, tenantID uuid.UUID, input ValidateInput) (*ValidationDTO, error) {
	if NormalizeCode(input.Code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	if input.Subtotal.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subtotal must be non-negative")
	}
	code, err := s.repo.FindByCode(ctx, tenantID, input.Code)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load discount code")
	}
	res := Evaluate(code, input.Subtotal, s.now())
	return &ValidationDTO{
		Valid:          res.Applied(),
		DiscountID:     res.CodeID,
		Code:           res.Code,
		DiscountAmount: res.Amount,
		Reason:         res.Reason,
	}, nil
}

func (s *service) IncrementUsage(ctx context.Context, codeID uuid.UUID) error {
	if err := s.repo.IncrementUsage(ctx, codeID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment discount usage")
	}
	return nil
}
