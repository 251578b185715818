package discounts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestServiceEvaluateByIDIsTenantScoped(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo, func() time.Time { return evalNow })
	require.NoError(t, err)

	code := activeCode(enums.DiscountTypePercentage, "10")
	require.NoError(t, conn.Create(code).Error)

	res, err := svc.EvaluateByID(context.Background(), code.TenantID, code.ID, dec("100.00"))
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(dec("10.00")))

	res, err = svc.EvaluateByID(context.Background(), uuid.New(), code.ID, dec("100.00"))
	require.NoError(t, err)
	assert.False(t, res.Applied(), "another tenant's code must not apply")
	assert.Equal(t, ReasonMissing, res.Reason)
}

func TestServiceValidateMatchesCaseInsensitively(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), func() time.Time { return evalNow })
	require.NoError(t, err)

	code := activeCode(enums.DiscountTypeFixed, "7.50")
	require.NoError(t, conn.Create(code).Error)

	out, err := svc.Validate(context.Background(), code.TenantID, ValidateInput{Code: "  spring ", Subtotal: dec("30.00")})
	require.NoError(t, err)
	assert.True(t, out.Valid)
	assert.True(t, out.DiscountAmount.Equal(dec("7.50")))

	out, err = svc.Validate(context.Background(), code.TenantID, ValidateInput{Code: "unknown", Subtotal: dec("30.00")})
	require.NoError(t, err)
	assert.False(t, out.Valid)
	assert.Equal(t, ReasonMissing, out.Reason)

	_, err = svc.Validate(context.Background(), code.TenantID, ValidateInput{Code: " "})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestIncrementUsage(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo, nil)
	require.NoError(t, err)

	code := activeCode(enums.DiscountTypeFixed, "5")
	require.NoError(t, conn.Create(code).Error)

	require.NoError(t, svc.IncrementUsage(context.Background(), code.ID))
	require.NoError(t, svc.IncrementUsage(context.Background(), code.ID))

	got, err := repo.FindByID(context.Background(), code.TenantID, code.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UsageCount)

	err = svc.IncrementUsage(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInternal))
}
