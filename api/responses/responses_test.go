package responses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var body ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func TestWriteCreatedWrapsData(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteCreated(rec, map[string]string{"orderId": "o-1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"orderId":"o-1"}}`, rec.Body.String())
}

func TestWriteErrorSurfacesCodeMetadata(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	cases := []struct {
		name        string
		err         error
		status      int
		code        pkgerrors.Code
		message     string
		retryable   bool
		wantDetails bool
	}{
		{
			name:        "validation keeps details",
			err:         pkgerrors.New(pkgerrors.CodeValidation, "bad input").WithDetails(map[string]string{"field": "email"}),
			status:      http.StatusBadRequest,
			code:        pkgerrors.CodeValidation,
			message:     "bad input",
			wantDetails: true,
		},
		{
			name:        "dependency is retryable",
			err:         pkgerrors.New(pkgerrors.CodeDependency, "store temporarily unavailable").WithDetails(map[string]any{"code": "TENANT_SUSPENDED"}),
			status:      http.StatusServiceUnavailable,
			code:        pkgerrors.CodeDependency,
			message:     "store temporarily unavailable",
			retryable:   true,
			wantDetails: true,
		},
		{
			name:    "forbidden hides details",
			err:     pkgerrors.New(pkgerrors.CodeForbidden, "payment tenant does not match order tenant").WithDetails(map[string]any{"sessionTenantId": "x"}),
			status:  http.StatusForbidden,
			code:    pkgerrors.CodeForbidden,
			message: "payment tenant does not match order tenant",
		},
		{
			name:      "untyped becomes internal",
			err:       fmt.Errorf("query: %w", errors.New("connection reset")),
			status:    http.StatusInternalServerError,
			code:      pkgerrors.CodeInternal,
			message:   "internal server error",
			retryable: true,
		},
		{
			name:      "nil error",
			status:    http.StatusInternalServerError,
			code:      pkgerrors.CodeInternal,
			message:   "internal server error",
			retryable: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(context.Background(), logg, rec, tc.err)

			require.Equal(t, tc.status, rec.Code)
			got := decodeError(t, rec)
			assert.Equal(t, string(tc.code), got.Code)
			assert.Equal(t, tc.message, got.Message)
			assert.Equal(t, tc.retryable, got.Retryable)
			assert.Equal(t, tc.wantDetails, got.Details != nil)
		})
	}
}

func TestWriteErrorEchoesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set(RequestIDHeader, "req-42")
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "req-42", decodeError(t, rec).RequestID)
}
