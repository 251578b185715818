package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	stripewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/stripe"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const testSecret = "whsec_test"

func TestStripeWebhook_SuccessAndIdempotent(t *testing.T) {
	payload, header := buildSignedEvent(t, "evt_"+uuid.NewString())
	service := &fakeStripeWebhookService{}
	guard := newGuard(t, newInMemoryStore())
	handler := StripeWebhook(service, signingVerifier{secret: testSecret}, guard, nil)

	rec := post(handler, payload, header)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"data":{"received":true}}`, rec.Body.String())
	assert.Equal(t, 1, service.callCount())

	replay := post(handler, payload, header)
	require.Equal(t, http.StatusOK, replay.Code, replay.Body.String())
	assert.Equal(t, 1, service.callCount(), "redelivered event must not reach settlement")
}

func TestStripeWebhook_InvalidSignature(t *testing.T) {
	payload, _ := buildSignedEvent(t, "evt_bad")
	service := &fakeStripeWebhookService{}
	handler := StripeWebhook(service, signingVerifier{secret: testSecret}, newGuard(t, newInMemoryStore()), nil)

	rec := post(handler, payload, "t=1,v1=invalid")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, service.callCount())
	assertErrorCode(t, rec, pkgerrors.CodeValidation)

	missing := post(handler, payload, "")
	require.Equal(t, http.StatusBadRequest, missing.Code)
	assert.Equal(t, 0, service.callCount())
}

func TestStripeWebhook_FailureIsNotRemembered(t *testing.T) {
	payload, header := buildSignedEvent(t, "evt_retry")
	service := &fakeStripeWebhookService{errs: []error{pkgerrors.New(pkgerrors.CodeInternal, "settle order")}}
	store := newInMemoryStore()
	handler := StripeWebhook(service, signingVerifier{secret: testSecret}, newGuard(t, store), nil)

	first := post(handler, payload, header)
	require.Equal(t, http.StatusInternalServerError, first.Code)
	assert.Empty(t, store.keys(), "failed events must not be marked")

	retry := post(handler, payload, header)
	require.Equal(t, http.StatusOK, retry.Code)
	assert.Equal(t, 2, service.callCount())
	assert.Len(t, store.keys(), 1)
}

func TestStripeWebhook_ConcurrentDuplicateIsNotAcknowledgedEarly(t *testing.T) {
	payload, header := buildSignedEvent(t, "evt_concurrent")
	settleErr := pkgerrors.New(pkgerrors.CodeInternal, "settle order")
	service := &fakeStripeWebhookService{
		errs:    []error{settleErr, settleErr},
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	store := newInMemoryStore()
	handler := StripeWebhook(service, signingVerifier{secret: testSecret}, newGuard(t, store), nil)

	firstDone := make(chan *httptest.ResponseRecorder, 1)
	go func() { firstDone <- post(handler, payload, header) }()
	<-service.entered

	secondDone := make(chan *httptest.ResponseRecorder, 1)
	go func() { secondDone <- post(handler, payload, header) }()
	<-service.entered
	close(service.release)

	first, second := <-firstDone, <-secondDone
	assert.Equal(t, http.StatusInternalServerError, first.Code)
	assert.Equal(t, http.StatusInternalServerError, second.Code, "a redelivery must not be acknowledged while settlement has not succeeded")
	assert.Equal(t, 2, service.callCount())
	assert.Empty(t, store.keys())

	retry := post(handler, payload, header)
	require.Equal(t, http.StatusOK, retry.Code)
	assert.Equal(t, 3, service.callCount())
}

func TestStripeWebhook_CancelledRequest(t *testing.T) {
	t.Run("failed settlement stays retryable", func(t *testing.T) {
		payload, header := buildSignedEvent(t, "evt_cancel_fail")
		service := &fakeStripeWebhookService{errs: []error{pkgerrors.Wrap(pkgerrors.CodeInternal, context.Canceled, "settle order")}}
		store := newInMemoryStore()
		handler := StripeWebhook(service, signingVerifier{secret: testSecret}, newGuard(t, store), nil)

		rec := postWithContext(handler, cancelledContext(), payload, header)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Empty(t, store.keys())

		retry := post(handler, payload, header)
		require.Equal(t, http.StatusOK, retry.Code)
		assert.Equal(t, 2, service.callCount())
	})

	t.Run("successful settlement is still marked", func(t *testing.T) {
		payload, header := buildSignedEvent(t, "evt_cancel_ok")
		service := &fakeStripeWebhookService{}
		store := newInMemoryStore()
		handler := StripeWebhook(service, signingVerifier{secret: testSecret}, newGuard(t, store), nil)

		rec := postWithContext(handler, cancelledContext(), payload, header)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, store.keys(), 1)

		replay := post(handler, payload, header)
		require.Equal(t, http.StatusOK, replay.Code)
		assert.Equal(t, 1, service.callCount())
	})
}

func TestStripeWebhook_TenantMismatchIsForbidden(t *testing.T) {
	payload, header := buildSignedEvent(t, "evt_mismatch")
	service := &fakeStripeWebhookService{
		outcome: stripewebhook.OutcomeTenantMismatch,
		errs:    []error{pkgerrors.New(pkgerrors.CodeForbidden, "payment tenant does not match order tenant")},
	}
	handler := StripeWebhook(service, signingVerifier{secret: testSecret}, newGuard(t, newInMemoryStore()), nil)

	rec := post(handler, payload, header)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assertErrorCode(t, rec, pkgerrors.CodeForbidden)
}

func TestStripeWebhook_GuardOutageStillProcesses(t *testing.T) {
	payload, header := buildSignedEvent(t, "evt_redis_down")
	service := &fakeStripeWebhookService{}
	store := newInMemoryStore()
	store.err = errors.New("redis down")
	handler := StripeWebhook(service, signingVerifier{secret: testSecret}, newGuard(t, store), nil)

	rec := post(handler, payload, header)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, service.callCount())
}

func TestStripeWebhook_WithoutGuard(t *testing.T) {
	payload, header := buildSignedEvent(t, "evt_no_guard")
	service := &fakeStripeWebhookService{}
	handler := StripeWebhook(service, signingVerifier{secret: testSecret}, nil, nil)

	require.Equal(t, http.StatusOK, post(handler, payload, header).Code)
	require.Equal(t, http.StatusOK, post(handler, payload, header).Code)
	assert.Equal(t, 2, service.callCount())
}

func post(handler http.Handler, payload []byte, header string) *httptest.ResponseRecorder {
	return postWithContext(handler, context.Background(), payload, header)
}

func postWithContext(handler http.Handler, ctx context.Context, payload []byte, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload)).WithContext(ctx)
	if header != "" {
		req.Header.Set(signatureHeader, header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func cancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, code pkgerrors.Code) {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(code), body.Error.Code)
}

func newGuard(t *testing.T, store *inMemoryStore) *stripewebhook.EventGuard {
	t.Helper()
	guard, err := stripewebhook.NewEventGuard(store, time.Minute, stripewebhook.DefaultGuardScope)
	require.NoError(t, err)
	return guard
}

func buildSignedEvent(t *testing.T, eventID string) ([]byte, string) {
	t.Helper()
	session := &stripe.CheckoutSession{
		ID:       "cs_test_" + uuid.NewString(),
		Metadata: map[string]string{"orderId": uuid.NewString(), "tenantId": uuid.NewString()},
	}
	rawSession, err := json.Marshal(session)
	require.NoError(t, err)
	event := &stripe.Event{
		ID:         eventID,
		Type:       stripe.EventTypeCheckoutSessionCompleted,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data:       &stripe.EventData{Raw: rawSession},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload, buildStripeSignatureHeader(payload, testSecret, time.Now().Unix())
}

func buildStripeSignatureHeader(payload []byte, secret string, ts int64) string {
	signedPayload := fmt.Sprintf("%d.%s", ts, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

type signingVerifier struct {
	secret string
}

func (v signingVerifier) VerifyWebhook(payload []byte, header string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, header, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

type fakeStripeWebhookService struct {
	mu      sync.Mutex
	calls   int
	outcome stripewebhook.Outcome
	errs    []error

	// entered and release, when set, hold each call until release is closed.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeStripeWebhookService) HandleEvent(ctx context.Context, event *stripe.Event) (stripewebhook.Outcome, error) {
	f.mu.Lock()
	f.calls++
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	if err != nil {
		outcome := f.outcome
		if outcome == "" {
			outcome = stripewebhook.OutcomeFailed
		}
		return outcome, err
	}
	return stripewebhook.OutcomeSettled, nil
}

func (f *fakeStripeWebhookService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// inMemoryStore fails like go-redis does once the caller's context is done.
type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{data: make(map[string]string)}
}

func (s *inMemoryStore) check(ctx context.Context) error {
	if s.err != nil {
		return s.err
	}
	return ctx.Err()
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return false, err
	}
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *inMemoryStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return nil
}

func (s *inMemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return false, err
	}
	_, ok := s.data[key]
	return ok, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("sf:idempotency:%s:%s", scope, id)
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *inMemoryStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	return out
}
