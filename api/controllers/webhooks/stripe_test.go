package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/teevo/fulfilment-backend/pkg/errors"
	"github.com/teevo/fulfilment-backend/pkg/metrics"
	"github.com/teevo/fulfilment-backend/pkg/outbox/idempotency"
	"github.com/teevo/fulfilment-backend/pkg/redis/redistest"
)

const testSigningSecret = "whsec_test"

type fakeStripeWebhookService struct {
	calls int
	errs  []error
}

func (f *fakeStripeWebhookService) HandleEvent(ctx context.Context, event *stripe.Event) error {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

type fakeSigningClient struct {
	secret string
}

func (c *fakeSigningClient) SigningSecret() string {
	return c.secret
}

func newGuard(t *testing.T) *idempotency.Manager {
	t.Helper()
	client, _ := redistest.NewClient()
	guard, err := idempotency.NewManager(client, time.Hour)
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	return guard
}

func newStripeHandler(t *testing.T, svc StripeWebhookService) http.HandlerFunc {
	t.Helper()
	m := metrics.NewFulfilmentMetrics(prometheus.NewRegistry())
	return StripeWebhook(svc, &fakeSigningClient{secret: testSigningSecret}, newGuard(t), m, nil)
}

func postStripe(handler http.Handler, payload []byte, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	if header != "" {
		req.Header.Set("Stripe-Signature", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhook_SuccessAndIdempotent(t *testing.T) {
	payload, header := buildSignedEvent(t)
	service := &fakeStripeWebhookService{}
	handler := newStripeHandler(t, service)

	rec := postStripe(handler, payload, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}

	rec = postStripe(handler, payload, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected duplicate not processed, call count %d", service.calls)
	}
}

func TestStripeWebhook_SignatureChecks(t *testing.T) {
	payload, _ := buildSignedEvent(t)
	service := &fakeStripeWebhookService{}
	handler := newStripeHandler(t, service)

	if rec := postStripe(handler, payload, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing signature, got %d", rec.Code)
	}
	if rec := postStripe(handler, payload, "t=1,v1=invalid"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid signature, got %d", rec.Code)
	}
	wrongSecret := buildStripeSignatureHeader(payload, "whsec_other", time.Now().Unix())
	if rec := postStripe(handler, payload, wrongSecret); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign secret, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not be invoked on invalid signature")
	}
}

func TestStripeWebhook_RetryableFailureReleasesEvent(t *testing.T) {
	payload, header := buildSignedEvent(t)
	service := &fakeStripeWebhookService{errs: []error{pkgerrors.New(pkgerrors.CodeDependency, "database unavailable")}}
	handler := newStripeHandler(t, service)

	if rec := postStripe(handler, payload, header); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec := postStripe(handler, payload, header); rec.Code != http.StatusOK {
		t.Fatalf("expected redelivery to succeed, got %d", rec.Code)
	}
	if service.calls != 2 {
		t.Fatalf("expected redelivery to be processed, call count %d", service.calls)
	}
}

func TestStripeWebhook_PermanentFailureIsAcknowledged(t *testing.T) {
	payload, header := buildSignedEvent(t)
	service := &fakeStripeWebhookService{errs: []error{pkgerrors.New(pkgerrors.CodeValidation, "checkout session missing listing_id")}}
	handler := newStripeHandler(t, service)

	if rec := postStripe(handler, payload, header); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for permanent failure, got %d", rec.Code)
	}
	if rec := postStripe(handler, payload, header); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on redelivery, got %d", rec.Code)
	}
	if service.calls != 1 {
		t.Fatalf("expected permanent failure to stay marked, call count %d", service.calls)
	}
}

func buildSignedEvent(t *testing.T) ([]byte, string) {
	t.Helper()
	session := &stripe.CheckoutSession{
		ID:            "cs_test_" + uuid.NewString(),
		Status:        stripe.CheckoutSessionStatusComplete,
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal:   12550,
		Currency:      stripe.CurrencyGBP,
		Metadata: map[string]string{
			"listing_id": uuid.NewString(),
			"buyer_id":   uuid.NewString(),
		},
	}
	rawSession, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	event := &stripe.Event{
		ID:         "evt_" + uuid.NewString(),
		Type:       stripe.EventTypeCheckoutSessionCompleted,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data: &stripe.EventData{
			Raw: rawSession,
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload, buildStripeSignatureHeader(payload, testSigningSecret, time.Now().Unix())
}

func buildStripeSignatureHeader(payload []byte, secret string, ts int64) string {
	signedPayload := fmt.Sprintf("%d.%s", ts, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
