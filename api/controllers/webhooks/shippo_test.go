package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/teevo/fulfilment-backend/pkg/errors"
	"github.com/teevo/fulfilment-backend/pkg/shippo"
)

const testWebhookToken = "shippo-hook-token"

type fakeCarrierHandler struct {
	events []shippo.TrackEvent
	err    error
}

func (f *fakeCarrierHandler) HandleCarrierEvent(_ context.Context, evt shippo.TrackEvent) error {
	f.events = append(f.events, evt)
	err := f.err
	f.err = nil
	return err
}

const deliveredBody = `{
  "event": "track_updated",
  "test": true,
  "data": {
    "tracking_number": "TRK123",
    "carrier": "evri",
    "transaction": "txn_abc",
    "tracking_status": {"object_id": "ts_1", "status": "DELIVERED", "status_details": "Left with neighbour", "status_date": "2026-05-02T10:00:00Z"}
  }
}`

func postShippo(handler http.Handler, token, body string) *httptest.ResponseRecorder {
	target := "/api/v1/webhooks/shippo"
	if token != "" {
		target += "?token=" + token
	}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestShippoWebhookRequiresToken(t *testing.T) {
	svc := &fakeCarrierHandler{}
	handler := ShippoWebhook(svc, testWebhookToken, newGuard(t), nil, nil)

	for _, token := range []string{"", "wrong"} {
		if rec := postShippo(handler, token, deliveredBody); rec.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: expected 401 got %d", token, rec.Code)
		}
	}

	unconfigured := ShippoWebhook(svc, "", newGuard(t), nil, nil)
	if rec := postShippo(unconfigured, "anything", deliveredBody); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when no token configured, got %d", rec.Code)
	}
	if len(svc.events) != 0 {
		t.Fatalf("handler should not run without a valid token")
	}
}

func TestShippoWebhookDeduplicates(t *testing.T) {
	svc := &fakeCarrierHandler{}
	handler := ShippoWebhook(svc, testWebhookToken, newGuard(t), nil, nil)

	for i := 0; i < 2; i++ {
		if rec := postShippo(handler, testWebhookToken, deliveredBody); rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200 got %d", i, rec.Code)
		}
	}
	if len(svc.events) != 1 {
		t.Fatalf("expected one handled event, got %d", len(svc.events))
	}
	got := svc.events[0]
	if got.Data.Transaction != "txn_abc" || got.Data.TrackingStatus.Status != "DELIVERED" {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestShippoWebhookFailureAllowsRedelivery(t *testing.T) {
	svc := &fakeCarrierHandler{err: pkgerrors.New(pkgerrors.CodeDependency, "lookup order")}
	handler := ShippoWebhook(svc, testWebhookToken, newGuard(t), nil, nil)

	if rec := postShippo(handler, testWebhookToken, deliveredBody); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
	if rec := postShippo(handler, testWebhookToken, deliveredBody); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on redelivery got %d", rec.Code)
	}
	if len(svc.events) != 2 {
		t.Fatalf("expected redelivery to reach the handler, got %d calls", len(svc.events))
	}
}

func TestShippoWebhookRejectsMalformedBody(t *testing.T) {
	svc := &fakeCarrierHandler{}
	handler := ShippoWebhook(svc, testWebhookToken, newGuard(t), nil, nil)

	if rec := postShippo(handler, testWebhookToken, "{not json"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if rec := postShippo(handler, testWebhookToken, `{"event":"track_updated","data":{}}`); rec.Code != http.StatusOK {
		t.Fatalf("expected unreferenced event to be acknowledged, got %d", rec.Code)
	}
	if len(svc.events) != 0 {
		t.Fatalf("handler should not run, got %d calls", len(svc.events))
	}
}
