package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teevo/fulfilment-backend/internal/delivery"
	"github.com/teevo/fulfilment-backend/internal/listings"
	"github.com/teevo/fulfilment-backend/internal/notifications/notificationstest"
	"github.com/teevo/fulfilment-backend/internal/orders"
	"github.com/teevo/fulfilment-backend/internal/orders/orderstest"
	"github.com/teevo/fulfilment-backend/internal/packaging"
	"github.com/teevo/fulfilment-backend/internal/shipping"
	"github.com/teevo/fulfilment-backend/internal/users"
	pkgAuth "github.com/teevo/fulfilment-backend/pkg/auth"
	"github.com/teevo/fulfilment-backend/pkg/config"
	"github.com/teevo/fulfilment-backend/pkg/db/dbtest"
	"github.com/teevo/fulfilment-backend/pkg/db/models"
	"github.com/teevo/fulfilment-backend/pkg/enums"
	"github.com/teevo/fulfilment-backend/pkg/logger"
	"github.com/teevo/fulfilment-backend/pkg/metrics"
	"github.com/teevo/fulfilment-backend/pkg/outbox"
	"github.com/teevo/fulfilment-backend/pkg/outbox/idempotency"
	"github.com/teevo/fulfilment-backend/pkg/redis/redistest"
	"github.com/teevo/fulfilment-backend/pkg/shippo/shippotest"
)

const webhookToken = "hook-token"

type testServer struct {
	handler http.Handler
	order   *models.Order
	cfg     *config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		App:    config.AppConfig{Env: "dev", CORSOrigins: []string{"https://teevo.test"}},
		JWT:    config.JWTConfig{Secret: "secret", Issuer: "teevo-test", ExpirationMinutes: 60},
		Shippo: config.ShippoConfig{WebhookToken: webhookToken},
	}

	client := dbtest.Open(t)
	redisClient, _ := redistest.NewClient()
	reg := prometheus.NewRegistry()
	m := metrics.NewFulfilmentMetrics(reg)

	history := outbox.NewService(outbox.NewRepository(client.DB()), logger.Nop())
	repo := orders.NewRepository(client.DB())
	engine, err := orders.NewService(orders.ServiceParams{Repo: repo, TX: client, History: history, Metrics: m})
	if err != nil {
		t.Fatalf("order engine: %v", err)
	}
	notifier, _ := notificationstest.NewOrderNotifier(t, client)
	pack, err := packaging.NewService(engine, notifier, logger.Nop())
	if err != nil {
		t.Fatalf("packaging: %v", err)
	}
	directory, err := users.NewDirectory(users.NewRepository(client.DB()))
	if err != nil {
		t.Fatalf("directory: %v", err)
	}
	labels, err := shipping.NewService(shipping.ServiceParams{
		Engine:          engine,
		Provider:        shippotest.NewServer(t).Client(t),
		Origins:         directory,
		Listings:        listings.NewRepository(client.DB()),
		Locks:           redisClient,
		AllowedServices: []string{"evri_standard", "royal_mail_tracked_48"},
		Metrics:         m,
	})
	if err != nil {
		t.Fatalf("shipping: %v", err)
	}
	deliverySvc, err := delivery.NewService(delivery.ServiceParams{Engine: engine, Orders: repo, Notifier: notifier})
	if err != nil {
		t.Fatalf("delivery: %v", err)
	}
	guard, err := idempotency.NewManager(redisClient, time.Hour)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}

	order := orderstest.Insert(t, client.DB(), orderstest.NewOrder())
	orderstest.InsertProfile(t, client.DB(), order.BuyerID, "buyer@example.com", orderstest.BuyerAddress())
	orderstest.InsertProfile(t, client.DB(), order.SellerID, "seller@example.com", orderstest.SellerAddress())
	orderstest.InsertListing(t, client.DB(), order.ListingID, order.SellerID, nil)

	handler := NewRouter(cfg, nil, client, redisClient, Services{
		Orders:         engine,
		Packaging:      pack,
		Labels:         labels,
		Delivery:       deliverySvc,
		WebhookGuard:   guard,
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return &testServer{handler: handler, order: order, cfg: cfg}
}

func (s *testServer) token(t *testing.T, userID uuid.UUID, role enums.MemberRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(s.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Email:  "golfer@example.com",
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func (s *testServer) do(method, path, auth, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if method == http.MethodPost {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func fulfilmentStatus(t *testing.T, rec *httptest.ResponseRecorder) enums.FulfilmentStatus {
	t.Helper()
	var envelope struct {
		Data struct {
			FulfilmentStatus enums.FulfilmentStatus `json:"fulfilment_status"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return envelope.Data.FulfilmentStatus
}

func TestHealthAndMetricsAreOpen(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		if rec := s.do(http.MethodGet, path, "", ""); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, rec.Code)
		}
	}
}

func TestOrderRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t)
	path := "/api/v1/orders/" + s.order.ID.String()

	if rec := s.do(http.MethodGet, path, "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, path, s.token(t, uuid.New(), enums.MemberRoleUser), ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for stranger got %d", rec.Code)
	}
	rec := s.do(http.MethodGet, path, s.token(t, s.order.BuyerID, enums.MemberRoleUser), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for buyer got %d", rec.Code)
	}
	if got := fulfilmentStatus(t, rec); got != enums.FulfilmentStatusPaid {
		t.Fatalf("unexpected status %s", got)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	s := newTestServer(t)
	path := "/api/admin/v1/orders/" + s.order.ID.String() + "/events"

	if rec := s.do(http.MethodGet, path, s.token(t, s.order.SellerID, enums.MemberRoleUser), ""); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, path, s.token(t, uuid.New(), enums.MemberRoleAdmin), ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", rec.Code)
	}
}

func TestMutatingRoutesRequireIdempotencyKey(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+s.order.ID.String()+"/packaging/choice", strings.NewReader(`{"choice":"SELLER_PACKS"}`))
	req.Header.Set("Authorization", s.token(t, s.order.SellerID, enums.MemberRoleUser))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestShippoWebhookIsTokenProtected(t *testing.T) {
	s := newTestServer(t)
	body := `{"event":"track_updated","data":{"transaction":"txn_x","tracking_status":{"status":"TRANSIT"}}}`

	if rec := s.do(http.MethodPost, "/api/v1/webhooks/shippo?token=nope", "", body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/api/v1/webhooks/shippo?token="+webhookToken, "", body); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestFulfilmentOverHTTP(t *testing.T) {
	s := newTestServer(t)
	base := "/api/v1/orders/" + s.order.ID.String()
	seller := s.token(t, s.order.SellerID, enums.MemberRoleUser)
	buyer := s.token(t, s.order.BuyerID, enums.MemberRoleUser)
	admin := s.token(t, uuid.New(), enums.MemberRoleAdmin)
	prefix := s.order.ID.String() + "/packaging/"

	steps := []struct {
		method string
		path   string
		auth   string
		body   string
		status int
		want   enums.FulfilmentStatus
	}{
		{http.MethodPost, base + "/label", seller, "", http.StatusUnprocessableEntity, ""},
		{http.MethodPost, base + "/packaging/choice", buyer, `{"choice":"SELLER_PACKS"}`, http.StatusForbidden, ""},
		{http.MethodPost, base + "/packaging/choice", seller, `{"choice":"SELLER_PACKS"}`, http.StatusOK, enums.FulfilmentStatusPackagingSubmitted},
		{http.MethodPost, base + "/packaging/photos", seller, `{"paths":["` + prefix + `1.jpg","` + prefix + `2.jpg","` + prefix + `3.jpg"]}`, http.StatusOK, enums.FulfilmentStatusPackagingSubmitted},
		{http.MethodPost, "/api/admin/v1/orders/" + s.order.ID.String() + "/packaging/reject", admin, `{"notes":"Wrap the club head"}`, http.StatusOK, enums.FulfilmentStatusPackagingSubmitted},
		{http.MethodPost, base + "/packaging/photos", seller, `{"paths":["` + prefix + `4.jpg","` + prefix + `5.jpg","` + prefix + `6.jpg"]}`, http.StatusOK, enums.FulfilmentStatusPackagingSubmitted},
		{http.MethodPost, "/api/admin/v1/orders/" + s.order.ID.String() + "/packaging/verify", admin, "", http.StatusOK, enums.FulfilmentStatusPackagingSubmitted},
		{http.MethodPost, base + "/packaging/verify", seller, "", http.StatusOK, enums.FulfilmentStatusPackagingVerified},
		{http.MethodPost, base + "/label", seller, "", http.StatusCreated, enums.FulfilmentStatusLabelCreated},
		{http.MethodPost, base + "/ship", seller, "", http.StatusOK, enums.FulfilmentStatusShipped},
		{http.MethodPost, base + "/confirm-receipt", seller, "", http.StatusForbidden, ""},
		{http.MethodPost, base + "/confirm-receipt", buyer, "", http.StatusOK, enums.FulfilmentStatusCompleted},
	}
	for i, step := range steps {
		rec := s.do(step.method, step.path, step.auth, step.body)
		if rec.Code != step.status {
			t.Fatalf("step %d %s: expected %d got %d (%s)", i, step.path, step.status, rec.Code, rec.Body.String())
		}
		if step.want == "" {
			continue
		}
		if got := fulfilmentStatus(t, rec); got != step.want {
			t.Fatalf("step %d %s: expected %s got %s", i, step.path, step.want, got)
		}
	}
}

func TestReplayedLabelRequestReturnsStoredResponse(t *testing.T) {
	s := newTestServer(t)
	base := "/api/v1/orders/" + s.order.ID.String()
	seller := s.token(t, s.order.SellerID, enums.MemberRoleUser)

	for _, step := range []struct{ path, body string }{
		{base + "/packaging/choice", `{"choice":"SELLER_PACKS"}`},
		{base + "/packaging/verify", ""},
	} {
		if rec := s.do(http.MethodPost, step.path, seller, step.body); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", step.path, rec.Code)
		}
	}

	key := uuid.NewString()
	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, base+"/label", nil)
		req.Header.Set("Authorization", seller)
		req.Header.Set("Idempotency-Key", key)
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		return rec
	}
	first := send()
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", first.Code, first.Body.String())
	}
	second := send()
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201 got %d", second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replayed body differs")
	}
}
