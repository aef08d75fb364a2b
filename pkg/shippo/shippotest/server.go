// Package shippotest runs an in-process Shippo API for label flow tests.
package shippotest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teevo/fulfilment-backend/pkg/config"
	"github.com/teevo/fulfilment-backend/pkg/shippo"
)

// Server records shipment and transaction calls and answers with canned data.
type Server struct {
	mu             sync.Mutex
	rates          []shippo.Rate
	purchaseStatus string
	shipments      []json.RawMessage
	purchasedRates []string

	srv *httptest.Server
}

// DefaultRates offers two allowed services and one premium service.
func DefaultRates() []shippo.Rate {
	return []shippo.Rate{
		{ObjectID: "rate_dhl", Amount: "2.10", Currency: "GBP", Provider: "DHL", ServiceLevel: shippo.ServiceLevel{Name: "Express", Token: "dhl_express_worldwide"}},
		{ObjectID: "rate_rm48", Amount: "3.35", Currency: "GBP", Provider: "Royal Mail", ServiceLevel: shippo.ServiceLevel{Name: "Tracked 48", Token: "royal_mail_tracked_48"}},
		{ObjectID: "rate_evri", Amount: "3.99", Currency: "GBP", Provider: "Evri", ServiceLevel: shippo.ServiceLevel{Name: "Standard", Token: "evri_standard"}},
	}
}

func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{rates: DefaultRates(), purchaseStatus: "SUCCESS"}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /shipments", s.createShipment)
	mux.HandleFunc("POST /transactions", s.createTransaction)
	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

// Client returns a shippo client pointed at the server.
func (s *Server) Client(t testing.TB) *shippo.Client {
	t.Helper()
	client, err := shippo.NewClient(config.ShippoConfig{
		APIToken:      "shippo_test_token",
		BaseURL:       s.srv.URL,
		Timeout:       2 * time.Second,
		LabelFileType: "PDF_A4",
	})
	require.NoError(t, err)
	return client
}

func (s *Server) SetRates(rates []shippo.Rate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates = rates
}

// SetPurchaseStatus changes the status reported for label purchases.
func (s *Server) SetPurchaseStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purchaseStatus = status
}

// Shipments returns the raw shipment request bodies received.
func (s *Server) Shipments() []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]json.RawMessage(nil), s.shipments...)
}

// PurchasedRates returns the rate ids of every purchase attempt.
func (s *Server) PurchasedRates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.purchasedRates...)
}

// Calls is the total number of requests the server answered.
func (s *Server) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shipments) + len(s.purchasedRates)
}

func (s *Server) createShipment(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.shipments = append(s.shipments, body)
	rates := s.rates
	s.mu.Unlock()

	writeJSON(w, shippo.Shipment{ObjectID: "shp_test", Status: "SUCCESS", Rates: rates})
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rate string `json:"rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.purchasedRates = append(s.purchasedRates, body.Rate)
	status := s.purchaseStatus
	n := len(s.purchasedRates)
	s.mu.Unlock()

	if status != "SUCCESS" {
		writeJSON(w, shippo.Transaction{
			ObjectID: "txn_failed",
			Status:   status,
			Messages: []shippo.Message{{Source: "carrier", Text: "address could not be validated"}},
		})
		return
	}
	id := "txn_" + body.Rate + "_" + strconv.Itoa(n)
	writeJSON(w, shippo.Transaction{
		ObjectID:       id,
		Status:         "SUCCESS",
		TrackingNumber: "TRK" + id,
		LabelURL:       "https://shippo-delivery.test/" + id + ".pdf",
		QRCodeURL:      "https://shippo-delivery.test/" + id + ".png",
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
