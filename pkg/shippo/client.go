// Package shippo is a small REST client for the Shippo shipping API covering
// rate shopping, label purchase and tracking webhooks.
package shippo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/teevo/fulfilment-backend/pkg/config"
)

const (
	defaultBaseURL = "https://api.goshippo.com"
	defaultTimeout = 20 * time.Second

	transactionSuccess = "SUCCESS"
	maxErrorBody       = 2048
)

var errTokenRequired = errors.New("shippo api token is required")

// APIError is returned when Shippo answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shippo api error: status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the Shippo REST API.
type Client struct {
	http          *http.Client
	baseURL       string
	token         string
	labelFileType string
}

// NewClient builds a client from configuration. Every request is bounded by
// the configured timeout.
func NewClient(cfg config.ShippoConfig) (*Client, error) {
	token := strings.TrimSpace(cfg.APIToken)
	if token == "" {
		return nil, errTokenRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:          &http.Client{Timeout: timeout},
		baseURL:       baseURL,
		token:         token,
		labelFileType: cfg.LabelFileType,
	}, nil
}

// CreateShipment registers a shipment and returns the rates Shippo offers for it.
func (c *Client) CreateShipment(ctx context.Context, req ShipmentRequest) (*Shipment, error) {
	body := shipmentPayload{
		AddressFrom: req.From,
		AddressTo:   req.To,
		Parcels:     []Parcel{req.Parcel},
		Async:       false,
	}
	var out Shipment
	if err := c.post(ctx, "/shipments", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PurchaseLabel buys the label for rateID. A transaction that Shippo reports
// as anything other than SUCCESS is returned as an error.
func (c *Client) PurchaseLabel(ctx context.Context, rateID string) (*Transaction, error) {
	if strings.TrimSpace(rateID) == "" {
		return nil, errors.New("rate id is required")
	}
	body := transactionPayload{Rate: rateID, LabelFileType: c.labelFileType, Async: false}

	var out Transaction
	if err := c.post(ctx, "/transactions", body, &out); err != nil {
		return nil, err
	}
	if !strings.EqualFold(out.Status, transactionSuccess) {
		return &out, fmt.Errorf("label purchase %s: %s", strings.ToLower(out.Status), out.messageText())
	}
	if out.LabelURL == "" || out.ObjectID == "" {
		return &out, errors.New("label purchase returned no label")
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode shippo request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build shippo request: %w", err)
	}
	req.Header.Set("Authorization", "ShippoToken "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call shippo %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode shippo %s response: %w", path, err)
	}
	return nil
}
