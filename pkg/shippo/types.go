package shippo

import (
	"encoding/json"
	"strings"
)

type Address struct {
	Name    string `json:"name"`
	Street1 string `json:"street1"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Email   string `json:"email,omitempty"`
}

// Parcel dimensions are sent as decimal strings, the way Shippo expects them.
type Parcel struct {
	Length       string `json:"length"`
	Width        string `json:"width"`
	Height       string `json:"height"`
	DistanceUnit string `json:"distance_unit"`
	Weight       string `json:"weight"`
	MassUnit     string `json:"mass_unit"`
}

type ShipmentRequest struct {
	From   Address
	To     Address
	Parcel Parcel
}

type shipmentPayload struct {
	AddressFrom Address  `json:"address_from"`
	AddressTo   Address  `json:"address_to"`
	Parcels     []Parcel `json:"parcels"`
	Async       bool     `json:"async"`
}

type ServiceLevel struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

type Rate struct {
	ObjectID     string       `json:"object_id"`
	Amount       string       `json:"amount"`
	Currency     string       `json:"currency"`
	Provider     string       `json:"provider"`
	ServiceLevel ServiceLevel `json:"servicelevel"`
}

type Shipment struct {
	ObjectID string `json:"object_id"`
	Status   string `json:"status"`
	Rates    []Rate `json:"rates"`
}

type transactionPayload struct {
	Rate          string `json:"rate"`
	LabelFileType string `json:"label_file_type,omitempty"`
	Async         bool   `json:"async"`
}

type Message struct {
	Source string `json:"source"`
	Code   string `json:"code"`
	Text   string `json:"text"`
}

type Transaction struct {
	ObjectID       string    `json:"object_id"`
	Status         string    `json:"status"`
	TrackingNumber string    `json:"tracking_number"`
	LabelURL       string    `json:"label_url"`
	QRCodeURL      string    `json:"qr_code_url"`
	Messages       []Message `json:"messages"`
}

func (t *Transaction) messageText() string {
	parts := make([]string, 0, len(t.Messages))
	for _, m := range t.Messages {
		if m.Text != "" {
			parts = append(parts, m.Text)
		}
	}
	if len(parts) == 0 {
		return "no details"
	}
	return strings.Join(parts, "; ")
}

// TrackEvent is the body Shippo posts for track_updated webhooks.
type TrackEvent struct {
	Event string    `json:"event"`
	Test  bool      `json:"test"`
	Data  TrackData `json:"data"`
}

type TrackData struct {
	TrackingNumber string         `json:"tracking_number"`
	Carrier        string         `json:"carrier"`
	Transaction    string         `json:"transaction"`
	TrackingStatus TrackingStatus `json:"tracking_status"`
}

type TrackingStatus struct {
	ObjectID      string `json:"object_id"`
	Status        string `json:"status"`
	StatusDetails string `json:"status_details"`
	StatusDate    string `json:"status_date"`
}

// ParseTrackEvent decodes a webhook body.
func ParseTrackEvent(body []byte) (TrackEvent, error) {
	var evt TrackEvent
	err := json.Unmarshal(body, &evt)
	return evt, err
}

// EventID derives a stable id for de-duplicating redelivered webhooks.
func (e TrackEvent) EventID() string {
	ref := e.Data.Transaction
	if ref == "" {
		ref = e.Data.TrackingNumber
	}
	if e.Data.TrackingStatus.ObjectID != "" {
		return ref + ":" + e.Data.TrackingStatus.ObjectID
	}
	return ref + ":" + e.Data.TrackingStatus.Status + ":" + e.Data.TrackingStatus.StatusDate
}
