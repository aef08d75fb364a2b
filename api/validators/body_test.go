package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/teevo/fulfilment-backend/pkg/errors"
)

type rejectRequest struct {
	Notes string `json:"notes" validate:"required,max=2000"`
}

func TestDecodeJSONBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{"valid", `{"notes":"wrap the grip"}`, true},
		{"missing field", `{}`, false},
		{"unknown field", `{"notes":"x","extra":1}`, false},
		{"trailing object", `{"notes":"x"}{"notes":"y"}`, false},
		{"not json", `notes=x`, false},
		{"empty", ``, false},
		{"oversized", `{"notes":"` + strings.Repeat("a", MaxBodyBytes) + `"}`, false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
		var dest rejectRequest
		err := DecodeJSONBody(req, &dest)
		if tt.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tt.name, err)
		}
		if !tt.ok && !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error got %v", tt.name, err)
		}
	}
}

func TestValidationDetailsUseJSONNames(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"notes":""}`))
	var dest rejectRequest
	err := DecodeJSONBody(req, &dest)
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok || details["notes"] != "is required" {
		t.Fatalf("unexpected details %#v", typed.Details())
	}
}
