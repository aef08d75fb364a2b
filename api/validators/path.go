package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/teevo/fulfilment-backend/pkg/errors"
)

// PathUUID reads a UUID route parameter.
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+name).
			WithDetails(map[string]any{"field": name})
	}
	return id, nil
}

// PathString reads a required, non-blank route parameter.
func PathString(r *http.Request, name string, maxLen int) (string, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" || (maxLen > 0 && len(raw) > maxLen) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid "+name).
			WithDetails(map[string]any{"field": name})
	}
	return raw, nil
}
