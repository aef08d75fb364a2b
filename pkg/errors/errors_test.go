package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized},
		{code: CodeForbidden, status: http.StatusForbidden},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodeConflict, status: http.StatusConflict, retryable: true},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, detailsOK: true},
		{code: CodeDataIntegrity, status: http.StatusUnprocessableEntity, detailsOK: true},
		{code: CodeProviderRejected, status: http.StatusBadGateway, detailsOK: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true, detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			meta := MetadataFor(tt.code)
			assert.Equal(t, tt.status, meta.HTTPStatus)
			assert.Equal(t, tt.retryable, meta.Retryable)
			assert.Equal(t, tt.detailsOK, meta.DetailsAllowed)
			assert.NotEmpty(t, meta.PublicMessage)
		})
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, MetadataFor("SOMETHING_UNKNOWN").HTTPStatus)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := Wrap(CodeDependency, cause, "load order")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodeDependency, err.Code())
	assert.Contains(t, err.Error(), "connection reset")
}

func TestAsFindsTypedErrorThroughFmtWrapping(t *testing.T) {
	inner := New(CodeStateConflict, "label already created")
	outer := fmt.Errorf("create label: %w", inner)

	typed := As(outer)
	require.NotNil(t, typed)
	assert.Equal(t, "label already created", typed.Message())
	assert.True(t, IsCode(outer, CodeStateConflict))
	assert.False(t, IsCode(outer, CodeNotFound))
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.True(t, Retryable(stdErrors.New("boom")))
	assert.False(t, Retryable(New(CodeValidation, "missing listing id")))
	assert.True(t, Retryable(New(CodeConflict, "version moved")))
}

func TestDumpCollectsChain(t *testing.T) {
	err := Wrap(CodeInternal, stdErrors.New("root"), "outer")
	d := Dump(err)
	assert.Equal(t, CodeInternal, d.Code)
	assert.Len(t, d.Chain, 2)
}
