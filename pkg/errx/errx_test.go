package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_NewCarriesDefinition(t *testing.T) {
	reg := NewRegistry("TEST")
	code := reg.Register("MISSING", TypeNotFound, http.StatusNotFound, "thing not found")

	err := reg.New(code)
	assert.Equal(t, "TEST_MISSING", err.Code)
	assert.Equal(t, TypeNotFound, err.Type)
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus)
	assert.Equal(t, "thing not found", err.Message)
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	reg := NewRegistry("TEST")
	reg.Register("X", TypeInternal, http.StatusInternalServerError, "x")
	assert.Panics(t, func() {
		reg.Register("X", TypeInternal, http.StatusInternalServerError, "x")
	})
}

func TestErrorsIs_MatchesByCode(t *testing.T) {
	reg := NewRegistry("TEST")
	code := reg.Register("DUP", TypeConflict, http.StatusConflict, "duplicate")

	wrapped := fmt.Errorf("insert: %w", reg.NewWithCause(code, errors.New("pq: 23505")))
	assert.True(t, errors.Is(wrapped, reg.New(code)))
	assert.True(t, IsType(wrapped, TypeConflict))
	assert.False(t, IsType(wrapped, TypeNotFound))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "nothing", TypeInternal))

	cause := errors.New("connection refused")
	err := Wrap(cause, "failed to read", TypeExternal).WithDetail("conversation_id", "c1")
	require.NotNil(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusBadGateway, err.HTTPStatus)
	assert.Equal(t, "c1", err.Details["conversation_id"])
	assert.Contains(t, err.Error(), "connection refused")
}
