package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorIncludesInternal(t *testing.T) {
	err := Wrap(stdErrors.New("boom"), "failed")
	require.Equal(t, "failed: boom", err.Error())
	require.Equal(t, http.StatusInternalServerError, err.StatusCode)
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", http.StatusBadRequest)
	with := base.WithInternal(stdErrors.New("oops"))

	require.NotSame(t, base, with)
	require.Nil(t, base.Internal)
	require.NotNil(t, with.Internal)
}

func TestWithDetailsCopies(t *testing.T) {
	with := ErrBadRequest.WithDetails([]string{"category"})
	require.Nil(t, ErrBadRequest.Details)
	require.Equal(t, []string{"category"}, with.Details)
	require.Equal(t, ErrBadRequest.Code, with.Code)
}

func TestFromError(t *testing.T) {
	require.Same(t, ErrNotFound, FromError(ErrNotFound))

	wrapped := fmt.Errorf("lookup: %w", ErrNotFound)
	require.Same(t, ErrNotFound, FromError(wrapped))

	out := FromError(stdErrors.New("raw"))
	require.Equal(t, ErrInternalServer.Code, out.Code)
	require.NotNil(t, out.Internal)

	require.Nil(t, FromError(nil))
}

func TestConstructors(t *testing.T) {
	bad := NewBadRequest("invalid payload")
	require.Equal(t, ErrBadRequest.Code, bad.Code)
	require.Equal(t, "invalid payload", bad.Message)
	require.Equal(t, http.StatusBadRequest, bad.StatusCode)

	missing := NewNotFound("warning")
	require.Equal(t, "warning not found", missing.Message)
	require.Equal(t, http.StatusNotFound, missing.StatusCode)
}
