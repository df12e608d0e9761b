package errors

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteError_OnlyMessageIsSerialized(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, ErrTokenInvalid.WithCause(stderrors.New("issuer_mismatch: got evil")))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	require.JSONEq(t, `{"error":"invalid token"}`, rr.Body.String())
}

func TestWriteError_UnknownErrorIs500(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, stderrors.New("db exploded"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.JSONEq(t, `{"error":"internal server error"}`, rr.Body.String())
}

func TestWithCause_DoesNotMutateBase(t *testing.T) {
	cause := stderrors.New("x")
	e := ErrBadRequest.WithCause(cause)
	require.Nil(t, ErrBadRequest.Err)
	require.ErrorIs(t, e, cause)
}

func TestNewAndWrap(t *testing.T) {
	e := New(http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "unsupported")
	require.Equal(t, "[UNSUPPORTED_MEDIA_TYPE] unsupported", e.Error())
	require.Nil(t, e.Unwrap())

	cause := stderrors.New("bad hex")
	w := Wrap(cause, http.StatusBadRequest, "INVALID_PROOF", "invalid proof")
	require.ErrorIs(t, w, cause)

	rr := httptest.NewRecorder()
	WriteError(rr, w)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.JSONEq(t, `{"error":"invalid proof"}`, rr.Body.String())
}
