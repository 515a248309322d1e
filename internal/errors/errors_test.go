package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basket-insights/internal/observability"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAppError_StatusCodes(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{BadRequest("bad"), http.StatusBadRequest},
		{Validation("invalid"), http.StatusBadRequest},
		{NotFound("missing"), http.StatusNotFound},
		{RateLimit("slow down"), http.StatusTooManyRequests},
		{ServiceUnavailable("loading"), http.StatusServiceUnavailable},
		{Internal("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode)
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := InternalWrap(cause, "could not save")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, "INTERNAL_ERROR: bad", Internal("bad").Error())
}

func TestWriteError(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/rules?limit=0", nil)
	r = r.WithContext(observability.WithRequestID(r.Context(), "req-42"))
	w := httptest.NewRecorder()

	appErr := BadRequest("limit must be a positive integer").WithDetails("got %q", "0")
	WriteError(w, r, discard(), fmt.Errorf("handler: %w", appErr))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp struct {
		Error   AppError `json:"error"`
		Success bool     `json:"success"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, CodeBadRequest, resp.Error.Code)
	assert.Equal(t, `got "0"`, resp.Error.Details)
	assert.Equal(t, "req-42", resp.Error.RequestID)
}

func TestWriteError_PlainError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, httptest.NewRequest(http.MethodGet, "/", nil), discard(), stderrors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
	assert.NotContains(t, w.Body.String(), "boom", "causes are not leaked")
}

func TestWriteSuccessWithHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessWithHeaders(w, []int{1, 2}, map[string]string{"Cache-Control": "max-age=60"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "max-age=60", w.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"data":[1,2],"success":true}`, w.Body.String())
}
