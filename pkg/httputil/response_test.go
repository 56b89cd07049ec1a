package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteJSON(w, http.StatusOK, map[string]int{"issues": 3})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"issues":3}`, w.Body.String())
}

func TestErrorReplies(t *testing.T) {
	tests := []struct {
		name    string
		write   func(w http.ResponseWriter)
		status  int
		message string
	}{
		{"error", func(w http.ResponseWriter) { WriteError(w, http.StatusBadGateway, errors.New("upstream down")) }, http.StatusBadGateway, "upstream down"},
		{"bad request", func(w http.ResponseWriter) { WriteBadRequest(w, "limit must be a number") }, http.StatusBadRequest, "limit must be a number"},
		{"not found", func(w http.ResponseWriter) { WriteNotFoundError(w, "no check run yet") }, http.StatusNotFound, "no check run yet"},
		{"conflict", func(w http.ResponseWriter) { WriteConflict(w, "a check run is already in progress") }, http.StatusConflict, "a check run is already in progress"},
		{"internal", func(w http.ResponseWriter) { WriteInternalError(w) }, http.StatusInternalServerError, "internal server error"},
		{"unavailable", func(w http.ResponseWriter) { WriteServiceUnavailable(w, "store closed") }, http.StatusServiceUnavailable, "store closed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, decodeError(t, w).Error)
		})
	}
}

func TestWriteDetailedError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteDetailedError(w, http.StatusBadRequest, errors.New("invalid filter"), map[string]string{"date": "want YYYY-MM-DD"})

	body := decodeError(t, w)
	assert.Equal(t, "invalid filter", body.Error)
	assert.Equal(t, "want YYYY-MM-DD", body.Details["date"])
}

func TestWriteAccepted(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteAccepted(w, map[string]string{"id": "run-1"}))
	assert.Equal(t, http.StatusAccepted, w.Code)
}
