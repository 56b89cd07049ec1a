package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	type body struct {
		Files []string `json:"files"`
	}

	t.Run("valid", func(t *testing.T) {
		var b body
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"files":["a.yaml"]}`))
		require.NoError(t, ParseJSON(r, &b))
		assert.Equal(t, []string{"a.yaml"}, b.Files)
	})

	t.Run("empty body", func(t *testing.T) {
		var b body
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		assert.NoError(t, ParseJSON(r, &b))
	})

	t.Run("unknown field", func(t *testing.T) {
		var b body
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"paths":[]}`))
		assert.Error(t, ParseJSON(r, &b))
	})

	t.Run("error reply", func(t *testing.T) {
		var b body
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"files":`))
		assert.False(t, ParseJSONOrError(w, r, &b))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestParsePathString(t *testing.T) {
	r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"guid": "2O2Fr$t4X7Zf8NOew3FLOH"})
	got, err := ParsePathString(r, "guid")
	require.NoError(t, err)
	assert.Equal(t, "2O2Fr$t4X7Zf8NOew3FLOH", got)

	_, err = ParsePathString(r, "file")
	assert.EqualError(t, err, "missing path parameter: file")
}

func TestParseQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=20&project=Neubau&date=2024-03-01&bad=x&day=03/01/2024", nil)

	n, err := ParseQueryInt(r, "limit", 5)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	n, err = ParseQueryInt(r, "offset", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	_, err = ParseQueryInt(r, "bad", 5)
	assert.Error(t, err)

	assert.Equal(t, "Neubau", ParseQueryString(r, "project", ""))
	assert.Equal(t, "fallback", ParseQueryString(r, "file", "fallback"))

	date, err := ParseQueryDate(r, "date", "2006-01-02")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", date)
	_, err = ParseQueryDate(r, "day", "2006-01-02")
	assert.Error(t, err)
	date, err = ParseQueryDate(r, "missing", "2006-01-02")
	require.NoError(t, err)
	assert.Empty(t, date)
}

func TestPage(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
		wantErr    bool
	}{
		{"", 100, 0, false},
		{"limit=10&offset=30", 10, 30, false},
		{"limit=5000", 1000, 0, false},
		{"limit=-1", 0, 0, true},
		{"offset=abc", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			limit, offset, err := Page(r, 100, 1000)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}
