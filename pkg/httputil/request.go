package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

// ParseJSON decodes the request body into dest. Unknown fields are rejected
// and an empty body leaves dest untouched.
func ParseJSON(r *http.Request, dest any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes a 400 reply on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// ParsePathString extracts a path parameter
func ParsePathString(r *http.Request, key string) (string, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return "", fmt.Errorf("missing path parameter: %s", key)
	}
	return str, nil
}

// ParseQueryInt extracts an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryString extracts a string query parameter
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	if val := r.URL.Query().Get(key); val != "" {
		return val
	}
	return defaultVal
}

// ParseQueryDate extracts a query parameter in layout. The result is the
// parameter as given so it can be compared with stored dates.
func ParseQueryDate(r *http.Request, key, layout string) (string, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return "", nil
	}
	if _, err := time.Parse(layout, str); err != nil {
		return "", fmt.Errorf("invalid date for query param %s: %s", key, str)
	}
	return str, nil
}

// Page reads limit and offset. limit defaults to defaultLimit and is capped
// at maxLimit.
func Page(r *http.Request, defaultLimit, maxLimit int) (limit, offset int, err error) {
	if limit, err = ParseQueryInt(r, "limit", defaultLimit); err != nil {
		return 0, 0, err
	}
	if offset, err = ParseQueryInt(r, "offset", 0); err != nil {
		return 0, 0, err
	}
	if limit < 0 || offset < 0 {
		return 0, 0, errors.New("limit and offset must not be negative")
	}
	if limit == 0 || limit > maxLimit {
		limit = maxLimit
	}
	return limit, offset, nil
}
