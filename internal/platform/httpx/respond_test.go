package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("invoice 1: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("code 1000: %w", ErrDuplicate), http.StatusConflict},
		{fmt.Errorf("%w: amount", ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: no AR account", ErrUnprocessable), http.StatusUnprocessableEntity},
		{fmt.Errorf("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, tc.status, StatusFor(tc.err))
		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tc.status, body.Status)
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("password=secret"))
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","extra":1}`))
	var target struct {
		Name string `json:"name"`
	}
	err := DecodeJSON(req, &target)
	require.ErrorIs(t, err, ErrValidation)
}

func TestURLParamUUID(t *testing.T) {
	r := chi.NewRouter()
	var gotErr error
	r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
		_, gotErr = URLParamUUID(req, "id")
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/not-a-uuid", nil))
	require.ErrorIs(t, gotErr, ErrValidation)
}

func TestQueryDate(t *testing.T) {
	fallback := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	req := httptest.NewRequest(http.MethodGet, "/?as_of=2024-03-31", nil)
	d, err := QueryDate(req, "as_of", fallback)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-31", d.Format(time.DateOnly))

	d, err = QueryDate(req, "from", fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, d)

	_, err = QueryDate(httptest.NewRequest(http.MethodGet, "/?as_of=31/03/2024", nil), "as_of", fallback)
	require.ErrorIs(t, err, ErrValidation)
}
