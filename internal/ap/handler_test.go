package ap

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(f fixture) http.Handler {
	r := chi.NewRouter()
	r.Route("/companies/{companyID}/ap", NewHandler(slog.Default(), f.svc).MountRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerBillLifecycle(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f)
	base := "/companies/" + f.company.String() + "/ap"

	rec := do(t, h, http.MethodPost, base+"/bills/", `{"vendor_id":"`+f.vendor.String()+`","doc_date":"2024-03-01","due_date":"2024-03-31","total_amount":"120.50"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var bill Bill
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bill))
	assert.Equal(t, "120.5", bill.TotalAmount.String())

	rec = do(t, h, http.MethodPost, base+"/bills/"+bill.ID.String()+"/post", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first PostResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.False(t, first.AlreadyPosted)

	rec = do(t, h, http.MethodPost, base+"/bills/"+bill.ID.String()+"/post", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var second PostResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.True(t, second.AlreadyPosted)
	assert.Equal(t, first.JournalEntryID, second.JournalEntryID)

	rec = do(t, h, http.MethodGet, base+"/bills/?status=APPROVED", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), bill.ID.String())
}

func TestHandlerErrors(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f)
	base := "/companies/" + f.company.String() + "/ap"

	cases := []struct {
		name, method, path, body string
		want                     int
	}{
		{"bad company", http.MethodGet, "/companies/nope/ap/bills/", "", http.StatusBadRequest},
		{"bad date", http.MethodPost, base + "/bills/", `{"vendor_id":"` + f.vendor.String() + `","doc_date":"03/01/2024","due_date":"2024-03-31","total_amount":"1"}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, base + "/payments/", `{"amount":"1","extra":true}`, http.StatusBadRequest},
		{"float noise", http.MethodPost, base + "/payments/", `{"vendor_id":"` + f.vendor.String() + `","doc_date":"2024-03-01","amount":"0.105"}`, http.StatusBadRequest},
		{"missing bill", http.MethodGet, base + "/bills/" + f.vendor.String(), "", http.StatusNotFound},
		{"bad status", http.MethodGet, base + "/bills/?status=OPEN", "", http.StatusBadRequest},
		{"bad limit", http.MethodGet, base + "/payments/?limit=many", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}
