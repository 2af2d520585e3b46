package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardbook/portalsync/internal/listview"
	"github.com/wardbook/portalsync/internal/portalapi"
)

// fakePortal is an in-memory stand-in for the remote hospital portal.
type fakePortal struct {
	mu         sync.Mutex
	patients   []portalapi.Patient
	failWrites int // HTTP status to reject writes with; 0 accepts
	listCalls  int
	listQuery  string
}

func (f *fakePortal) lastListQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listQuery
}

func (f *fakePortal) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := chi.NewRouter()
	mux.Get("/patients/admissions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.listCalls++
		f.listQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(f.patients)
	})
	mux.Get("/patients/appointments", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(f.patients)
	})
	mux.Post("/admissions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failWrites != 0 {
			http.Error(w, "ward is full", f.failWrites)
			return
		}
		var req portalapi.CreateAdmissionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.patients = append(f.patients, portalapi.Patient{
			ID:   req.PatientID,
			Name: "New Patient",
			CheckApps: []portalapi.SubRecord{
				{ID: "adm-new", Ward: req.Ward, PubDate: "2024-03-10T00:00:00Z"},
			},
		})
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(portalapi.CreatedRecord{ID: "adm-new"})
	})
	mux.Put("/admissions/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failWrites != 0 {
			http.Error(w, "record locked", f.failWrites)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.Delete("/admissions/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failWrites != 0 {
			http.Error(w, "record locked", f.failWrites)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func annPortal() *fakePortal {
	return &fakePortal{patients: []portalapi.Patient{
		{
			ID:   "p1",
			Name: "Ann",
			CheckApps: []portalapi.SubRecord{
				{ID: "a1", Ward: "ICU", PubDate: "2024-03-01T00:00:00Z"},
				{ID: "a2", Ward: "Ward 2", PubDate: "2024-02-01T00:00:00Z", CheckoutDate: "2024-02-05T00:00:00Z"},
			},
		},
	}}
}

func newTestHandler(t *testing.T, portal *fakePortal) (*ListsHandler, *listview.Container) {
	t.Helper()
	srv := portal.server(t)
	client := portalapi.NewClient(srv.URL, "tok", 0, nil)
	admissions := listview.NewContainer("admissions", client.ListAdmissions, false, nil, nil)
	admissionsLatest := listview.NewContainer("admissions_latest", client.ListAdmissions, true, nil, nil)
	appointments := listview.NewContainer("appointments", client.ListAppointments, false, nil, nil)
	t.Cleanup(func() {
		admissions.Close()
		admissionsLatest.Close()
		appointments.Close()
	})
	return NewListsHandler(client, admissions, admissionsLatest, appointments, nil), admissions
}

func doRequest(t *testing.T, h http.HandlerFunc, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) ListResponse {
	t.Helper()
	var resp ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestListAdmissions(t *testing.T) {
	h, _ := newTestHandler(t, annPortal())

	rec := doRequest(t, h.ListAdmissions, http.MethodGet, "/api/admissions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeList(t, rec)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "a1", resp.Rows[0].ID, "newest first")
	assert.Equal(t, "open", string(resp.Rows[0].Status))
	assert.Equal(t, "closed", string(resp.Rows[1].Status))
}

func TestListAdmissionsTabAndQuery(t *testing.T) {
	h, _ := newTestHandler(t, annPortal())

	rec := doRequest(t, h.ListAdmissions, http.MethodGet, "/api/admissions?tab=checkin", "")
	resp := decodeList(t, rec)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "a1", resp.Rows[0].ID)

	rec = doRequest(t, h.ListAdmissions, http.MethodGet, "/api/admissions?tab=closed&q=ward+2", "")
	resp = decodeList(t, rec)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "a2", resp.Rows[0].ID)

	rec = doRequest(t, h.ListAdmissions, http.MethodGet, "/api/admissions?q=pharmacy", "")
	resp = decodeList(t, rec)
	assert.Equal(t, 0, resp.Count)
	assert.NotNil(t, resp.Rows)
}

func TestWindowedRequestDoesNotLeakIntoLaterRequests(t *testing.T) {
	portal := annPortal()
	h, _ := newTestHandler(t, portal)

	rec := doRequest(t, h.ListAdmissions, http.MethodGet, "/api/admissions?from=2024-02-01&to=2024-02-02", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "from=2024-02-01&to=2024-02-02", portal.lastListQuery())

	rec = doRequest(t, h.ListAdmissions, http.MethodGet, "/api/admissions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, portal.lastListQuery(), "one request's window must not stick to the next")
}

func TestRequestFiltersDoNotPersistOnContainer(t *testing.T) {
	h, admissions := newTestHandler(t, annPortal())

	rec := doRequest(t, h.ListAdmissions, http.MethodGet, "/api/admissions?tab=open&q=icu", "")
	resp := decodeList(t, rec)
	require.Equal(t, 1, resp.Count)

	snap := admissions.Snapshot()
	assert.Len(t, snap.Rows, 2, "container view model keeps its own filters")
}

func TestListAdmissionsLatestPerPatient(t *testing.T) {
	h, _ := newTestHandler(t, annPortal())

	rec := doRequest(t, h.ListAdmissions, http.MethodGet, "/api/admissions?latest=1", "")
	resp := decodeList(t, rec)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "a1", resp.Rows[0].ID)
}

func TestCreateAdmissionBumpsSignalAndRefetches(t *testing.T) {
	portal := annPortal()
	h, admissions := newTestHandler(t, portal)

	require.NoError(t, admissions.Refresh(context.Background()))
	require.Equal(t, int64(0), admissions.RefreshSignal())

	rec := doRequest(t, h.CreateAdmission, http.MethodPost, "/api/admissions",
		`{"patient_id":"p2","ward":"Ward 3"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created portalapi.CreatedRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "adm-new", created.ID)

	assert.Equal(t, int64(1), admissions.RefreshSignal())
	snap := admissions.Snapshot()
	assert.Len(t, snap.Rows, 3, "post-mutation refetch picked up the new admission")
}

func TestCreateAdmissionFailureLeavesSignalUntouched(t *testing.T) {
	portal := annPortal()
	portal.failWrites = http.StatusConflict
	h, admissions := newTestHandler(t, portal)

	require.NoError(t, admissions.Refresh(context.Background()))

	rec := doRequest(t, h.CreateAdmission, http.MethodPost, "/api/admissions",
		`{"patient_id":"p2","ward":"Ward 3"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "ward is full")

	assert.Equal(t, int64(0), admissions.RefreshSignal())
	assert.Len(t, admissions.Snapshot().Rows, 2, "last good view model untouched")
}

func TestCreateAdmissionInvalidBody(t *testing.T) {
	h, admissions := newTestHandler(t, annPortal())

	rec := doRequest(t, h.CreateAdmission, http.MethodPost, "/api/admissions", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int64(0), admissions.RefreshSignal())
}

func TestUpdateAdmission(t *testing.T) {
	h, admissions := newTestHandler(t, annPortal())
	require.NoError(t, admissions.Refresh(context.Background()))

	req := httptest.NewRequest(http.MethodPut, "/api/admissions/a1", strings.NewReader(`{"ward":"Ward 5"}`))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "a1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	h.UpdateAdmission(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(1), admissions.RefreshSignal())
}

func TestDeleteAdmission(t *testing.T) {
	h, admissions := newTestHandler(t, annPortal())
	require.NoError(t, admissions.Refresh(context.Background()))

	req := httptest.NewRequest(http.MethodDelete, "/api/admissions/a1", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "a1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	h.DeleteAdmission(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(1), admissions.RefreshSignal())
}

func TestListServesLastGoodRowsWhenPortalDown(t *testing.T) {
	portal := annPortal()
	srv := portal.server(t)
	client := portalapi.NewClient(srv.URL, "tok", 0, nil)
	admissions := listview.NewContainer("admissions", client.ListAdmissions, false, nil, nil)
	h := NewListsHandler(client, admissions, admissions, admissions, nil)

	require.NoError(t, admissions.Refresh(context.Background()))
	srv.Close()

	rec := doRequest(t, h.ListAdmissions, http.MethodGet, "/api/admissions", "")
	resp := decodeList(t, rec)
	assert.Equal(t, 2, resp.Count, "stale-but-valid data preferred over a blank screen")
	assert.NotEmpty(t, resp.Error)
}
