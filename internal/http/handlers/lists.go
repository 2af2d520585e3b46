package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wardbook/portalsync/internal/listview"
	"github.com/wardbook/portalsync/internal/portalapi"
	"github.com/wardbook/portalsync/internal/records"
	"github.com/wardbook/portalsync/pkg/logging"
)

const dateLayout = "2006-01-02"

// ListsHandler serves the normalized admission/appointment view models and
// proxies mutations through the refresh protocol.
type ListsHandler struct {
	client           *portalapi.Client
	admissions       *listview.Container
	admissionsLatest *listview.Container
	appointments     *listview.Container
	logger           *logging.Logger
}

// NewListsHandler wires the three list containers behind the feed.
func NewListsHandler(client *portalapi.Client, admissions, admissionsLatest, appointments *listview.Container, logger *logging.Logger) *ListsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ListsHandler{
		client:           client,
		admissions:       admissions,
		admissionsLatest: admissionsLatest,
		appointments:     appointments,
		logger:           logger,
	}
}

// ListResponse is the payload a dashboard table renders.
type ListResponse struct {
	Rows          []records.Row `json:"rows"`
	Count         int           `json:"count"`
	RefreshSignal int64         `json:"refresh_signal"`
	Error         string        `json:"error,omitempty"`
}

// ListAdmissions handles GET /api/admissions. Query params: tab, q, from,
// to, latest.
func (h *ListsHandler) ListAdmissions(w http.ResponseWriter, r *http.Request) {
	container := h.admissions
	if r.URL.Query().Get("latest") == "1" || r.URL.Query().Get("latest") == "true" {
		container = h.admissionsLatest
	}
	h.serveList(w, r, container)
}

// ListAppointments handles GET /api/appointments.
func (h *ListsHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	h.serveList(w, r, h.appointments)
}

func (h *ListsHandler) serveList(w http.ResponseWriter, r *http.Request, container *listview.Container) {
	q := r.URL.Query()

	// Filters are scoped to this request; the container's own state serves
	// the refresh protocol, not per-request rendering.
	from, _ := parseDate(q.Get("from"))
	to, _ := parseDate(q.Get("to"))
	snap, err := container.Query(r.Context(), from, to, parseTab(q.Get("tab")), q.Get("q"))
	if err != nil {
		h.logger.Warn("list fetch failed, serving last good view model", "error", err)
	}

	resp := ListResponse{
		Rows:          snap.Rows,
		Count:         len(snap.Rows),
		RefreshSignal: snap.RefreshSignal,
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	if resp.Rows == nil {
		resp.Rows = []records.Row{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// CreateAdmission handles POST /api/admissions.
func (h *ListsHandler) CreateAdmission(w http.ResponseWriter, r *http.Request) {
	var req portalapi.CreateAdmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var created *portalapi.CreatedRecord
	mutator := listview.NewMutator(h.admissionsDone, h.logger)
	err := mutator.Do(r.Context(), func(ctx context.Context) error {
		var opErr error
		created, opErr = h.client.CreateAdmission(ctx, req)
		return opErr
	})
	if err != nil {
		h.writeMutationError(w, "create admission", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// UpdateAdmission handles PUT /api/admissions/{id}.
func (h *ListsHandler) UpdateAdmission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing admission id", http.StatusBadRequest)
		return
	}
	var req portalapi.UpdateAdmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	mutator := listview.NewMutator(h.admissionsDone, h.logger)
	err := mutator.Do(r.Context(), func(ctx context.Context) error {
		return h.client.UpdateAdmission(ctx, id, req)
	})
	if err != nil {
		h.writeMutationError(w, "update admission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DischargeAdmission handles PUT /api/admissions/{id}/discharge.
func (h *ListsHandler) DischargeAdmission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing admission id", http.StatusBadRequest)
		return
	}

	mutator := listview.NewMutator(h.admissionsDone, h.logger)
	err := mutator.Do(r.Context(), func(ctx context.Context) error {
		return h.client.DischargeAdmission(ctx, id, time.Now().UTC())
	})
	if err != nil {
		h.writeMutationError(w, "discharge admission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAdmission handles DELETE /api/admissions/{id}.
func (h *ListsHandler) DeleteAdmission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing admission id", http.StatusBadRequest)
		return
	}

	mutator := listview.NewMutator(h.admissionsDone, h.logger)
	err := mutator.Do(r.Context(), func(ctx context.Context) error {
		return h.client.DeleteAdmission(ctx, id)
	})
	if err != nil {
		h.writeMutationError(w, "delete admission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateAppointment handles POST /api/appointments.
func (h *ListsHandler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req portalapi.CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var created *portalapi.CreatedRecord
	mutator := listview.NewMutator(h.appointments.OnMutationDone, h.logger)
	err := mutator.Do(r.Context(), func(ctx context.Context) error {
		var opErr error
		created, opErr = h.client.CreateAppointment(ctx, req)
		return opErr
	})
	if err != nil {
		h.writeMutationError(w, "create appointment", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// DeleteAppointment handles DELETE /api/appointments/{id}.
func (h *ListsHandler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing appointment id", http.StatusBadRequest)
		return
	}

	mutator := listview.NewMutator(h.appointments.OnMutationDone, h.logger)
	err := mutator.Do(r.Context(), func(ctx context.Context) error {
		return h.client.DeleteAppointment(ctx, id)
	})
	if err != nil {
		h.writeMutationError(w, "delete appointment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// admissionsDone refreshes both admission views after a successful write.
func (h *ListsHandler) admissionsDone(ctx context.Context) {
	h.admissions.OnMutationDone(ctx)
	h.admissionsLatest.OnMutationDone(ctx)
}

func (h *ListsHandler) writeMutationError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("mutation rejected", "op", op, "error", err)
	var se *portalapi.StatusError
	if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
		http.Error(w, se.Body, se.Code)
		return
	}
	http.Error(w, "portal write failed", http.StatusBadGateway)
}

func parseTab(raw string) records.Tab {
	switch raw {
	case "open", "checkin":
		return records.TabOpen
	case "closed", "checkout":
		return records.TabClosed
	default:
		return records.TabAll
	}
}

func parseDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	at, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}
