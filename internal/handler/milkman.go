package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/kinkeeper/internal/auth"
	"github.com/dukerupert/kinkeeper/internal/events"
	"github.com/dukerupert/kinkeeper/internal/model"
	"github.com/dukerupert/kinkeeper/internal/store"
)

type MilkmanHandler struct {
	store  *store.MilkmanStore
	events *events.Fanout
	logger *slog.Logger
}

func NewMilkmanHandler(s *store.MilkmanStore, ev *events.Fanout, logger *slog.Logger) *MilkmanHandler {
	return &MilkmanHandler{store: s, events: ev, logger: logger}
}

type milkmanRequest struct {
	Name string          `json:"name"`
	Rate decimal.Decimal `json:"rate"`
}

func (h *MilkmanHandler) decode(w http.ResponseWriter, r *http.Request) (*milkmanRequest, bool) {
	var req milkmanRequest
	if !decodeJSON(w, r, &req) {
		return nil, false
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return nil, false
	}
	if !req.Rate.IsPositive() {
		writeError(w, http.StatusBadRequest, "rate must be positive")
		return nil, false
	}
	return &req, true
}

func (h *MilkmanHandler) List(w http.ResponseWriter, r *http.Request) {
	milkmen, err := h.store.List(auth.HouseholdID(r.Context()))
	if err != nil {
		h.logger.Error("list milkmen", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list milkmen")
		return
	}
	if milkmen == nil {
		milkmen = []model.Milkman{}
	}
	writeJSON(w, http.StatusOK, milkmen)
}

func (h *MilkmanHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	householdID := auth.HouseholdID(r.Context())
	m, err := h.store.Create(householdID, req.Name, req.Rate)
	if err != nil {
		h.logger.Error("create milkman", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create milkman")
		return
	}

	h.events.Emit(r.Context(), events.New(householdID, events.EntityMilkman, events.ActionCreated, m.ID, auth.Email(r.Context())))
	writeJSON(w, http.StatusCreated, m)
}

func (h *MilkmanHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	householdID := auth.HouseholdID(r.Context())
	m, err := h.store.Update(householdID, id, req.Name, req.Rate)
	if err != nil {
		h.logger.Error("update milkman", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update milkman")
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "milkman not found")
		return
	}

	h.events.Emit(r.Context(), events.New(householdID, events.EntityMilkman, events.ActionUpdated, id, auth.Email(r.Context())))
	writeJSON(w, http.StatusOK, m)
}

// Delete removes the milkman. Their past deliveries stay in the ledger.
func (h *MilkmanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	householdID := auth.HouseholdID(r.Context())
	deleted, err := h.store.Delete(householdID, id)
	if err != nil {
		h.logger.Error("delete milkman", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete milkman")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "milkman not found")
		return
	}

	h.events.Emit(r.Context(), events.New(householdID, events.EntityMilkman, events.ActionDeleted, id, auth.Email(r.Context())))
	w.WriteHeader(http.StatusNoContent)
}
