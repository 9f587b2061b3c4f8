package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/kinkeeper/internal/auth"
	"github.com/dukerupert/kinkeeper/internal/categorize"
	"github.com/dukerupert/kinkeeper/internal/events"
	"github.com/dukerupert/kinkeeper/internal/model"
	"github.com/dukerupert/kinkeeper/internal/store"
)

type ExpenseHandler struct {
	store       *store.ExpenseStore
	categorizer *categorize.Client
	events      *events.Fanout
	logger      *slog.Logger
}

func NewExpenseHandler(s *store.ExpenseStore, c *categorize.Client, ev *events.Fanout, logger *slog.Logger) *ExpenseHandler {
	return &ExpenseHandler{store: s, categorizer: c, events: ev, logger: logger}
}

type expenseRequest struct {
	Date        *string          `json:"date"`
	Name        *string          `json:"name"`
	Amount      *decimal.Decimal `json:"amount"`
	Category    *string          `json:"category"`
	Description string           `json:"description"`
}

// validate checks the fields that are present. On create every field but
// category is required.
func (req *expenseRequest) validate(create bool) string {
	if req.Date != nil && !validDate(*req.Date) {
		return "date must be formatted yyyy-MM-dd"
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
		if trimmed == "" {
			return "name is required"
		}
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		return "amount must be positive"
	}
	if req.Category != nil && *req.Category != "" && !categorize.Valid(*req.Category) {
		return "unknown category"
	}
	if create {
		switch {
		case req.Date == nil:
			return "date is required"
		case req.Name == nil:
			return "name is required"
		case req.Amount == nil:
			return "amount is required"
		}
	}
	return ""
}

func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if (from != "" && !validDate(from)) || (to != "" && !validDate(to)) {
		writeError(w, http.StatusBadRequest, "from and to must be formatted yyyy-MM-dd")
		return
	}

	expenses, err := h.store.List(auth.HouseholdID(r.Context()), from, to)
	if err != nil {
		h.logger.Error("list expenses", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list expenses")
		return
	}
	if expenses == nil {
		expenses = []model.Expense{}
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (h *ExpenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	expense, err := h.store.GetByID(auth.HouseholdID(r.Context()), id)
	if err != nil {
		h.logger.Error("get expense", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get expense")
		return
	}
	if expense == nil {
		writeError(w, http.StatusNotFound, "expense not found")
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

// Create stores an expense. An empty category is filled in by the
// categorizer, which always yields a label.
func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.validate(true); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	var category string
	if req.Category != nil && *req.Category != "" {
		category = categorize.Normalize(*req.Category)
	} else {
		category = h.categorizer.Categorize(r.Context(), categorize.Request{
			Name:        *req.Name,
			Amount:      *req.Amount,
			Description: req.Description,
		}).Category
	}

	householdID := auth.HouseholdID(r.Context())
	editor := auth.Email(r.Context())
	expense, err := h.store.Create(householdID, *req.Date, *req.Name, *req.Amount, category, editor)
	if err != nil {
		h.logger.Error("create expense", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create expense")
		return
	}

	h.events.Emit(r.Context(), events.New(householdID, events.EntityExpense, events.ActionCreated, expense.ID, editor))
	writeJSON(w, http.StatusCreated, expense)
}

// Update changes the given fields. Any member may edit any expense.
func (h *ExpenseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req expenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.validate(false); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	u := store.ExpenseUpdate{Date: req.Date, Name: req.Name, Amount: req.Amount}
	if req.Category != nil {
		c := categorize.Normalize(*req.Category)
		u.Category = &c
	}

	householdID := auth.HouseholdID(r.Context())
	editor := auth.Email(r.Context())
	expense, err := h.store.Update(householdID, id, u, editor)
	if err != nil {
		h.logger.Error("update expense", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update expense")
		return
	}
	if expense == nil {
		writeError(w, http.StatusNotFound, "expense not found")
		return
	}

	h.events.Emit(r.Context(), events.New(householdID, events.EntityExpense, events.ActionUpdated, id, editor))
	writeJSON(w, http.StatusOK, expense)
}

func (h *ExpenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	householdID := auth.HouseholdID(r.Context())
	deleted, err := h.store.Delete(householdID, id)
	if err != nil {
		h.logger.Error("delete expense", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete expense")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "expense not found")
		return
	}

	h.events.Emit(r.Context(), events.New(householdID, events.EntityExpense, events.ActionDeleted, id, auth.Email(r.Context())))
	w.WriteHeader(http.StatusNoContent)
}

// Categorize suggests a category without saving anything.
func (h *ExpenseHandler) Categorize(w http.ResponseWriter, r *http.Request) {
	var req categorize.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	writeJSON(w, http.StatusOK, h.categorizer.Categorize(r.Context(), req))
}
