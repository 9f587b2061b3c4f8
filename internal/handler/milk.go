package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/kinkeeper/internal/auth"
	"github.com/dukerupert/kinkeeper/internal/events"
	"github.com/dukerupert/kinkeeper/internal/milk"
	"github.com/dukerupert/kinkeeper/internal/model"
	"github.com/dukerupert/kinkeeper/internal/report"
	"github.com/dukerupert/kinkeeper/internal/store"
)

const monthLayout = "2006-01"

type MilkHandler struct {
	ledger       *milk.Ledger
	milkmanStore *store.MilkmanStore
	events       *events.Fanout
	logger       *slog.Logger
	now          func() time.Time
}

func NewMilkHandler(ledger *milk.Ledger, ms *store.MilkmanStore, ev *events.Fanout, logger *slog.Logger) *MilkHandler {
	return &MilkHandler{ledger: ledger, milkmanStore: ms, events: ev, logger: logger, now: time.Now}
}

// quantityInput accepts a JSON number, a string or null. Anything that is
// not a non-negative finite number counts as no delivery.
type quantityInput struct {
	value *decimal.Decimal
}

func (q *quantityInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		q.value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		s = string(data)
	}
	q.value = milk.ParseQuantity(s)
	return nil
}

type milkEntryInput struct {
	Morning quantityInput `json:"morning"`
	Evening quantityInput `json:"evening"`
}

// milkDayRequest carries the edited entries and, optionally, the entries the
// client loaded before editing. With original, only milkmen that differ
// between the two are written; without it, only the listed milkmen are.
type milkDayRequest struct {
	Original map[string]milkEntryInput `json:"original"`
	Entries  map[string]milkEntryInput `json:"entries"`
}

func parseMilkRecord(in map[string]milkEntryInput) (model.DailyMilkRecord, bool) {
	record := make(model.DailyMilkRecord, len(in))
	for key, e := range in {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || id <= 0 {
			return nil, false
		}
		record[id] = model.MilkEntry{Morning: e.Morning.value, Evening: e.Evening.value}
	}
	return record, true
}

// List returns the ledger for a range, or with ?month=yyyy-MM only the dates
// that had deliveries.
func (h *MilkHandler) List(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())
	q := r.URL.Query()

	if month := q.Get("month"); month != "" {
		start, err := time.Parse(monthLayout, month)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be formatted yyyy-MM")
			return
		}
		end := start.AddDate(0, 1, -1)
		from, to := start.Format(model.DateLayout), end.Format(model.DateLayout)

		data, err := h.ledger.Range(r.Context(), householdID, from, to)
		if err != nil {
			h.logger.Error("milk month", "month", month, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load milk ledger")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"month": month, "dates": milk.ActiveDates(data)})
		return
	}

	from, to, err := report.ParseRange(q.Get("from"), q.Get("to"), h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := h.ledger.Range(r.Context(), householdID, from, to)
	if err != nil {
		h.logger.Error("milk range", "from", from, "to", to, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load milk ledger")
		return
	}
	milkmen, err := h.milkmanStore.List(householdID)
	if err != nil {
		h.logger.Error("list milkmen", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load milk ledger")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"from":  from,
		"to":    to,
		"days":  data,
		"lines": nonNil(milk.Lines(data, milkmen)),
	})
}

func (h *MilkHandler) Day(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if !milk.ValidDate(date) {
		writeError(w, http.StatusBadRequest, milk.ErrInvalidDate.Error())
		return
	}
	householdID := auth.HouseholdID(r.Context())

	record, err := h.ledger.Day(r.Context(), householdID, date)
	if err != nil {
		h.logger.Error("milk day", "date", date, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load milk day")
		return
	}
	milkmen, err := h.milkmanStore.List(householdID)
	if err != nil {
		h.logger.Error("list milkmen", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load milk day")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":   date,
		"record": record,
		"lines":  nonNil(milk.Lines(model.MilkData{date: record}, milkmen)),
	})
}

// Save reconciles the edited entries with the day, writing only the milkmen
// the caller changed.
func (h *MilkHandler) Save(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if !milk.ValidDate(date) {
		writeError(w, http.StatusBadRequest, milk.ErrInvalidDate.Error())
		return
	}

	var req milkDayRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	edited, ok := parseMilkRecord(req.Entries)
	if !ok {
		writeError(w, http.StatusBadRequest, "entries must be keyed by milkman id")
		return
	}

	householdID := auth.HouseholdID(r.Context())
	editor := auth.Email(r.Context())

	var (
		result *milk.Result
		err    error
	)
	if req.Original != nil {
		original, ok := parseMilkRecord(req.Original)
		if !ok {
			writeError(w, http.StatusBadRequest, "original must be keyed by milkman id")
			return
		}
		result, err = h.ledger.Save(r.Context(), householdID, date, original, edited, editor)
	} else {
		result, err = h.ledger.Patch(r.Context(), householdID, date, edited, editor)
	}
	if errors.Is(err, milk.ErrInvalidDate) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("save milk day", "date", date, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save milk day")
		return
	}

	if len(result.Writes) > 0 {
		h.events.Emit(r.Context(), events.MilkDay(householdID, date, editor, result.DayDeleted))
	}
	writeJSON(w, http.StatusOK, result)
}
