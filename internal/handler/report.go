package handler

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/kinkeeper/internal/auth"
	"github.com/dukerupert/kinkeeper/internal/export"
	"github.com/dukerupert/kinkeeper/internal/report"
)

type ReportHandler struct {
	service *report.Service
	sheets  *export.SheetsWriter
	logger  *slog.Logger
	now     func() time.Time
}

// NewReportHandler wires reports. sheets may be nil when Google Sheets
// export is not configured.
func NewReportHandler(service *report.Service, sheets *export.SheetsWriter, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{service: service, sheets: sheets, logger: logger, now: time.Now}
}

func (h *ReportHandler) parseRange(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	from, to, err := report.ParseRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"), h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", "", false
	}
	return from, to, true
}

func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.parseRange(w, r)
	if !ok {
		return
	}

	summary, err := h.service.Summary(r.Context(), auth.HouseholdID(r.Context()), from, to)
	if errors.Is(err, report.ErrInvalidRange) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("report summary", "from", from, "to", to, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Export downloads the range as an .xlsx workbook.
func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.parseRange(w, r)
	if !ok {
		return
	}

	data, err := h.service.Load(r.Context(), auth.HouseholdID(r.Context()), from, to)
	if err != nil {
		h.logger.Error("export load", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export")
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, data.Expenses, data.Milk, data.Milkmen); err != nil {
		h.logger.Error("export write", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export")
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(h.now())+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// ExportSheets pushes the range to the configured Google spreadsheet.
func (h *ReportHandler) ExportSheets(w http.ResponseWriter, r *http.Request) {
	if h.sheets == nil {
		writeError(w, http.StatusNotFound, "google sheets export is not configured")
		return
	}
	from, to, ok := h.parseRange(w, r)
	if !ok {
		return
	}

	data, err := h.service.Load(r.Context(), auth.HouseholdID(r.Context()), from, to)
	if err != nil {
		h.logger.Error("sheets load", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export")
		return
	}
	if err := h.sheets.Push(r.Context(), data.Expenses, data.Milk, data.Milkmen); err != nil {
		h.logger.Error("sheets push", "error", err)
		writeError(w, http.StatusBadGateway, "google sheets export failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"from": from, "to": to, "expenses": len(data.Expenses)})
}
