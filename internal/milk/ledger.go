package milk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/kinkeeper/internal/metrics"
	"github.com/dukerupert/kinkeeper/internal/model"
)

var ErrInvalidDate = errors.New("date must be formatted yyyy-MM-dd")

// Backend is the persistent side of the ledger.
type Backend interface {
	Day(ctx context.Context, householdID int64, date string) (model.DailyMilkRecord, error)
	Range(ctx context.Context, householdID int64, from, to string) (model.MilkData, error)
	// Apply performs writes for date and removes the date when it ends up
	// empty, reporting whether it did so.
	Apply(ctx context.Context, householdID int64, date string, writes []Write) (bool, error)
}

// Result describes what a Save or Patch did. Record is the day as stored
// after the writes.
type Result struct {
	Date       string                `json:"date"`
	Writes     []Write               `json:"writes"`
	DayDeleted bool                  `json:"day_deleted"`
	Record     model.DailyMilkRecord `json:"record"`
}

// Ledger saves edited day records with minimal writes.
type Ledger struct {
	backend Backend
	now     func() time.Time
}

func NewLedger(backend Backend) *Ledger {
	return &Ledger{backend: backend, now: time.Now}
}

// ValidDate reports whether date is a real yyyy-MM-dd calendar day.
func ValidDate(date string) bool {
	_, err := time.Parse(model.DateLayout, date)
	return err == nil
}

func (l *Ledger) Day(ctx context.Context, householdID int64, date string) (model.DailyMilkRecord, error) {
	if !ValidDate(date) {
		return nil, ErrInvalidDate
	}
	return l.backend.Day(ctx, householdID, date)
}

func (l *Ledger) Range(ctx context.Context, householdID int64, from, to string) (model.MilkData, error) {
	return l.backend.Range(ctx, householdID, from, to)
}

// Save applies the changes an editor made to a day. original is the record
// the editor started from and edited is what they ended with; only milkmen
// that differ between the two are written, so entries another member saved
// in the meantime for other milkmen are left alone. Saving the same edit
// twice performs no writes the second time.
func (l *Ledger) Save(ctx context.Context, householdID int64, date string, original, edited model.DailyMilkRecord, editor string) (*Result, error) {
	if !ValidDate(date) {
		return nil, ErrInvalidDate
	}
	ids := make(map[int64]bool)
	for _, w := range Plan(original, edited, editor, l.now().UTC()) {
		ids[w.MilkmanID] = true
	}
	return l.commit(ctx, householdID, date, ids, edited, editor)
}

// Patch writes only the milkmen present in edited. A listed milkman with no
// positive quantity is removed; unlisted milkmen are untouched.
func (l *Ledger) Patch(ctx context.Context, householdID int64, date string, edited model.DailyMilkRecord, editor string) (*Result, error) {
	if !ValidDate(date) {
		return nil, ErrInvalidDate
	}
	ids := make(map[int64]bool, len(edited))
	for id := range edited {
		ids[id] = true
	}
	return l.commit(ctx, householdID, date, ids, edited, editor)
}

// commit writes the listed milkmen, skipping any whose stored entry already
// matches edited.
func (l *Ledger) commit(ctx context.Context, householdID int64, date string, ids map[int64]bool, edited model.DailyMilkRecord, editor string) (*Result, error) {
	current, err := l.backend.Day(ctx, householdID, date)
	if err != nil {
		return nil, fmt.Errorf("load milk day: %w", err)
	}

	writes := Plan(only(current, ids), only(edited, ids), editor, l.now().UTC())
	res := &Result{Date: date, Writes: writes, Record: current}
	if len(writes) == 0 {
		return res, nil
	}

	res.DayDeleted, err = l.backend.Apply(ctx, householdID, date, writes)
	if err != nil {
		return nil, fmt.Errorf("apply milk writes: %w", err)
	}
	res.Record, err = l.backend.Day(ctx, householdID, date)
	if err != nil {
		return nil, fmt.Errorf("reload milk day: %w", err)
	}

	for _, w := range writes {
		if w.Delete {
			metrics.MilkWrites.WithLabelValues("delete").Inc()
		} else {
			metrics.MilkWrites.WithLabelValues("upsert").Inc()
		}
	}
	if res.DayDeleted {
		metrics.MilkWrites.WithLabelValues("day_delete").Inc()
	}
	return res, nil
}

func only(record model.DailyMilkRecord, ids map[int64]bool) model.DailyMilkRecord {
	out := make(model.DailyMilkRecord, len(ids))
	for id, e := range record {
		if ids[id] {
			out[id] = e
		}
	}
	return out
}
