package milk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/kinkeeper/internal/model"
)

// memBackend keeps one household's days in memory.
type memBackend struct {
	days    model.MilkData
	applied int
	failDay bool
	// beforeApply runs ahead of each Apply, standing in for another writer.
	beforeApply func(b *memBackend)
}

func newMemBackend() *memBackend {
	return &memBackend{days: model.MilkData{}}
}

func (b *memBackend) Day(_ context.Context, _ int64, date string) (model.DailyMilkRecord, error) {
	if b.failDay {
		return nil, errors.New("boom")
	}
	record := model.DailyMilkRecord{}
	for id, e := range b.days[date] {
		record[id] = e
	}
	return record, nil
}

func (b *memBackend) Range(_ context.Context, _ int64, from, to string) (model.MilkData, error) {
	out := model.MilkData{}
	for date, record := range b.days {
		if (from == "" || date >= from) && (to == "" || date <= to) {
			out[date] = record
		}
	}
	return out, nil
}

func (b *memBackend) Apply(_ context.Context, _ int64, date string, writes []Write) (bool, error) {
	if b.beforeApply != nil {
		b.beforeApply(b)
	}
	b.applied++
	next := Apply(b.days[date], writes)
	if len(next) == 0 {
		_, existed := b.days[date]
		delete(b.days, date)
		return existed, nil
	}
	b.days[date] = next
	return false, nil
}

func newTestLedger(b Backend) *Ledger {
	l := NewLedger(b)
	l.now = func() time.Time { return testNow }
	return l
}

func TestLedgerSaveRejectsBadDate(t *testing.T) {
	l := newTestLedger(newMemBackend())
	for _, date := range []string{"", "2024-13-01", "01/07/2024", "2024-02-30"} {
		if _, err := l.Save(context.Background(), 1, date, model.DailyMilkRecord{}, model.DailyMilkRecord{}, "bob"); !errors.Is(err, ErrInvalidDate) {
			t.Errorf("Save(%q) error = %v, want ErrInvalidDate", date, err)
		}
	}
}

func TestLedgerSaveTwiceWritesOnce(t *testing.T) {
	b := newMemBackend()
	l := newTestLedger(b)
	ctx := context.Background()
	edited := model.DailyMilkRecord{1: {Morning: q("1"), Evening: q("0.5")}}

	first, err := l.Save(ctx, 1, "2024-07-01", model.DailyMilkRecord{}, edited, "bob")
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	if len(first.Writes) != 1 {
		t.Fatalf("first save writes = %d, want 1", len(first.Writes))
	}

	second, err := l.Save(ctx, 1, "2024-07-01", model.DailyMilkRecord{}, edited, "bob")
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if len(second.Writes) != 0 {
		t.Errorf("second save writes = %d, want 0", len(second.Writes))
	}
	if b.applied != 1 {
		t.Errorf("backend applied %d times, want 1", b.applied)
	}

	third, err := l.Save(ctx, 1, "2024-07-01", first.Record, edited, "bob")
	if err != nil {
		t.Fatalf("third save: %v", err)
	}
	if len(third.Writes) != 0 {
		t.Errorf("save from the stored record writes = %d, want 0", len(third.Writes))
	}
}

func TestLedgerSaveClearingDayDeletesIt(t *testing.T) {
	b := newMemBackend()
	l := newTestLedger(b)
	ctx := context.Background()

	saved, err := l.Save(ctx, 1, "2024-07-01", model.DailyMilkRecord{}, model.DailyMilkRecord{1: {Morning: q("1")}}, "bob")
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	res, err := l.Save(ctx, 1, "2024-07-01", saved.Record, model.DailyMilkRecord{1: {Morning: q("0")}}, "bob")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !res.DayDeleted {
		t.Error("expected day to be deleted")
	}
	if len(res.Record) != 0 {
		t.Errorf("record = %+v, want empty", res.Record)
	}
	if _, ok := b.days["2024-07-01"]; ok {
		t.Error("day still stored")
	}
}

func TestLedgerSaveLoadError(t *testing.T) {
	b := newMemBackend()
	b.failDay = true
	l := newTestLedger(b)

	edited := model.DailyMilkRecord{1: {Morning: q("1")}}
	if _, err := l.Save(context.Background(), 1, "2024-07-01", model.DailyMilkRecord{}, edited, "bob"); err == nil {
		t.Fatal("expected error")
	}
	if b.applied != 0 {
		t.Error("nothing should be written when the load fails")
	}
}

func TestLedgerSaveKeepsOtherEditorsMilkmen(t *testing.T) {
	b := newMemBackend()
	l := newTestLedger(b)
	ctx := context.Background()

	// both opened the day while it was empty
	loaded := model.DailyMilkRecord{}
	if _, err := l.Save(ctx, 1, "2024-07-01", loaded, model.DailyMilkRecord{1: {Morning: q("1")}}, "alice"); err != nil {
		t.Fatalf("alice save: %v", err)
	}
	res, err := l.Save(ctx, 1, "2024-07-01", loaded, model.DailyMilkRecord{2: {Evening: q("2")}}, "bob")
	if err != nil {
		t.Fatalf("bob save: %v", err)
	}

	if len(res.Writes) != 1 || res.Writes[0].MilkmanID != 2 || res.Writes[0].Delete {
		t.Errorf("bob writes = %+v, want one upsert for milkman 2", res.Writes)
	}
	stored := b.days["2024-07-01"]
	if len(stored) != 2 {
		t.Fatalf("stored = %+v, want both milkmen", stored)
	}
	if stored[1].LastEditedBy != "alice" || stored[2].LastEditedBy != "bob" {
		t.Errorf("editors = %q/%q, want alice/bob", stored[1].LastEditedBy, stored[2].LastEditedBy)
	}
}

func TestLedgerSaveRemovesOnlyWhatEditorCleared(t *testing.T) {
	b := newMemBackend()
	b.days["2024-07-01"] = model.DailyMilkRecord{
		1: {Morning: q("1"), LastEditedBy: "alice"},
		2: {Evening: q("2"), LastEditedBy: "bob"},
	}
	l := newTestLedger(b)

	// alice loaded only milkman 1 and cleared it
	original := model.DailyMilkRecord{1: {Morning: q("1")}}
	res, err := l.Save(context.Background(), 1, "2024-07-01", original, model.DailyMilkRecord{}, "alice")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.DayDeleted {
		t.Error("milkman 2 remains, day must stay")
	}
	if _, ok := b.days["2024-07-01"][2]; !ok {
		t.Error("milkman 2 was removed")
	}
	if _, ok := b.days["2024-07-01"][1]; ok {
		t.Error("milkman 1 should be removed")
	}
}

func TestLedgerPatch(t *testing.T) {
	b := newMemBackend()
	b.days["2024-07-01"] = model.DailyMilkRecord{
		1: {Morning: q("1"), LastEditedBy: "alice"},
		2: {Evening: q("2"), LastEditedBy: "bob"},
	}
	l := newTestLedger(b)
	ctx := context.Background()

	res, err := l.Patch(ctx, 1, "2024-07-01", model.DailyMilkRecord{3: {Morning: q("0.5")}}, "carol")
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if len(res.Writes) != 1 || len(b.days["2024-07-01"]) != 3 {
		t.Errorf("writes = %+v, stored = %+v", res.Writes, b.days["2024-07-01"])
	}

	res, err = l.Patch(ctx, 1, "2024-07-01", model.DailyMilkRecord{1: {}, 2: {Evening: q("0")}, 3: {}}, "carol")
	if err != nil {
		t.Fatalf("clearing patch: %v", err)
	}
	if !res.DayDeleted {
		t.Error("expected day to be deleted")
	}

	res, err = l.Patch(ctx, 1, "2024-07-01", model.DailyMilkRecord{1: {}}, "carol")
	if err != nil {
		t.Fatalf("repeat patch: %v", err)
	}
	if len(res.Writes) != 0 {
		t.Errorf("repeat patch writes = %+v, want none", res.Writes)
	}
}

func TestLedgerResultShowsStoredRecord(t *testing.T) {
	b := newMemBackend()
	b.beforeApply = func(b *memBackend) {
		b.days["2024-07-01"] = model.DailyMilkRecord{9: {Morning: q("3"), LastEditedBy: "dave"}}
	}
	l := newTestLedger(b)

	res, err := l.Save(context.Background(), 1, "2024-07-01", model.DailyMilkRecord{}, model.DailyMilkRecord{1: {Morning: q("1")}}, "bob")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(res.Record) != 2 {
		t.Fatalf("record = %+v, want the concurrent entry as well", res.Record)
	}
	if res.Record[9].LastEditedBy != "dave" {
		t.Errorf("milkman 9 editor = %q, want dave", res.Record[9].LastEditedBy)
	}
}
