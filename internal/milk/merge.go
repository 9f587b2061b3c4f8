// Package milk reconciles edits to a day's milk deliveries against the stored
// sparse ledger.
package milk

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/kinkeeper/internal/model"
)

// Write is a single per-milkman change for one date. Delete removes the
// milkman's entry; otherwise Entry replaces it.
type Write struct {
	MilkmanID int64           `json:"milkman_id"`
	Delete    bool            `json:"delete"`
	Entry     model.MilkEntry `json:"entry"`
}

// ParseQuantity parses user input for a morning or evening quantity. Anything
// that is not a finite, non-negative number is treated as absent.
func ParseQuantity(s string) *decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	if d.IsNegative() {
		return nil
	}
	return &d
}

// positive drops zero quantities; only positive values are ever stored.
func positive(d *decimal.Decimal) *decimal.Decimal {
	if d == nil || !d.IsPositive() {
		return nil
	}
	return d
}

func sameQuantity(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Plan computes the minimal writes that turn original into edited. Milkmen
// absent from a record count as having no quantities. Unchanged pairs produce
// no write; a changed pair with nothing positive left is deleted.
func Plan(original, edited model.DailyMilkRecord, editor string, now time.Time) []Write {
	ids := make([]int64, 0, len(original)+len(edited))
	seen := make(map[int64]bool, len(original)+len(edited))
	for id := range original {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for id := range edited {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	var writes []Write
	for _, id := range ids {
		orig := original[id]
		next := edited[id]

		origMorning, origEvening := positive(orig.Morning), positive(orig.Evening)
		nextMorning, nextEvening := positive(next.Morning), positive(next.Evening)

		if sameQuantity(origMorning, nextMorning) && sameQuantity(origEvening, nextEvening) {
			continue
		}

		if nextMorning == nil && nextEvening == nil {
			writes = append(writes, Write{MilkmanID: id, Delete: true})
			continue
		}

		writes = append(writes, Write{
			MilkmanID: id,
			Entry: model.MilkEntry{
				Morning:      nextMorning,
				Evening:      nextEvening,
				LastEditedBy: editor,
				UpdatedAt:    now,
			},
		})
	}
	return writes
}

// Apply returns the record that results from applying writes to record.
// The input is not modified.
func Apply(record model.DailyMilkRecord, writes []Write) model.DailyMilkRecord {
	out := make(model.DailyMilkRecord, len(record))
	for id, e := range record {
		out[id] = e
	}
	for _, w := range writes {
		if w.Delete {
			delete(out, w.MilkmanID)
			continue
		}
		out[w.MilkmanID] = w.Entry
	}
	return out
}
