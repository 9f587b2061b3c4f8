package milk

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/kinkeeper/internal/model"
)

// HasActivity reports whether any milkman delivered a positive quantity.
func HasActivity(record model.DailyMilkRecord) bool {
	for _, e := range record {
		if positive(e.Morning) != nil || positive(e.Evening) != nil {
			return true
		}
	}
	return false
}

// Cost is (morning + evening) * rate, absent quantities counting as zero.
func Cost(e model.MilkEntry, rate decimal.Decimal) decimal.Decimal {
	return e.Quantity().Mul(rate)
}

// ActiveDates returns the sorted dates in data that have activity.
func ActiveDates(data model.MilkData) []string {
	dates := make([]string, 0, len(data))
	for date, record := range data {
		if HasActivity(record) {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)
	return dates
}

// Line is one (date, milkman) row for display and export. Orphaned is set when
// the milkman no longer exists; such rows carry no rate or cost.
type Line struct {
	Date        string          `json:"date"`
	MilkmanID   int64           `json:"milkman_id"`
	MilkmanName string          `json:"milkman_name"`
	Morning     decimal.Decimal `json:"morning"`
	Evening     decimal.Decimal `json:"evening"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	Cost        decimal.Decimal `json:"cost"`
	Orphaned    bool            `json:"orphaned"`
}

// Lines flattens data into rows ordered by date, then milkman ID.
func Lines(data model.MilkData, milkmen []model.Milkman) []Line {
	byID := make(map[int64]model.Milkman, len(milkmen))
	for _, m := range milkmen {
		byID[m.ID] = m
	}

	var lines []Line
	for date, record := range data {
		for id, e := range record {
			l := Line{
				Date:      date,
				MilkmanID: id,
				Morning:   orZero(e.Morning),
				Evening:   orZero(e.Evening),
				Quantity:  e.Quantity(),
			}
			if m, ok := byID[id]; ok {
				l.MilkmanName = m.Name
				l.Rate = m.Rate
				l.Cost = Cost(e, m.Rate)
			} else {
				l.Orphaned = true
			}
			lines = append(lines, l)
		}
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Date != lines[j].Date {
			return lines[i].Date < lines[j].Date
		}
		return lines[i].MilkmanID < lines[j].MilkmanID
	})
	return lines
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
