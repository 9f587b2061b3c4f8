// Package report folds expenses and milk deliveries over a date range.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/kinkeeper/internal/milk"
	"github.com/dukerupert/kinkeeper/internal/model"
)

var ErrInvalidRange = errors.New("invalid date range")

// maxRangeDays bounds the zero-filled daily series.
const maxRangeDays = 366 * 5

type Day struct {
	Date     string          `json:"date"`
	Expenses decimal.Decimal `json:"expenses"`
	Milk     decimal.Decimal `json:"milk"`
	Total    decimal.Decimal `json:"total"`
}

type Point struct {
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
}

type Supplier struct {
	MilkmanID int64           `json:"milkman_id"`
	Name      string          `json:"name"`
	Rate      decimal.Decimal `json:"rate"`
	Quantity  decimal.Decimal `json:"quantity"`
	Cost      decimal.Decimal `json:"cost"`
}

type Category struct {
	Category string          `json:"category"`
	Count    int             `json:"count"`
	Amount   decimal.Decimal `json:"amount"`
}

type Summary struct {
	From          string          `json:"from"`
	To            string          `json:"to"`
	Days          []Day           `json:"days"`
	Cumulative    []Point         `json:"cumulative"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	TotalMilk     decimal.Decimal `json:"total_milk"`
	Total         decimal.Decimal `json:"total"`
	ExpenseCount  int             `json:"expense_count"`
	MilkQuantity  decimal.Decimal `json:"milk_quantity"`
	Suppliers     []Supplier      `json:"suppliers"`
	Categories    []Category      `json:"categories"`
}

// DefaultRange is the first of now's month through now.
func DefaultRange(now time.Time) (string, string) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return first.Format(model.DateLayout), now.Format(model.DateLayout)
}

// ParseRange validates an inclusive range. Missing bounds fall back to
// DefaultRange.
func ParseRange(from, to string, now time.Time) (string, string, error) {
	defFrom, defTo := DefaultRange(now)
	if from == "" {
		from = defFrom
	}
	if to == "" {
		to = defTo
	}
	start, err := time.Parse(model.DateLayout, from)
	if err != nil {
		return "", "", fmt.Errorf("%w: from %q", ErrInvalidRange, from)
	}
	end, err := time.Parse(model.DateLayout, to)
	if err != nil {
		return "", "", fmt.Errorf("%w: to %q", ErrInvalidRange, to)
	}
	if end.Before(start) {
		return "", "", fmt.Errorf("%w: %s is after %s", ErrInvalidRange, from, to)
	}
	if end.Sub(start) > maxRangeDays*24*time.Hour {
		return "", "", fmt.Errorf("%w: more than %d days", ErrInvalidRange, maxRangeDays)
	}
	return from, to, nil
}

// Build computes the summary for [from, to]. Records outside the range are
// ignored. Milk from milkmen that no longer exist adds no cost.
func Build(from, to string, expenses []model.Expense, data model.MilkData, milkmen []model.Milkman) (*Summary, error) {
	start, err := time.Parse(model.DateLayout, from)
	if err != nil {
		return nil, fmt.Errorf("%w: from %q", ErrInvalidRange, from)
	}
	end, err := time.Parse(model.DateLayout, to)
	if err != nil {
		return nil, fmt.Errorf("%w: to %q", ErrInvalidRange, to)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s is after %s", ErrInvalidRange, from, to)
	}

	s := &Summary{
		From:          from,
		To:            to,
		TotalExpenses: decimal.Zero,
		TotalMilk:     decimal.Zero,
		Total:         decimal.Zero,
		MilkQuantity:  decimal.Zero,
	}

	index := make(map[string]int)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		date := d.Format(model.DateLayout)
		index[date] = len(s.Days)
		s.Days = append(s.Days, Day{Date: date, Expenses: decimal.Zero, Milk: decimal.Zero, Total: decimal.Zero})
	}

	categories := make(map[string]*Category)
	for _, e := range expenses {
		i, ok := index[e.Date]
		if !ok {
			continue
		}
		s.Days[i].Expenses = s.Days[i].Expenses.Add(e.Amount)
		s.ExpenseCount++

		c, ok := categories[e.Category]
		if !ok {
			c = &Category{Category: e.Category, Amount: decimal.Zero}
			categories[e.Category] = c
		}
		c.Count++
		c.Amount = c.Amount.Add(e.Amount)
	}

	byID := make(map[int64]*Supplier, len(milkmen))
	for _, m := range milkmen {
		byID[m.ID] = &Supplier{MilkmanID: m.ID, Name: m.Name, Rate: m.Rate, Quantity: decimal.Zero, Cost: decimal.Zero}
	}
	for date, record := range data {
		i, ok := index[date]
		if !ok {
			continue
		}
		for id, entry := range record {
			sup, ok := byID[id]
			if !ok {
				continue
			}
			cost := milk.Cost(entry, sup.Rate)
			sup.Quantity = sup.Quantity.Add(entry.Quantity())
			sup.Cost = sup.Cost.Add(cost)
			s.Days[i].Milk = s.Days[i].Milk.Add(cost)
		}
	}

	running := decimal.Zero
	for i := range s.Days {
		day := &s.Days[i]
		day.Total = day.Expenses.Add(day.Milk)
		running = running.Add(day.Total)
		s.Cumulative = append(s.Cumulative, Point{Date: day.Date, Total: running})
		s.TotalExpenses = s.TotalExpenses.Add(day.Expenses)
		s.TotalMilk = s.TotalMilk.Add(day.Milk)
	}
	s.Total = s.TotalExpenses.Add(s.TotalMilk)

	s.Suppliers = []Supplier{}
	for _, m := range milkmen {
		sup := byID[m.ID]
		if !sup.Quantity.IsPositive() {
			continue
		}
		s.MilkQuantity = s.MilkQuantity.Add(sup.Quantity)
		s.Suppliers = append(s.Suppliers, *sup)
	}

	s.Categories = make([]Category, 0, len(categories))
	for _, c := range categories {
		s.Categories = append(s.Categories, *c)
	}
	sort.Slice(s.Categories, func(i, j int) bool {
		if !s.Categories[i].Amount.Equal(s.Categories[j].Amount) {
			return s.Categories[i].Amount.GreaterThan(s.Categories[j].Amount)
		}
		return s.Categories[i].Category < s.Categories[j].Category
	})

	return s, nil
}

type ExpenseSource interface {
	List(householdID int64, from, to string) ([]model.Expense, error)
}

type MilkSource interface {
	Range(ctx context.Context, householdID int64, from, to string) (model.MilkData, error)
}

type MilkmanSource interface {
	List(householdID int64) ([]model.Milkman, error)
}

// Data is everything a household recorded within a range.
type Data struct {
	Expenses []model.Expense
	Milk     model.MilkData
	Milkmen  []model.Milkman
}

// Service loads household data for reports and exports.
type Service struct {
	expenses ExpenseSource
	milk     MilkSource
	milkmen  MilkmanSource
}

func NewService(expenses ExpenseSource, milk MilkSource, milkmen MilkmanSource) *Service {
	return &Service{expenses: expenses, milk: milk, milkmen: milkmen}
}

func (s *Service) Load(ctx context.Context, householdID int64, from, to string) (*Data, error) {
	expenses, err := s.expenses.List(householdID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}
	data, err := s.milk.Range(ctx, householdID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load milk: %w", err)
	}
	milkmen, err := s.milkmen.List(householdID)
	if err != nil {
		return nil, fmt.Errorf("load milkmen: %w", err)
	}
	return &Data{Expenses: expenses, Milk: data, Milkmen: milkmen}, nil
}

func (s *Service) Summary(ctx context.Context, householdID int64, from, to string) (*Summary, error) {
	d, err := s.Load(ctx, householdID, from, to)
	if err != nil {
		return nil, err
	}
	return Build(from, to, d.Expenses, d.Milk, d.Milkmen)
}
