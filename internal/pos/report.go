package pos

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidPeriod is returned for an unknown report period.
var ErrInvalidPeriod = errors.New("invalid report period")

// Period selects the time window of a sales summary.
type Period string

const (
	PeriodToday Period = "today"
	PeriodMonth Period = "month"
)

// ParsePeriod validates a period name. An empty name means today.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodToday:
		return PeriodToday, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", fmt.Errorf("%w: '%s'", ErrInvalidPeriod, s)
	}
}

// Start returns the beginning of the period containing now, in now's location.
func (p Period) Start(now time.Time) time.Time {
	y, m, d := now.Date()
	if p == PeriodMonth {
		d = 1
	}
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// SummaryLine aggregates the units sold of one product.
type SummaryLine struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Total       int64  `json:"total"`
}

// SalesSummary is the per-product breakdown of a period.
type SalesSummary struct {
	Period      Period        `json:"period"`
	Since       time.Time     `json:"since"`
	Lines       []SummaryLine `json:"lines"`
	Quantity    int           `json:"quantity"`
	TotalAmount int64         `json:"total_amount"`
}

// Summarize groups sales by product name, sorted by name.
func Summarize(period Period, since time.Time, sales []*Sale) SalesSummary {
	byName := map[string]*SummaryLine{}
	summary := SalesSummary{Period: period, Since: since, Lines: make([]SummaryLine, 0)}

	for _, s := range sales {
		line, ok := byName[s.ProductName]
		if !ok {
			line = &SummaryLine{ProductName: s.ProductName}
			byName[s.ProductName] = line
		}
		line.Quantity += s.Quantity
		line.Total += s.Total
		summary.Quantity += s.Quantity
		summary.TotalAmount += s.Total
	}

	for _, line := range byName {
		summary.Lines = append(summary.Lines, *line)
	}
	sort.Slice(summary.Lines, func(i, j int) bool {
		return summary.Lines[i].ProductName < summary.Lines[j].ProductName
	})
	return summary
}
