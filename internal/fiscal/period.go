// Package fiscal maps calendar dates onto the April-start financial year used
// for voucher numbering, ledger periods and sales graphs.
package fiscal

import (
	"fmt"
	"strconv"
	"time"

	"github.com/metrik/metrik/internal/shared"
)

// StartMonth is the first calendar month of every financial year.
const StartMonth = time.April

// MonthLabels lists fiscal months in fiscal order.
var MonthLabels = [12]string{"Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec", "Jan", "Feb", "Mar"}

// QuarterLabels lists fiscal quarters in fiscal order.
var QuarterLabels = [4]string{"Q1", "Q2", "Q3", "Q4"}

// ErrInvalidLabel indicates a financial-year label that is not "YYYY-YY".
var ErrInvalidLabel = fmt.Errorf("%w: fiscal: financial year must look like 2024-25", shared.ErrBadRequest)

// Period is the fiscal view of one calendar date.
type Period struct {
	StartYear    int    `json:"fiscal_year_start_year"`
	Label        string `json:"fiscal_year_label"`
	MonthIndex   int    `json:"fiscal_month_index"`
	QuarterIndex int    `json:"fiscal_quarter_index"`
}

// YearStart returns the calendar year in which t's financial year began.
func YearStart(t time.Time) int {
	if t.Month() >= StartMonth {
		return t.Year()
	}
	return t.Year() - 1
}

// YearLabel renders the label for the financial year beginning in startYear.
func YearLabel(startYear int) string {
	return fmt.Sprintf("%d-%02d", startYear, (startYear+1)%100)
}

// MonthIndex returns t's month offset inside the year anchored at startYear.
// Values outside [0, 11] mean t does not belong to that year.
func MonthIndex(t time.Time, startYear int) int {
	return (t.Year()-startYear)*12 + (int(t.Month()) - int(StartMonth))
}

// QuarterIndex returns the quarter holding fiscal month idx.
func QuarterIndex(monthIdx int) int {
	return monthIdx / 3
}

// InYear reports whether t falls inside the year anchored at startYear.
func InYear(t time.Time, startYear int) bool {
	idx := MonthIndex(t, startYear)
	return idx >= 0 && idx <= 11
}

// Resolve returns the fiscal period of t.
func Resolve(t time.Time) Period {
	start := YearStart(t)
	idx := MonthIndex(t, start)
	return Period{
		StartYear:    start,
		Label:        YearLabel(start),
		MonthIndex:   idx,
		QuarterIndex: QuarterIndex(idx),
	}
}

// Range returns the first and last calendar day of the year anchored at
// startYear, in loc.
func Range(startYear int, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	from := time.Date(startYear, StartMonth, 1, 0, 0, 0, 0, loc)
	to := time.Date(startYear+1, StartMonth-1, 31, 0, 0, 0, 0, loc)
	return from, to
}

// ParseLabel converts "2024-25" back into its start year. The suffix must be
// the following year.
func ParseLabel(label string) (int, error) {
	if len(label) != 7 || label[4] != '-' {
		return 0, ErrInvalidLabel
	}
	start, err := strconv.Atoi(label[:4])
	if err != nil {
		return 0, ErrInvalidLabel
	}
	if YearLabel(start) != label {
		return 0, fmt.Errorf("%w: %q does not follow %d", ErrInvalidLabel, label[5:], start)
	}
	return start, nil
}

// YearOptions returns the labels offered by period pickers: two years before
// the current financial year through one year after.
func YearOptions(now time.Time) []string {
	start := YearStart(now)
	out := make([]string, 0, 4)
	for y := start - 2; y <= start+1; y++ {
		out = append(out, YearLabel(y))
	}
	return out
}
