// Package contractor computes job-work charges owed to production contractors.
package contractor

import (
	"strings"

	"github.com/shopspring/decimal"
)

var dozenUnits = map[string]struct{}{
	"dozen":  {},
	"dozens": {},
	"doz":    {},
	"dzn":    {},
	"dz":     {},
}

// IsDozenUnit reports whether unit already counts in dozens.
func IsDozenUnit(unit string) bool {
	_, ok := dozenUnits[strings.ToLower(strings.TrimSpace(unit))]
	return ok
}

// Input describes the output line being charged.
type Input struct {
	OutputItemID   string
	OutputQuantity float64
	ItemUnit       string
	Settings       Settings
}

// Result carries the charge and any notice raised while computing it.
type Result struct {
	Amount float64 `json:"amount"`
	Notice Notice  `json:"notice,omitempty"`
}

// Calculate returns the contractor charge for one output line, rounded to
// currency precision. A missing rate yields zero with NoticeNotAssigned.
func Calculate(in Input) Result {
	rate, ok := in.Settings.RateFor(in.OutputItemID)
	if !ok {
		return Result{Amount: 0, Notice: NoticeNotAssigned}
	}
	qty := decimal.NewFromFloat(in.OutputQuantity)
	r := decimal.NewFromFloat(rate.Rate)
	var amount decimal.Decimal
	switch rate.UOM {
	case RatePerDozen:
		if IsDozenUnit(in.ItemUnit) {
			amount = qty.Mul(r)
		} else {
			amount = qty.Div(decimal.NewFromInt(12)).Mul(r)
		}
	default:
		amount = qty.Mul(r)
	}
	f, _ := amount.Round(2).Float64()
	return Result{Amount: f}
}
