package voucher

import (
	"math"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LineTotals breaks down the monetary value of item lines.
type LineTotals struct {
	Gross    float64 `json:"gross"`
	Discount float64 `json:"discount"`
	Net      float64 `json:"net"`
	Tax      float64 `json:"tax"`
	Grand    float64 `json:"grand_total"`
}

// ItemTotals sums item lines: gross = qty*rate, discount is a percentage of
// gross, GST applies to the discounted amount. Results are rounded to two
// decimals; Grand always equals Net + Tax.
func ItemTotals(lines []Line) LineTotals {
	var gross, disc, tax decimal.Decimal
	for _, l := range lines {
		if l.Item == nil {
			continue
		}
		g := decimal.NewFromFloat(math.Abs(l.Item.Quantity)).Mul(decimal.NewFromFloat(l.Item.Rate))
		d := g.Mul(decimal.NewFromFloat(l.Item.Discount)).Div(hundred)
		t := g.Sub(d).Mul(decimal.NewFromFloat(l.Item.GSTRate)).Div(hundred)
		gross = gross.Add(g)
		disc = disc.Add(d)
		tax = tax.Add(t)
	}
	gross = gross.Round(2)
	disc = disc.Round(2)
	net := gross.Sub(disc)
	tax = tax.Round(2)
	return LineTotals{
		Gross:    toFloat(gross),
		Discount: toFloat(disc),
		Net:      toFloat(net),
		Tax:      toFloat(tax),
		Grand:    toFloat(net.Add(tax)),
	}
}

// Balance sums account lines and reports whether debits equal credits at
// currency precision.
func Balance(lines []Line) (debit, credit float64, balanced bool) {
	var d, c decimal.Decimal
	for _, l := range lines {
		if l.Account == nil {
			continue
		}
		d = d.Add(decimal.NewFromFloat(l.Account.Debit))
		c = c.Add(decimal.NewFromFloat(l.Account.Credit))
	}
	d = d.Round(2)
	c = c.Round(2)
	return toFloat(d), toFloat(c), d.Equal(c)
}

// GrandTotal returns the voucher total: item totals for item-based vouchers,
// the debit side for account-based ones.
func GrandTotal(v Voucher) float64 {
	if v.Type.Category() == CategoryAccount {
		debit, _, _ := Balance(v.Lines)
		return debit
	}
	return ItemTotals(v.Lines).Grand
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func roundMoney(f float64) float64 {
	return toFloat(decimal.NewFromFloat(f).Round(2))
}
