// Package ledger folds persisted inventory and account entries into item and
// party ledgers with running balances.
package ledger

import (
	"math"
	"sort"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/metrik/metrik/internal/voucher"
)

// ItemOpening is the stock position carried into a ledger period.
type ItemOpening struct {
	Quantity float64 `json:"quantity"`
	Value    float64 `json:"value"`
}

// ItemEntry is a persisted stock movement. Sequence is the insertion order
// breaking ties between entries of the same date.
type ItemEntry struct {
	Date          time.Time         `json:"date"`
	Sequence      int64             `json:"sequence"`
	VoucherID     string            `json:"voucher_id"`
	VoucherType   voucher.Type      `json:"voucher_type"`
	VoucherNumber string            `json:"voucher_number"`
	Direction     voucher.Direction `json:"type"`
	Quantity      float64           `json:"quantity"`
	Rate          float64           `json:"rate"`
	Narration     string            `json:"narration"`
}

// Value is the monetary value of the movement.
func (e ItemEntry) Value() float64 {
	return e.Quantity * e.Rate
}

// ItemRow is one item ledger line with running balances after the entry.
type ItemRow struct {
	ItemEntry
	QtyIn        float64 `json:"qty_in"`
	QtyOut       float64 `json:"qty_out"`
	BalanceQty   float64 `json:"balance_qty"`
	BalanceValue float64 `json:"balance_value"`
	ValueSide    Side    `json:"value_side"`
}

// ItemLedger is the folded stock ledger of one item.
type ItemLedger struct {
	Opening          ItemOpening `json:"opening"`
	Rows             []ItemRow   `json:"rows"`
	TotalIn          float64     `json:"total_in"`
	TotalOut         float64     `json:"total_out"`
	TotalValueIn     float64     `json:"total_value_in"`
	TotalValueOut    float64     `json:"total_value_out"`
	ClosingQty       float64     `json:"closing_qty"`
	ClosingValue     float64     `json:"closing_value"`
	ClosingValueSide Side        `json:"closing_value_side"`
}

// PartyEntry is a persisted debit or credit posting against an account.
type PartyEntry struct {
	Date          time.Time    `json:"date"`
	Sequence      int64        `json:"sequence"`
	VoucherID     string       `json:"voucher_id"`
	VoucherType   voucher.Type `json:"voucher_type"`
	VoucherNumber string       `json:"voucher_number"`
	Debit         float64      `json:"debit"`
	Credit        float64      `json:"credit"`
	Narration     string       `json:"narration"`
}

// PartyRow is one party ledger line with the running balance after it.
type PartyRow struct {
	PartyEntry
	Balance float64 `json:"balance"`
	Side    Side    `json:"side"`
}

// PartyLedger is the folded ledger of one party or account.
type PartyLedger struct {
	Opening     float64    `json:"opening"`
	Rows        []PartyRow `json:"rows"`
	TotalDebit  float64    `json:"total_debit"`
	TotalCredit float64    `json:"total_credit"`
	Closing     float64    `json:"closing"`
	ClosingSide Side       `json:"closing_side"`
}

// Side labels the sign of a balance.
type Side string

const (
	Debit  Side = "Dr"
	Credit Side = "Cr"
)

// BalanceSide returns Dr for non-negative balances and Cr otherwise, along
// with the displayed magnitude.
func BalanceSide(balance float64) (Side, float64) {
	if balance >= 0 {
		return Debit, balance
	}
	return Credit, math.Abs(balance)
}

var printer = message.NewPrinter(language.English)

// FormatBalance renders a balance such as "1,234.50 Dr".
func FormatBalance(balance float64) string {
	side, mag := BalanceSide(balance)
	return printer.Sprintf("%.2f %s", mag, side)
}

// FoldItems sorts a copy of entries by date then sequence and accumulates
// running quantity and value from opening. Entries are not modified.
func FoldItems(opening ItemOpening, entries []ItemEntry) ItemLedger {
	sorted := make([]ItemEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return entryLess(sorted[i].Date, sorted[i].Sequence, sorted[j].Date, sorted[j].Sequence)
	})

	out := ItemLedger{Opening: opening, Rows: make([]ItemRow, 0, len(sorted))}
	qty, value := opening.Quantity, opening.Value
	for _, e := range sorted {
		row := ItemRow{ItemEntry: e}
		switch e.Direction {
		case voucher.DirectionIn:
			qty += e.Quantity
			value += e.Value()
			row.QtyIn = e.Quantity
			out.TotalIn += e.Quantity
			out.TotalValueIn += e.Value()
		case voucher.DirectionOut:
			qty -= e.Quantity
			value -= e.Value()
			row.QtyOut = e.Quantity
			out.TotalOut += e.Quantity
			out.TotalValueOut += e.Value()
		}
		row.BalanceQty = qty
		row.BalanceValue = value
		row.ValueSide, _ = BalanceSide(value)
		out.Rows = append(out.Rows, row)
	}
	out.ClosingQty = qty
	out.ClosingValue = value
	out.ClosingValueSide, _ = BalanceSide(value)
	return out
}

// FoldParty sorts a copy of entries by date then sequence and accumulates
// debit minus credit from opening. Entries are not modified.
func FoldParty(opening float64, entries []PartyEntry) PartyLedger {
	sorted := make([]PartyEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return entryLess(sorted[i].Date, sorted[i].Sequence, sorted[j].Date, sorted[j].Sequence)
	})

	out := PartyLedger{Opening: opening, Rows: make([]PartyRow, 0, len(sorted))}
	balance := opening
	for _, e := range sorted {
		balance += e.Debit - e.Credit
		out.TotalDebit += e.Debit
		out.TotalCredit += e.Credit
		side, _ := BalanceSide(balance)
		out.Rows = append(out.Rows, PartyRow{PartyEntry: e, Balance: balance, Side: side})
	}
	out.Closing = balance
	out.ClosingSide, _ = BalanceSide(balance)
	return out
}

func entryLess(di time.Time, si int64, dj time.Time, sj int64) bool {
	if !di.Equal(dj) {
		return di.Before(dj)
	}
	return si < sj
}
