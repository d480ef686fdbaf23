// Package voucher validates vouchers and turns posted vouchers into the
// inventory movements and account postings persisted for ledgers.
package voucher

import (
	"fmt"
	"math"
)

type rule struct {
	inventory func(v Voucher) []InventoryEntry
	journal   func(a PostingAccounts, v Voucher) ([]AccountEntry, error)
}

var rules = map[Type]rule{
	TypeSalesInvoice:    {inventory: movement(DirectionOut), journal: salesJournal(false)},
	TypeSalesReturn:     {inventory: movement(DirectionIn), journal: salesJournal(true)},
	TypePurchaseInvoice: {inventory: movement(DirectionIn), journal: purchaseJournal(false)},
	TypePurchaseReturn:  {inventory: movement(DirectionOut), journal: purchaseJournal(true)},
	TypeSalesOrder:      {},
	TypePurchaseOrder:   {},
	TypeDeliveryNote:    {inventory: movement(DirectionOut)},
	TypeGRN:             {inventory: movement(DirectionIn)},
	TypeStockTransfer:   {inventory: transferMovements},
	TypeProduction:      {inventory: productionMovements, journal: contractorJournal},
	TypePhysicalStock:   {inventory: physicalStockMovements},
	TypePayment:         {journal: accountLines},
	TypeReceipt:         {journal: accountLines},
	TypeJournal:         {journal: accountLines},
	TypeContra:          {journal: accountLines},
}

// Transformer derives persisted entries from posted vouchers.
type Transformer struct {
	accounts PostingAccounts
}

// NewTransformer builds a Transformer posting against accounts.
func NewTransformer(accounts PostingAccounts) *Transformer {
	return &Transformer{accounts: accounts}
}

// InventoryEntries returns the stock movements of v, in line order. Types
// without stock effect return an empty slice.
func (t *Transformer) InventoryEntries(v Voucher) ([]InventoryEntry, error) {
	r, ok := rules[v.Type]
	if !ok {
		return nil, &ValidationError{Err: ErrUnknownType, Details: string(v.Type)}
	}
	if r.inventory == nil {
		return []InventoryEntry{}, nil
	}
	return r.inventory(v), nil
}

// JournalEntries returns the account postings of v. Physical stock, stock
// transfers, delivery notes, GRNs and orders carry no accounting effect.
func (t *Transformer) JournalEntries(v Voucher) ([]AccountEntry, error) {
	r, ok := rules[v.Type]
	if !ok {
		return nil, &ValidationError{Err: ErrUnknownType, Details: string(v.Type)}
	}
	if r.journal == nil {
		return []AccountEntry{}, nil
	}
	return r.journal(t.accounts, v)
}

func narration(v Voucher, line string) string {
	if line != "" {
		return line
	}
	if v.Narration != "" {
		return v.Narration
	}
	return v.Type.Title() + ": " + v.Number
}

func inventoryEntry(v Voucher, l *ItemLine, mc string, dir Direction, qty float64, note string) InventoryEntry {
	return InventoryEntry{
		BusinessID:       v.BusinessID,
		ItemID:           l.ItemID,
		MaterialCentreID: mc,
		VoucherID:        v.ID,
		VoucherType:      v.Type,
		VoucherNumber:    v.Number,
		Date:             v.Date,
		Direction:        dir,
		Quantity:         qty,
		Rate:             l.Rate,
		Narration:        note,
	}
}

func movement(dir Direction) func(v Voucher) []InventoryEntry {
	return func(v Voucher) []InventoryEntry {
		out := make([]InventoryEntry, 0, len(v.Lines))
		for _, l := range v.Lines {
			if l.Item == nil {
				continue
			}
			out = append(out, inventoryEntry(v, l.Item, v.MaterialCentreID, dir, l.Item.Quantity, narration(v, l.Item.Narration)))
		}
		return out
	}
}

func transferMovements(v Voucher) []InventoryEntry {
	out := make([]InventoryEntry, 0, 2*len(v.Lines))
	for _, l := range v.Lines {
		if l.Item == nil {
			continue
		}
		note := narration(v, l.Item.Narration)
		out = append(out,
			inventoryEntry(v, l.Item, v.MaterialCentreID, DirectionOut, l.Item.Quantity, note),
			inventoryEntry(v, l.Item, v.DestinationMaterialCentreID, DirectionIn, l.Item.Quantity, note),
		)
	}
	return out
}

func productionMovements(v Voucher) []InventoryEntry {
	outputMC := v.DestinationMaterialCentreID
	if outputMC == "" {
		outputMC = v.MaterialCentreID
	}
	out := make([]InventoryEntry, 0, len(v.Lines))
	for _, l := range v.Lines {
		if l.Item == nil {
			continue
		}
		note := narration(v, l.Item.Narration)
		if l.Item.Role == RoleOutput {
			out = append(out, inventoryEntry(v, l.Item, outputMC, DirectionIn, l.Item.Quantity, note))
			continue
		}
		out = append(out, inventoryEntry(v, l.Item, v.MaterialCentreID, DirectionOut, l.Item.Quantity, note))
	}
	return out
}

func physicalStockMovements(v Voucher) []InventoryEntry {
	note := "Physical Stock Adjustment: " + v.Number
	out := make([]InventoryEntry, 0, len(v.Lines))
	for _, l := range v.Lines {
		if l.Item == nil || l.Item.ItemID == "" || l.Item.Quantity == 0 {
			continue
		}
		dir := DirectionOut
		if l.Item.Quantity > 0 {
			dir = DirectionIn
		}
		out = append(out, inventoryEntry(v, l.Item, v.MaterialCentreID, dir, math.Abs(l.Item.Quantity), note))
	}
	return out
}

func accountEntry(v Voucher, accountID string, debit, credit float64, note string) AccountEntry {
	return AccountEntry{
		BusinessID:    v.BusinessID,
		AccountID:     accountID,
		VoucherID:     v.ID,
		VoucherType:   v.Type,
		VoucherNumber: v.Number,
		Date:          v.Date,
		Debit:         debit,
		Credit:        credit,
		Narration:     note,
	}
}

// posting is one side of a generated journal: positive amounts debit,
// negative amounts credit.
type posting struct {
	account string
	amount  float64
	name    string
}

func buildJournal(v Voucher, postings []posting) ([]AccountEntry, error) {
	note := narration(v, "")
	out := make([]AccountEntry, 0, len(postings))
	for _, p := range postings {
		if p.amount == 0 {
			continue
		}
		if p.account == "" {
			return nil, fmt.Errorf("%w: %s", ErrPostingAccountMissing, p.name)
		}
		if p.amount > 0 {
			out = append(out, accountEntry(v, p.account, p.amount, 0, note))
		} else {
			out = append(out, accountEntry(v, p.account, 0, -p.amount, note))
		}
	}
	return out, nil
}

func salesJournal(reverse bool) func(a PostingAccounts, v Voucher) ([]AccountEntry, error) {
	return func(a PostingAccounts, v Voucher) ([]AccountEntry, error) {
		totals := ItemTotals(v.Lines)
		sign := 1.0
		if reverse {
			sign = -1
		}
		return buildJournal(v, []posting{
			{v.PartyID, sign * totals.Grand, "party"},
			{a.Sales, -sign * totals.Net, "sales"},
			{a.OutputTax, -sign * totals.Tax, "output tax"},
		})
	}
}

func purchaseJournal(reverse bool) func(a PostingAccounts, v Voucher) ([]AccountEntry, error) {
	return func(a PostingAccounts, v Voucher) ([]AccountEntry, error) {
		totals := ItemTotals(v.Lines)
		sign := 1.0
		if reverse {
			sign = -1
		}
		return buildJournal(v, []posting{
			{a.Purchase, sign * totals.Net, "purchase"},
			{a.InputTax, sign * totals.Tax, "input tax"},
			{v.PartyID, -sign * totals.Grand, "party"},
		})
	}
}

func contractorJournal(a PostingAccounts, v Voucher) ([]AccountEntry, error) {
	if v.ContractorAmount <= 0 {
		return []AccountEntry{}, nil
	}
	return buildJournal(v, []posting{
		{a.JobWork, v.ContractorAmount, "job work"},
		{v.PartyID, -v.ContractorAmount, "contractor"},
	})
}

func accountLines(_ PostingAccounts, v Voucher) ([]AccountEntry, error) {
	out := make([]AccountEntry, 0, len(v.Lines))
	for _, l := range v.Lines {
		if l.Account == nil {
			continue
		}
		out = append(out, accountEntry(v, l.Account.AccountID, l.Account.Debit, l.Account.Credit, narration(v, l.Account.Narration)))
	}
	return out, nil
}
