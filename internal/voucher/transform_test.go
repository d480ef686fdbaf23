package voucher

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testAccounts = PostingAccounts{
	Sales:     "acc-sales",
	Purchase:  "acc-purchase",
	OutputTax: "acc-output-tax",
	InputTax:  "acc-input-tax",
	JobWork:   "acc-job-work",
}

func itemVoucher(t Type, lines ...ItemLine) Voucher {
	v := Voucher{
		ID:               "v-1",
		BusinessID:       "biz-1",
		Type:             t,
		Number:           FormatNumber(t.Prefix(), "2024-25", 1),
		Date:             time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC),
		Status:           StatusPosted,
		MaterialCentreID: "mc-main",
		PartyID:          "party-1",
	}
	for _, l := range lines {
		v.Lines = append(v.Lines, NewItemLine(l))
	}
	return v
}

func TestPhysicalStockEntries(t *testing.T) {
	v := itemVoucher(TypePhysicalStock,
		ItemLine{ItemID: "item-a", Quantity: 5, Rate: 10},
		ItemLine{ItemID: "item-b", Quantity: -3, Rate: 4},
		ItemLine{ItemID: "item-c", Quantity: 0, Rate: 1},
		ItemLine{ItemID: "", Quantity: 7, Rate: 1},
	)
	entries, err := NewTransformer(testAccounts).InventoryEntries(v)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Equal(t, "item-a", entries[0].ItemID)
	require.Equal(t, DirectionIn, entries[0].Direction)
	require.Equal(t, 5.0, entries[0].Quantity)
	require.Equal(t, 10.0, entries[0].Rate)
	require.Equal(t, "Physical Stock Adjustment: PS/2024-25/0001", entries[0].Narration)

	require.Equal(t, "item-b", entries[1].ItemID)
	require.Equal(t, DirectionOut, entries[1].Direction)
	require.Equal(t, 3.0, entries[1].Quantity)
	require.Equal(t, "mc-main", entries[1].MaterialCentreID)
	require.Equal(t, "v-1", entries[1].VoucherID)
	require.Equal(t, TypePhysicalStock, entries[1].VoucherType)
}

func TestPhysicalStockEntriesProperty(t *testing.T) {
	quantities := []float64{-12.5, -1, 0, 0.25, 3, 0, 99, -0.001}
	for n := 1; n <= len(quantities); n++ {
		lines := make([]ItemLine, 0, n)
		for i := 0; i < n; i++ {
			lines = append(lines, ItemLine{ItemID: "item", Quantity: quantities[i], Rate: float64(i)})
		}
		v := itemVoucher(TypePhysicalStock, lines...)
		entries, err := NewTransformer(testAccounts).InventoryEntries(v)
		require.NoError(t, err)

		want := 0
		for _, l := range lines {
			if l.Quantity != 0 {
				want++
			}
		}
		require.Len(t, entries, want)

		j := 0
		for _, l := range lines {
			if l.Quantity == 0 {
				continue
			}
			e := entries[j]
			j++
			require.GreaterOrEqual(t, e.Quantity, 0.0)
			require.Equal(t, math.Abs(l.Quantity), e.Quantity)
			if l.Quantity > 0 {
				require.Equal(t, DirectionIn, e.Direction)
			} else {
				require.Equal(t, DirectionOut, e.Direction)
			}
		}
	}
}

func TestPhysicalStockHasNoJournal(t *testing.T) {
	v := itemVoucher(TypePhysicalStock, ItemLine{ItemID: "item-a", Quantity: 5, Rate: 10})
	journal, err := NewTransformer(testAccounts).JournalEntries(v)
	require.NoError(t, err)
	require.Empty(t, journal)
	require.NotNil(t, journal)
}

func TestMovementDirections(t *testing.T) {
	cases := map[Type]Direction{
		TypeSalesInvoice:    DirectionOut,
		TypePurchaseReturn:  DirectionOut,
		TypeDeliveryNote:    DirectionOut,
		TypePurchaseInvoice: DirectionIn,
		TypeSalesReturn:     DirectionIn,
		TypeGRN:             DirectionIn,
	}
	tr := NewTransformer(testAccounts)
	for typ, dir := range cases {
		v := itemVoucher(typ, ItemLine{ItemID: "item-a", Quantity: 2, Rate: 50})
		entries, err := tr.InventoryEntries(v)
		require.NoError(t, err, typ)
		require.Len(t, entries, 1, typ)
		require.Equal(t, dir, entries[0].Direction, typ)
		require.Equal(t, 2.0, entries[0].Quantity, typ)
		require.Equal(t, typ.Title()+": "+v.Number, entries[0].Narration, typ)
	}
}

func TestOrdersAndAccountTypesHaveNoStock(t *testing.T) {
	tr := NewTransformer(testAccounts)
	for _, typ := range []Type{TypeSalesOrder, TypePurchaseOrder} {
		entries, err := tr.InventoryEntries(itemVoucher(typ, ItemLine{ItemID: "item-a", Quantity: 2, Rate: 5}))
		require.NoError(t, err)
		require.Empty(t, entries)
		journal, err := tr.JournalEntries(itemVoucher(typ, ItemLine{ItemID: "item-a", Quantity: 2, Rate: 5}))
		require.NoError(t, err)
		require.Empty(t, journal)
	}
	v := Voucher{Type: TypeJournal, Lines: []Line{NewAccountLine(AccountLine{AccountID: "a", Debit: 1})}}
	entries, err := tr.InventoryEntries(v)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestStockTransferPairs(t *testing.T) {
	v := itemVoucher(TypeStockTransfer,
		ItemLine{ItemID: "item-a", Quantity: 4, Rate: 2},
		ItemLine{ItemID: "item-b", Quantity: 1, Rate: 9},
	)
	v.DestinationMaterialCentreID = "mc-branch"
	entries, err := NewTransformer(testAccounts).InventoryEntries(v)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	require.Equal(t, DirectionOut, entries[0].Direction)
	require.Equal(t, "mc-main", entries[0].MaterialCentreID)
	require.Equal(t, DirectionIn, entries[1].Direction)
	require.Equal(t, "mc-branch", entries[1].MaterialCentreID)
	require.Equal(t, "item-b", entries[2].ItemID)
	require.Equal(t, entries[2].Quantity, entries[3].Quantity)
}

func TestProductionMovements(t *testing.T) {
	v := itemVoucher(TypeProduction,
		ItemLine{ItemID: "fabric", Quantity: 10, Rate: 3, Role: RoleInput},
		ItemLine{ItemID: "shirt", Quantity: 24, Role: RoleOutput},
	)
	v.DestinationMaterialCentreID = "mc-finished"
	entries, err := NewTransformer(testAccounts).InventoryEntries(v)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, DirectionOut, entries[0].Direction)
	require.Equal(t, "mc-main", entries[0].MaterialCentreID)
	require.Equal(t, DirectionIn, entries[1].Direction)
	require.Equal(t, "mc-finished", entries[1].MaterialCentreID)

	v.DestinationMaterialCentreID = ""
	entries, err = NewTransformer(testAccounts).InventoryEntries(v)
	require.NoError(t, err)
	require.Equal(t, "mc-main", entries[1].MaterialCentreID)
}

func TestProductionContractorJournal(t *testing.T) {
	v := itemVoucher(TypeProduction, ItemLine{ItemID: "shirt", Quantity: 24, Role: RoleOutput})
	tr := NewTransformer(testAccounts)

	journal, err := tr.JournalEntries(v)
	require.NoError(t, err)
	require.Empty(t, journal)

	v.ContractorAmount = 240
	journal, err = tr.JournalEntries(v)
	require.NoError(t, err)
	require.Len(t, journal, 2)
	require.Equal(t, "acc-job-work", journal[0].AccountID)
	require.Equal(t, 240.0, journal[0].Debit)
	require.Equal(t, "party-1", journal[1].AccountID)
	require.Equal(t, 240.0, journal[1].Credit)
}

func sumJournal(entries []AccountEntry) (debit, credit float64) {
	for _, e := range entries {
		debit += e.Debit
		credit += e.Credit
	}
	return debit, credit
}

func TestSalesInvoiceJournal(t *testing.T) {
	v := itemVoucher(TypeSalesInvoice,
		ItemLine{ItemID: "item-a", Quantity: 2, Rate: 100, Discount: 10, GSTRate: 18},
		ItemLine{ItemID: "item-b", Quantity: 1, Rate: 50},
	)
	journal, err := NewTransformer(testAccounts).JournalEntries(v)
	require.NoError(t, err)
	require.Len(t, journal, 3)

	// gross 250, discount 20, net 230, tax 32.40
	require.Equal(t, "party-1", journal[0].AccountID)
	require.InDelta(t, 262.40, journal[0].Debit, 1e-9)
	require.Equal(t, "acc-sales", journal[1].AccountID)
	require.InDelta(t, 230.0, journal[1].Credit, 1e-9)
	require.Equal(t, "acc-output-tax", journal[2].AccountID)
	require.InDelta(t, 32.40, journal[2].Credit, 1e-9)

	debit, credit := sumJournal(journal)
	require.InDelta(t, debit, credit, 1e-9)
}

func TestSalesReturnMirrorsInvoice(t *testing.T) {
	v := itemVoucher(TypeSalesReturn, ItemLine{ItemID: "item-a", Quantity: 1, Rate: 100})
	journal, err := NewTransformer(testAccounts).JournalEntries(v)
	require.NoError(t, err)
	require.Len(t, journal, 2, "zero tax leg is omitted")
	require.Equal(t, "party-1", journal[0].AccountID)
	require.Equal(t, 100.0, journal[0].Credit)
	require.Equal(t, "acc-sales", journal[1].AccountID)
	require.Equal(t, 100.0, journal[1].Debit)
}

func TestPurchaseJournals(t *testing.T) {
	tr := NewTransformer(testAccounts)
	v := itemVoucher(TypePurchaseInvoice, ItemLine{ItemID: "item-a", Quantity: 10, Rate: 10, GSTRate: 5})
	journal, err := tr.JournalEntries(v)
	require.NoError(t, err)
	require.Len(t, journal, 3)
	require.Equal(t, "acc-purchase", journal[0].AccountID)
	require.Equal(t, 100.0, journal[0].Debit)
	require.Equal(t, "acc-input-tax", journal[1].AccountID)
	require.Equal(t, 5.0, journal[1].Debit)
	require.Equal(t, "party-1", journal[2].AccountID)
	require.Equal(t, 105.0, journal[2].Credit)

	v.Type = TypePurchaseReturn
	journal, err = tr.JournalEntries(v)
	require.NoError(t, err)
	require.Equal(t, 100.0, journal[0].Credit)
	require.Equal(t, 105.0, journal[2].Debit)
}

func TestMissingPostingAccount(t *testing.T) {
	v := itemVoucher(TypeSalesInvoice, ItemLine{ItemID: "item-a", Quantity: 1, Rate: 100, GSTRate: 5})
	_, err := NewTransformer(PostingAccounts{Sales: "acc-sales"}).JournalEntries(v)
	require.ErrorIs(t, err, ErrPostingAccountMissing)
}

func TestAccountLinesPostedVerbatim(t *testing.T) {
	v := Voucher{
		ID:        "v-2",
		Type:      TypePayment,
		Number:    "PAY/2024-25/0003",
		Narration: "rent",
		Lines: []Line{
			NewAccountLine(AccountLine{AccountID: "rent", Debit: 500}),
			NewAccountLine(AccountLine{AccountID: "bank", Credit: 500, Narration: "cheque 1102"}),
		},
	}
	journal, err := NewTransformer(testAccounts).JournalEntries(v)
	require.NoError(t, err)
	require.Len(t, journal, 2)
	require.Equal(t, "rent", journal[0].Narration)
	require.Equal(t, "cheque 1102", journal[1].Narration)
	require.Equal(t, 500.0, journal[1].Credit)
	require.Equal(t, "PAY/2024-25/0003", journal[0].VoucherNumber)
}

func TestUnknownType(t *testing.T) {
	_, err := NewTransformer(testAccounts).InventoryEntries(Voucher{Type: "bogus"})
	require.ErrorIs(t, err, ErrUnknownType)
}
