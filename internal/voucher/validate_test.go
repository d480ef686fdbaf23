package voucher

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/metrik/metrik/internal/shared"
)

func TestValidate(t *testing.T) {
	accountVoucher := func(lines ...AccountLine) Voucher {
		v := itemVoucher(TypeJournal)
		for _, l := range lines {
			v.Lines = append(v.Lines, NewAccountLine(l))
		}
		return v
	}
	transfer := itemVoucher(TypeStockTransfer, ItemLine{ItemID: "a", Quantity: 1})
	transfer.DestinationMaterialCentreID = transfer.MaterialCentreID
	noMC := itemVoucher(TypeGRN, ItemLine{ItemID: "a", Quantity: 1})
	noMC.MaterialCentreID = ""
	noParty := itemVoucher(TypeSalesInvoice, ItemLine{ItemID: "a", Quantity: 1})
	noParty.PartyID = ""
	wrongShape := itemVoucher(TypeSalesInvoice)
	wrongShape.Lines = []Line{NewAccountLine(AccountLine{AccountID: "x", Debit: 1})}

	cases := []struct {
		name string
		v    Voucher
		err  error
	}{
		{"unknown type", Voucher{Type: "bogus"}, ErrUnknownType},
		{"no lines", itemVoucher(TypeSalesInvoice), ErrNoLines},
		{"kind mismatch", wrongShape, ErrLineKindMismatch},
		{"missing item", itemVoucher(TypeSalesInvoice, ItemLine{Quantity: 1}), ErrItemRequired},
		{"zero quantity", itemVoucher(TypeSalesInvoice, ItemLine{ItemID: "a"}), ErrZeroQuantity},
		{"negative quantity", itemVoucher(TypeGRN, ItemLine{ItemID: "a", Quantity: -1}), ErrNegativeQuantity},
		{"bad discount", itemVoucher(TypeSalesInvoice, ItemLine{ItemID: "a", Quantity: 1, Discount: 120}), ErrInvalidPricing},
		{"missing material centre", noMC, ErrMaterialCentreRequired},
		{"missing party", noParty, ErrPartyRequired},
		{"same destination", transfer, ErrDestinationRequired},
		{"production without output", itemVoucher(TypeProduction, ItemLine{ItemID: "a", Quantity: 1, Role: RoleInput}), ErrOutputRequired},
		{"production without role", itemVoucher(TypeProduction, ItemLine{ItemID: "a", Quantity: 1}), ErrInvalidRole},
		{"account missing", accountVoucher(AccountLine{Debit: 5}), ErrAccountRequired},
		{"negative amount", accountVoucher(AccountLine{AccountID: "a", Debit: -5}), ErrInvalidAmount},
		{"both sides", accountVoucher(AccountLine{AccountID: "a", Debit: 5, Credit: 5}), ErrInvalidAmount},
		{"neither side", accountVoucher(AccountLine{AccountID: "a"}), ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.v)
			require.ErrorIs(t, err, tc.err)
			require.ErrorIs(t, err, shared.ErrBadRequest)
		})
	}
}

func TestValidateAcceptsPhysicalStockZeroLines(t *testing.T) {
	v := itemVoucher(TypePhysicalStock,
		ItemLine{ItemID: "a", Quantity: 0},
		ItemLine{ItemID: "", Quantity: 3},
		ItemLine{ItemID: "b", Quantity: -2},
	)
	require.NoError(t, Validate(v))
}

func TestValidateLineNumberInMessage(t *testing.T) {
	v := itemVoucher(TypeSalesInvoice,
		ItemLine{ItemID: "a", Quantity: 1},
		ItemLine{ItemID: "b", Quantity: 0},
	)
	err := Validate(v)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, 2, verr.Line)
	require.Contains(t, err.Error(), "line 2")
}

func TestValidateAcceptsWellFormedVouchers(t *testing.T) {
	transfer := itemVoucher(TypeStockTransfer, ItemLine{ItemID: "a", Quantity: 1})
	transfer.DestinationMaterialCentreID = "mc-other"
	order := itemVoucher(TypeSalesOrder, ItemLine{ItemID: "a", Quantity: 1})
	order.MaterialCentreID = ""
	for _, v := range []Voucher{
		itemVoucher(TypeSalesInvoice, ItemLine{ItemID: "a", Quantity: 1, Rate: 10, GSTRate: 18}),
		transfer,
		order,
		itemVoucher(TypeProduction,
			ItemLine{ItemID: "a", Quantity: 1, Role: RoleInput},
			ItemLine{ItemID: "b", Quantity: 1, Role: RoleOutput}),
	} {
		require.NoError(t, Validate(v), v.Type)
	}
}
