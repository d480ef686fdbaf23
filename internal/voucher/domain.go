package voucher

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type enumerates supported voucher types.
type Type string

const (
	TypeSalesInvoice    Type = "sales_invoice"
	TypeSalesReturn     Type = "sales_return"
	TypePurchaseInvoice Type = "purchase_invoice"
	TypePurchaseReturn  Type = "purchase_return"
	TypeSalesOrder      Type = "sales_order"
	TypePurchaseOrder   Type = "purchase_order"
	TypeDeliveryNote    Type = "delivery_note"
	TypeGRN             Type = "grn"
	TypeStockTransfer   Type = "stock_transfer"
	TypeProduction      Type = "production"
	TypePhysicalStock   Type = "physical_stock"
	TypePayment         Type = "payment"
	TypeReceipt         Type = "receipt"
	TypeJournal         Type = "journal"
	TypeContra          Type = "contra"
)

// Category decides which line shape a voucher type carries.
type Category string

const (
	CategoryItem    Category = "item"
	CategoryAccount Category = "account"
)

type typeInfo struct {
	category Category
	title    string
	prefix   string
	party    bool
}

var types = map[Type]typeInfo{
	TypeSalesInvoice:    {CategoryItem, "Sales Invoice", "SI", true},
	TypeSalesReturn:     {CategoryItem, "Sales Return", "SR", true},
	TypePurchaseInvoice: {CategoryItem, "Purchase Invoice", "PI", true},
	TypePurchaseReturn:  {CategoryItem, "Purchase Return", "PR", true},
	TypeSalesOrder:      {CategoryItem, "Sales Order", "SO", true},
	TypePurchaseOrder:   {CategoryItem, "Purchase Order", "PO", true},
	TypeDeliveryNote:    {CategoryItem, "Delivery Note", "DN", false},
	TypeGRN:             {CategoryItem, "Goods Receipt Note", "GRN", false},
	TypeStockTransfer:   {CategoryItem, "Stock Transfer", "ST", false},
	TypeProduction:      {CategoryItem, "Production", "PRD", false},
	TypePhysicalStock:   {CategoryItem, "Physical Stock", "PS", false},
	TypePayment:         {CategoryAccount, "Payment", "PAY", false},
	TypeReceipt:         {CategoryAccount, "Receipt", "RCT", false},
	TypeJournal:         {CategoryAccount, "Journal", "JV", false},
	TypeContra:          {CategoryAccount, "Contra", "CV", false},
}

// Types lists every voucher type in display order.
func Types() []Type {
	return []Type{
		TypeSalesInvoice, TypeSalesReturn, TypePurchaseInvoice, TypePurchaseReturn,
		TypeSalesOrder, TypePurchaseOrder, TypeDeliveryNote, TypeGRN, TypeStockTransfer,
		TypeProduction, TypePhysicalStock, TypePayment, TypeReceipt, TypeJournal, TypeContra,
	}
}

// Valid reports whether t is a known voucher type.
func (t Type) Valid() bool {
	_, ok := types[t]
	return ok
}

// Category returns the line category of t.
func (t Type) Category() Category {
	return types[t].category
}

// Title returns the human readable name of t.
func (t Type) Title() string {
	return types[t].title
}

// Prefix returns the numbering prefix of t.
func (t Type) Prefix() string {
	return types[t].prefix
}

// RequiresParty reports whether vouchers of t must name a party.
func (t Type) RequiresParty() bool {
	return types[t].party
}

// IsOrder reports whether t is an order, which may be hard-deleted while open.
func (t Type) IsOrder() bool {
	return t == TypeSalesOrder || t == TypePurchaseOrder
}

// MovesStock reports whether posting t produces inventory entries.
func (t Type) MovesStock() bool {
	return t.Category() == CategoryItem && !t.IsOrder()
}

// Status enumerates voucher lifecycle states.
type Status string

const (
	StatusPosted    Status = "posted"
	StatusCancelled Status = "cancelled"
)

// LineKind discriminates the Line union.
type LineKind string

const (
	LineKindItem    LineKind = "item"
	LineKindAccount LineKind = "account"
)

// LineRole marks production lines as consumed inputs or produced outputs.
type LineRole string

const (
	RoleNone   LineRole = ""
	RoleInput  LineRole = "input"
	RoleOutput LineRole = "output"
)

// ItemLine is a line of an item-based voucher. Quantity is signed only for
// physical stock adjustments.
type ItemLine struct {
	ItemID    string   `json:"item_id"`
	Quantity  float64  `json:"quantity"`
	Rate      float64  `json:"rate"`
	Discount  float64  `json:"discount"`
	GSTRate   float64  `json:"gst_rate"`
	Role      LineRole `json:"role,omitempty"`
	Narration string   `json:"narration,omitempty"`
}

// AccountLine is a line of an account-based voucher.
type AccountLine struct {
	AccountID string  `json:"account_id"`
	Debit     float64 `json:"debit"`
	Credit    float64 `json:"credit"`
	Narration string  `json:"narration,omitempty"`
}

// Line holds exactly one of Item or Account, selected by Kind.
type Line struct {
	Kind    LineKind
	Item    *ItemLine
	Account *AccountLine
}

// NewItemLine wraps an item line.
func NewItemLine(l ItemLine) Line {
	return Line{Kind: LineKindItem, Item: &l}
}

// NewAccountLine wraps an account line.
func NewAccountLine(l AccountLine) Line {
	return Line{Kind: LineKindAccount, Account: &l}
}

type itemLineJSON struct {
	Kind LineKind `json:"kind"`
	ItemLine
}

type accountLineJSON struct {
	Kind LineKind `json:"kind"`
	AccountLine
}

// MarshalJSON encodes the line flat with a "kind" discriminator.
func (l Line) MarshalJSON() ([]byte, error) {
	switch {
	case l.Kind == LineKindItem && l.Item != nil:
		return json.Marshal(itemLineJSON{Kind: l.Kind, ItemLine: *l.Item})
	case l.Kind == LineKindAccount && l.Account != nil:
		return json.Marshal(accountLineJSON{Kind: l.Kind, AccountLine: *l.Account})
	}
	return nil, fmt.Errorf("voucher: line kind %q has no payload", l.Kind)
}

// UnmarshalJSON decodes a line written by MarshalJSON.
func (l *Line) UnmarshalJSON(data []byte) error {
	var head struct {
		Kind LineKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	switch head.Kind {
	case LineKindItem:
		var v itemLineJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*l = NewItemLine(v.ItemLine)
	case LineKindAccount:
		var v accountLineJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*l = NewAccountLine(v.AccountLine)
	default:
		return fmt.Errorf("voucher: unknown line kind %q", head.Kind)
	}
	return nil
}

// Link ties a voucher to another one, e.g. an invoice raised against an order.
type Link struct {
	VoucherID    string `json:"voucher_id"`
	Relationship string `json:"relationship"`
}

// Voucher is a posted business transaction.
type Voucher struct {
	ID                          string    `json:"id"`
	BusinessID                  string    `json:"business_id"`
	Type                        Type      `json:"voucher_type"`
	Number                      string    `json:"voucher_number"`
	Date                        time.Time `json:"date"`
	Status                      Status    `json:"status"`
	FinancialYear               string    `json:"financial_year"`
	Narration                   string    `json:"narration,omitempty"`
	MaterialCentreID            string    `json:"material_centre_id,omitempty"`
	DestinationMaterialCentreID string    `json:"destination_material_centre_id,omitempty"`
	PartyID                     string    `json:"party_id,omitempty"`
	Lines                       []Line    `json:"line_items"`
	Links                       []Link    `json:"linked_vouchers,omitempty"`
	GrandTotal                  float64   `json:"grand_total"`
	ContractorAmount            float64   `json:"contractor_amount,omitempty"`
	CancelReason                string    `json:"cancel_reason,omitempty"`
	CreatedBy                   string    `json:"created_by,omitempty"`
}

// Direction is the stock movement direction of an inventory entry.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// InventoryEntry is one stock movement derived from a voucher line.
type InventoryEntry struct {
	BusinessID       string    `json:"business_id"`
	ItemID           string    `json:"item_id"`
	MaterialCentreID string    `json:"material_centre_id"`
	VoucherID        string    `json:"voucher_id"`
	VoucherType      Type      `json:"voucher_type"`
	VoucherNumber    string    `json:"voucher_number"`
	Date             time.Time `json:"date"`
	Direction        Direction `json:"type"`
	Quantity         float64   `json:"quantity"`
	Rate             float64   `json:"rate"`
	Narration        string    `json:"narration"`
}

// AccountEntry is one debit or credit posting against an account.
type AccountEntry struct {
	BusinessID    string    `json:"business_id"`
	AccountID     string    `json:"account_id"`
	VoucherID     string    `json:"voucher_id"`
	VoucherType   Type      `json:"voucher_type"`
	VoucherNumber string    `json:"voucher_number"`
	Date          time.Time `json:"date"`
	Debit         float64   `json:"debit"`
	Credit        float64   `json:"credit"`
	Narration     string    `json:"narration"`
}

// PostingAccounts are the chart-of-accounts IDs item-based vouchers post
// their financial effect against.
type PostingAccounts struct {
	Sales     string
	Purchase  string
	OutputTax string
	InputTax  string
	JobWork   string
}

// Notice is a non-fatal condition reported alongside a posted voucher.
type Notice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	// NoticeNotAssigned flags a contractor output item without a rate.
	NoticeNotAssigned = "not_assigned"
	// NoticeUnbalanced flags account lines whose debits and credits differ.
	NoticeUnbalanced = "unbalanced"
)

// PermissionModule returns the permission module guarding vouchers of t.
func (t Type) PermissionModule() string {
	switch t {
	case TypeSalesInvoice, TypeSalesReturn, TypeSalesOrder:
		return "sales"
	case TypePurchaseInvoice, TypePurchaseReturn, TypePurchaseOrder:
		return "purchase"
	case TypeProduction:
		return "production"
	case TypePayment, TypeReceipt, TypeJournal, TypeContra:
		return "accounts"
	}
	return "inventory"
}
