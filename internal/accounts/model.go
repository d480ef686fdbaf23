// Package accounts maintains the chart of accounts and the opening balances
// that seed party ledgers.
package accounts

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/metrik/metrik/internal/shared"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeIncome    AccountType = "income"
	AccountTypeExpense   AccountType = "expense"
)

// Valid reports whether t is a known category.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense:
		return true
	}
	return false
}

// Opening is the balance brought into the books when the account was set up.
type Opening struct {
	Debit  float64 `json:"debit"`
	Credit float64 `json:"credit"`
}

// Net returns debit minus credit at currency precision.
func (o Opening) Net() float64 {
	f, _ := decimal.NewFromFloat(o.Debit).Sub(decimal.NewFromFloat(o.Credit)).Round(2).Float64()
	return f
}

// Account models a chart of accounts node. Parties are accounts too.
type Account struct {
	ID         string      `json:"id"`
	BusinessID string      `json:"business_id"`
	Name       string      `json:"name"`
	Code       string      `json:"code"`
	Type       AccountType `json:"type"`
	Group      string      `json:"group"`
	Opening    Opening     `json:"opening_balance"`
	IsSystem   bool        `json:"is_system"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

var (
	// ErrNotFound indicates the account does not exist.
	ErrNotFound = fmt.Errorf("%w: accounts: not found", shared.ErrNotFound)
	// ErrSystemAccount blocks edits to accounts the posting engine relies on.
	ErrSystemAccount = fmt.Errorf("%w: accounts: system accounts cannot be changed or deleted", shared.ErrForbidden)
	// ErrInvalid indicates missing name, code or an unknown type.
	ErrInvalid = fmt.Errorf("%w: accounts: name, code and a known type are required", shared.ErrBadRequest)
	// ErrInvalidOpening indicates a negative side or both sides set.
	ErrInvalidOpening = fmt.Errorf("%w: accounts: opening balance needs one non-negative side", shared.ErrBadRequest)
	// ErrDuplicateCode indicates the code is taken in the business.
	ErrDuplicateCode = fmt.Errorf("%w: accounts: code already in use", shared.ErrConflict)
	// ErrInUse indicates the account already carries ledger entries.
	ErrInUse = fmt.Errorf("%w: accounts: account has ledger entries", shared.ErrConflict)
)

// Validate checks the fields a caller supplies.
func (a Account) Validate() error {
	if a.Name == "" || a.Code == "" || !a.Type.Valid() {
		return ErrInvalid
	}
	if a.Opening.Debit < 0 || a.Opening.Credit < 0 || (a.Opening.Debit > 0 && a.Opening.Credit > 0) {
		return ErrInvalidOpening
	}
	return nil
}
