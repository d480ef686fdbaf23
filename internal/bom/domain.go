// Package bom manages bills of materials and expands them into production
// voucher inputs.
package bom

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/metrik/metrik/internal/shared"
	"github.com/metrik/metrik/internal/voucher"
)

// Status tracks a BOM version through its lifecycle.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Input is one raw material consumed per OutputQuantity units of output.
type Input struct {
	ItemID         string  `json:"item_id"`
	Quantity       float64 `json:"quantity"`
	WastagePercent float64 `json:"wastage_percent"`
	Narration      string  `json:"narration,omitempty"`
}

// BOM is a versioned recipe for one output item.
type BOM struct {
	ID             string    `json:"id"`
	BusinessID     string    `json:"business_id"`
	Name           string    `json:"name"`
	OutputItemID   string    `json:"output_item_id"`
	OutputQuantity float64   `json:"output_quantity"`
	Inputs         []Input   `json:"inputs"`
	Version        int       `json:"version"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// Requirement is the scaled quantity of one input for a production run.
type Requirement struct {
	ItemID    string  `json:"item_id"`
	Quantity  float64 `json:"quantity"`
	Narration string  `json:"narration,omitempty"`
}

var (
	// ErrNotFound indicates the BOM does not exist.
	ErrNotFound = fmt.Errorf("%w: bom: not found", shared.ErrNotFound)
	// ErrInvalid indicates a BOM that cannot be saved.
	ErrInvalid = fmt.Errorf("%w: bom: output item, positive output quantity and at least one input are required", shared.ErrBadRequest)
	// ErrInvalidInput indicates an input row without item, with non-positive
	// quantity or with wastage outside 0-100.
	ErrInvalidInput = fmt.Errorf("%w: bom: each input needs an item, a positive quantity and wastage between 0 and 100", shared.ErrBadRequest)
	// ErrInvalidQuantity indicates a non-positive requested output.
	ErrInvalidQuantity = fmt.Errorf("%w: bom: requested quantity must be greater than zero", shared.ErrBadRequest)
	// ErrNotEditable indicates a change to a BOM that is no longer a draft.
	ErrNotEditable = fmt.Errorf("%w: bom: only draft versions can be changed", shared.ErrConflict)
	// ErrVersionExists indicates a concurrent writer took the version number.
	ErrVersionExists = fmt.Errorf("%w: bom: version already exists", shared.ErrConflict)
)

// Validate checks the BOM header and every input row.
func (b BOM) Validate() error {
	if b.OutputItemID == "" || b.OutputQuantity <= 0 || len(b.Inputs) == 0 {
		return ErrInvalid
	}
	for _, in := range b.Inputs {
		if in.ItemID == "" || in.Quantity <= 0 || in.WastagePercent < 0 || in.WastagePercent > 100 {
			return ErrInvalidInput
		}
	}
	return nil
}

// Expand scales every input by requestedQty/OutputQuantity and applies its
// wastage allowance. Quantities are rounded to four decimals.
func Expand(b BOM, requestedQty float64) ([]Requirement, error) {
	if requestedQty <= 0 {
		return nil, ErrInvalidQuantity
	}
	if b.OutputQuantity <= 0 {
		return nil, ErrInvalid
	}
	factor := decimal.NewFromFloat(requestedQty).Div(decimal.NewFromFloat(b.OutputQuantity))
	hundred := decimal.NewFromInt(100)
	out := make([]Requirement, 0, len(b.Inputs))
	for _, in := range b.Inputs {
		wastage := decimal.NewFromInt(1).Add(decimal.NewFromFloat(in.WastagePercent).Div(hundred))
		qty, _ := decimal.NewFromFloat(in.Quantity).Mul(factor).Mul(wastage).Round(4).Float64()
		out = append(out, Requirement{ItemID: in.ItemID, Quantity: qty, Narration: in.Narration})
	}
	return out, nil
}

// ToProductionLines turns requirements into production input lines. Rates
// are left at zero for the caller to price.
func ToProductionLines(reqs []Requirement) []voucher.Line {
	lines := make([]voucher.Line, 0, len(reqs))
	for _, r := range reqs {
		lines = append(lines, voucher.Line{
			Kind: voucher.LineKindItem,
			Item: &voucher.ItemLine{
				ItemID:    r.ItemID,
				Quantity:  r.Quantity,
				Role:      voucher.RoleInput,
				Narration: r.Narration,
			},
		})
	}
	return lines
}

// NewVersion copies prev into a new draft numbered after latestVersion.
func NewVersion(prev BOM, latestVersion int) BOM {
	next := prev
	next.ID = ""
	next.Version = latestVersion + 1
	next.Status = StatusDraft
	next.CreatedAt = time.Time{}
	next.Inputs = append([]Input(nil), prev.Inputs...)
	return next
}
