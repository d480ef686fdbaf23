package contractor

import (
	"fmt"

	"github.com/metrik/metrik/internal/shared"
)

// RateUOM selects how an item rate is denominated.
type RateUOM string

const (
	// RatePerUnit charges rate for every base unit produced.
	RatePerUnit RateUOM = "per_unit"
	// RatePerDozen charges rate for every twelve units produced.
	RatePerDozen RateUOM = "per_dozen"
)

// Valid reports whether u is a known rate denomination.
func (u RateUOM) Valid() bool {
	return u == RatePerUnit || u == RatePerDozen
}

// ItemRate is one row of a contractor's rate table.
type ItemRate struct {
	ItemID string  `json:"item_id"`
	Rate   float64 `json:"rate"`
	UOM    RateUOM `json:"rate_uom"`
}

// Settings hold the contractor configuration stored on a party of type contractor.
type Settings struct {
	PartyID                 string     `json:"party_id"`
	Enabled                 bool       `json:"is_enabled"`
	ConsumeMaterialCentreID string     `json:"consume_material_centre_id"`
	OutputMaterialCentreID  string     `json:"output_material_centre_id"`
	LinkedUserID            string     `json:"linked_user_id,omitempty"`
	ItemRates               []ItemRate `json:"item_rates"`
}

// RateFor returns the rate row for itemID.
func (s Settings) RateFor(itemID string) (ItemRate, bool) {
	for _, r := range s.ItemRates {
		if r.ItemID == itemID {
			return r, true
		}
	}
	return ItemRate{}, false
}

// Notice is a non-fatal signal attached to a calculation.
type Notice string

// NoticeNotAssigned means the output item has no rate for the contractor.
const NoticeNotAssigned Notice = "not_assigned"

var (
	// ErrNotContractor indicates the party has no enabled contractor settings.
	ErrNotContractor = fmt.Errorf("%w: contractor: party is not an enabled contractor", shared.ErrBadRequest)
	// ErrInvalidQuantity indicates a non-positive output quantity.
	ErrInvalidQuantity = fmt.Errorf("%w: contractor: output quantity must be greater than zero", shared.ErrBadRequest)
	// ErrInvalidRate indicates a rate row without item, with a negative rate or an unknown denomination.
	ErrInvalidRate = fmt.Errorf("%w: contractor: each rate needs an item, a non-negative rate and rate_uom per_unit or per_dozen", shared.ErrBadRequest)
	// ErrDuplicateRate indicates two rate rows for one item.
	ErrDuplicateRate = fmt.Errorf("%w: contractor: item listed twice in rate table", shared.ErrBadRequest)
	// ErrSettingsNotFound indicates no settings row exists.
	ErrSettingsNotFound = fmt.Errorf("%w: contractor: settings not found", shared.ErrNotFound)
)
