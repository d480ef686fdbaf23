package voucher

import (
	"time"
)

const dateLayout = "2006-01-02"

type lineRequest struct {
	ItemID    string   `json:"item_id"`
	Quantity  float64  `json:"quantity"`
	Rate      float64  `json:"rate"`
	Discount  float64  `json:"discount"`
	GSTRate   float64  `json:"gst_rate"`
	Role      LineRole `json:"role" validate:"omitempty,oneof=input output"`
	AccountID string   `json:"account_id"`
	Debit     float64  `json:"debit"`
	Credit    float64  `json:"credit"`
	Narration string   `json:"narration"`
}

type linkRequest struct {
	VoucherID    string `json:"voucher_id" validate:"required,uuid"`
	Relationship string `json:"relationship" validate:"required"`
}

type postRequest struct {
	VoucherType                 string        `json:"voucher_type" validate:"required"`
	Date                        string        `json:"date" validate:"required,datetime=2006-01-02"`
	Narration                   string        `json:"narration"`
	MaterialCentreID            string        `json:"material_centre_id"`
	DestinationMaterialCentreID string        `json:"destination_material_centre_id"`
	PartyID                     string        `json:"party_id"`
	LineItems                   []lineRequest `json:"line_items" validate:"required,min=1,dive"`
	LinkedVouchers              []linkRequest `json:"linked_vouchers" validate:"omitempty,dive"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// toVoucher maps the request onto a draft. The date was checked by the
// validator so the parse error is not expected.
func (p postRequest) toVoucher(businessID string) Voucher {
	date, _ := time.Parse(dateLayout, p.Date)
	t := Type(p.VoucherType)
	v := Voucher{
		BusinessID:                  businessID,
		Type:                        t,
		Date:                        date,
		Narration:                   p.Narration,
		MaterialCentreID:            p.MaterialCentreID,
		DestinationMaterialCentreID: p.DestinationMaterialCentreID,
		PartyID:                     p.PartyID,
	}
	for _, l := range p.LineItems {
		if t.Category() == CategoryAccount {
			v.Lines = append(v.Lines, NewAccountLine(AccountLine{
				AccountID: l.AccountID,
				Debit:     l.Debit,
				Credit:    l.Credit,
				Narration: l.Narration,
			}))
			continue
		}
		v.Lines = append(v.Lines, NewItemLine(ItemLine{
			ItemID:    l.ItemID,
			Quantity:  l.Quantity,
			Rate:      l.Rate,
			Discount:  l.Discount,
			GSTRate:   l.GSTRate,
			Role:      l.Role,
			Narration: l.Narration,
		}))
	}
	for _, l := range p.LinkedVouchers {
		v.Links = append(v.Links, Link{VoucherID: l.VoucherID, Relationship: l.Relationship})
	}
	return v
}
