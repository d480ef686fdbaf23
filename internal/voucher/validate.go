package voucher

import "strings"

// Validate checks the structural preconditions every voucher must satisfy
// before any entry is generated.
//
// Physical stock adjustments are lenient per line: a line without item or with
// zero quantity is a no-op (the counted stock matched the books) and is skipped
// by the transformer instead of rejected. Every other item-based type treats a
// zero quantity as operator error.
func Validate(v Voucher) error {
	if !v.Type.Valid() {
		return &ValidationError{Err: ErrUnknownType, Details: string(v.Type)}
	}
	if strings.TrimSpace(v.BusinessID) == "" {
		return invalid(ErrBusinessRequired)
	}
	if v.Date.IsZero() {
		return invalid(ErrDateRequired)
	}
	if len(v.Lines) == 0 {
		return invalid(ErrNoLines)
	}
	want := LineKindItem
	if v.Type.Category() == CategoryAccount {
		want = LineKindAccount
	}
	for i, l := range v.Lines {
		if l.Kind != want || (want == LineKindItem && l.Item == nil) || (want == LineKindAccount && l.Account == nil) {
			return invalidLine(i, ErrLineKindMismatch)
		}
	}
	if want == LineKindAccount {
		return validateAccountLines(v)
	}
	return validateItemVoucher(v)
}

func validateItemVoucher(v Voucher) error {
	if v.Type.MovesStock() && strings.TrimSpace(v.MaterialCentreID) == "" {
		return invalid(ErrMaterialCentreRequired)
	}
	if v.Type.RequiresParty() && strings.TrimSpace(v.PartyID) == "" {
		return invalid(ErrPartyRequired)
	}
	switch v.Type {
	case TypeStockTransfer:
		dst := strings.TrimSpace(v.DestinationMaterialCentreID)
		if dst == "" || dst == strings.TrimSpace(v.MaterialCentreID) {
			return invalid(ErrDestinationRequired)
		}
	}

	outputs := 0
	for i, l := range v.Lines {
		line := l.Item
		if v.Type == TypePhysicalStock {
			if line.Rate < 0 {
				return invalidLine(i, ErrInvalidPricing)
			}
			continue
		}
		if strings.TrimSpace(line.ItemID) == "" {
			return invalidLine(i, ErrItemRequired)
		}
		if line.Quantity == 0 {
			return invalidLine(i, ErrZeroQuantity)
		}
		if line.Quantity < 0 {
			return invalidLine(i, ErrNegativeQuantity)
		}
		if line.Rate < 0 || line.GSTRate < 0 || line.Discount < 0 || line.Discount > 100 {
			return invalidLine(i, ErrInvalidPricing)
		}
		if v.Type == TypeProduction {
			switch line.Role {
			case RoleOutput:
				outputs++
			case RoleInput:
			default:
				return invalidLine(i, ErrInvalidRole)
			}
		}
	}
	if v.Type == TypeProduction && outputs == 0 {
		return invalid(ErrOutputRequired)
	}
	return nil
}

func validateAccountLines(v Voucher) error {
	for i, l := range v.Lines {
		line := l.Account
		if strings.TrimSpace(line.AccountID) == "" {
			return invalidLine(i, ErrAccountRequired)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return invalidLine(i, ErrInvalidAmount)
		}
		if (line.Debit > 0) == (line.Credit > 0) {
			return invalidLine(i, ErrInvalidAmount)
		}
	}
	return nil
}
