package voucher

import "strings"

// Cancel marks a posted voucher cancelled. Cancelled vouchers keep their
// number; their entries stop contributing to ledgers.
func Cancel(v Voucher, reason string) (Voucher, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return v, invalid(ErrCancelReasonRequired)
	}
	if v.Status == StatusCancelled {
		return v, ErrAlreadyCancelled
	}
	v.Status = StatusCancelled
	v.CancelReason = reason
	return v, nil
}

// CanDelete reports whether v may be hard-deleted: only posted orders that no
// other voucher has been raised against.
func CanDelete(v Voucher, hasDependents bool) error {
	if !v.Type.IsOrder() || v.Status != StatusPosted || hasDependents {
		return ErrNotDeletable
	}
	return nil
}
