package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrBadRequest marks input the caller must correct before resubmitting.
	ErrBadRequest = errors.New("bad request")
	// ErrForbidden indicates the actor may not perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates the request clashes with current state.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized indicates a missing or unknown session token.
	ErrUnauthorized = errors.New("unauthorized")
)

// UserSafeMessage returns the message shown to end users. Domain errors pass
// through as-is; anything unclassified is reduced to a generic sentence.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden), errors.Is(err, ErrConflict),
		errors.Is(err, ErrUnauthorized):
		return err.Error()
	}
	return "internal error, please try again later"
}
