package board

import "errors"

var (
	// ErrNotFound means a referenced record does not exist.
	ErrNotFound = errors.New("board: record not found")
	// ErrForbidden means the acting user is authenticated but not the owner.
	ErrForbidden = errors.New("board: not allowed")
	// ErrDuplicate means a write violated a uniqueness constraint.
	ErrDuplicate = errors.New("board: duplicate entry")
)

// ValidationError reports malformed registration or profile input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

// AuthReason distinguishes the two ways a login can fail.
type AuthReason int

const (
	ReasonUserNotFound AuthReason = iota + 1
	ReasonBadCredentials
)

// AuthError is returned by Login. Callers rendering it to users should show
// a generic message rather than the specific reason.
type AuthError struct {
	Reason AuthReason
}

func (e *AuthError) Error() string {
	switch e.Reason {
	case ReasonUserNotFound:
		return "auth: user not found"
	case ReasonBadCredentials:
		return "auth: bad credentials"
	}
	return "auth: failed"
}
