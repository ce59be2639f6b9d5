// Package autherr holds the closed set of failure kinds produced by the
// authentication core. Callers branch on Kind, never on message text.
package autherr

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindInvalidCredentials
	KindTokenExpired
	KindTokenInvalid
	KindTokenRevoked
	KindUserBanned
	KindNotFound
	KindDuplicateAccount
	KindRateLimited
	KindStoreUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindTokenExpired:
		return "token_expired"
	case KindTokenInvalid:
		return "token_invalid"
	case KindTokenRevoked:
		return "token_revoked"
	case KindUserBanned:
		return "user_banned"
	case KindNotFound:
		return "not_found"
	case KindDuplicateAccount:
		return "duplicate_account"
	case KindRateLimited:
		return "rate_limited"
	case KindStoreUnavailable:
		return "store_unavailable"
	default:
		return "internal"
	}
}

// Error is a tagged failure. Op names the operation that produced it and Err
// keeps the underlying cause for logs.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrTokenExpired       = &Error{Kind: KindTokenExpired}
	ErrTokenInvalid       = &Error{Kind: KindTokenInvalid}
	ErrTokenRevoked       = &Error{Kind: KindTokenRevoked}
	ErrUserBanned         = &Error{Kind: KindUserBanned}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrDuplicateAccount   = &Error{Kind: KindDuplicateAccount}
	ErrRateLimited        = &Error{Kind: KindRateLimited}
	ErrStoreUnavailable   = &Error{Kind: KindStoreUnavailable}
	ErrInternal           = &Error{Kind: KindInternal}
)

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
// Untagged errors are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInternal
}
