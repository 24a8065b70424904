package domain

import "fmt"

// Kind 业务错误类别
type Kind string

const (
	KindAlreadyExists   Kind = "ALREADY_EXISTS"
	KindNotFound        Kind = "NOT_FOUND"
	KindUnauthorized    Kind = "UNAUTHORIZED"
	KindForbidden       Kind = "FORBIDDEN"
	KindInvalidArgument Kind = "INVALID_ARGUMENT"
	KindInvalidRange    Kind = "INVALID_RANGE"
	KindInvalidState    Kind = "INVALID_STATE"
	KindInsufficient    Kind = "INSUFFICIENT"
)

// Forbidden 的细分原因
const (
	ReasonLocked         = "locked"
	ReasonUnapproved     = "unapproved"
	ReasonUnknownAccount = "unknown_account"
	ReasonWrongWeekday   = "wrong_weekday"
	ReasonWrongOwner     = "wrong_owner"
)

// Error 业务错误，调用方可通过 errors.Is 按类别或原因区分
type Error struct {
	Kind    Kind
	Reason  string
	Message string
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is 类别相同即匹配；目标带原因时还要求原因一致
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// Errorf 构造业务错误
func Errorf(kind Kind, reason, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrAlreadyExists   = &Error{Kind: KindAlreadyExists, Message: "already exists"}
	ErrNotFound        = &Error{Kind: KindNotFound, Message: "not found"}
	ErrUnauthorized    = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrForbidden       = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument, Message: "invalid argument"}
	ErrInvalidRange    = &Error{Kind: KindInvalidRange, Message: "amount out of range"}
	ErrInvalidState    = &Error{Kind: KindInvalidState, Message: "illegal state transition"}
	ErrInsufficient    = &Error{Kind: KindInsufficient, Message: "insufficient balance"}

	ErrAccountLocked     = &Error{Kind: KindForbidden, Reason: ReasonLocked, Message: "account locked"}
	ErrAccountUnapproved = &Error{Kind: KindForbidden, Reason: ReasonUnapproved, Message: "account not approved"}
	ErrUnknownAccount    = &Error{Kind: KindForbidden, Reason: ReasonUnknownAccount, Message: "unknown account"}
	ErrWrongWeekday      = &Error{Kind: KindForbidden, Reason: ReasonWrongWeekday, Message: "withdrawals are closed today"}
	ErrWrongOwner        = &Error{Kind: KindForbidden, Reason: ReasonWrongOwner, Message: "not the account owner"}
)
