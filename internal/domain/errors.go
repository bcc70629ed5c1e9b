package domain

import (
	"errors"
	"fmt"
)

// Ошибки слоя хранения.
var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrPasswordMissMatch = errors.New("password mismatch")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrCheckViolation    = errors.New("check constraint violation")
	ErrLockTimeout       = errors.New("lock wait timeout")
	ErrSerialization     = errors.New("serialization failure")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrNoTransaction     = errors.New("operation requires an active transaction")
	ErrRowNotLocked      = errors.New("row is not locked by the transaction")
	ErrUnknown           = errors.New("unknown error")
)

type ErrorKind string

const (
	KindInvalidAmount     ErrorKind = "InvalidAmount"
	KindSameAccount       ErrorKind = "SameAccount"
	KindAccountNotFound   ErrorKind = "AccountNotFound"
	KindInsufficientFunds ErrorKind = "InsufficientFunds"
	KindConflict          ErrorKind = "Conflict"
	KindStoreUnavailable  ErrorKind = "StoreUnavailable"
	KindInternal          ErrorKind = "Internal"
)

// Сентинелы видов ошибок перевода, с ними работает errors.Is для *TransferError.
var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrSameAccount       = errors.New("sender and receiver are the same account")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrConflict          = errors.New("transfer conflict")
	ErrInternal          = errors.New("internal error")
)

var kindSentinels = map[ErrorKind]error{
	KindInvalidAmount:     ErrInvalidAmount,
	KindSameAccount:       ErrSameAccount,
	KindAccountNotFound:   ErrAccountNotFound,
	KindInsufficientFunds: ErrInsufficientFunds,
	KindConflict:          ErrConflict,
	KindStoreUnavailable:  ErrStoreUnavailable,
	KindInternal:          ErrInternal,
}

// TransferError классифицированная ошибка перевода. Исходная ошибка хранилища наружу не отдается,
// остаются только вид и читаемое сообщение.
type TransferError struct {
	Kind    ErrorKind
	Message string
}

func NewTransferError(kind ErrorKind, format string, args ...any) *TransferError {
	return &TransferError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *TransferError) Unwrap() error {
	return kindSentinels[e.Kind]
}

// Internal true для видов, детали которых клиенту не показываются.
func (e *TransferError) Internal() bool {
	return e.Kind == KindStoreUnavailable || e.Kind == KindInternal
}

// Retryable true если повтор запроса безопасен и может пройти успешно.
func (e *TransferError) Retryable() bool {
	return e.Kind == KindConflict
}
