// =============================
// File: internal/dex/meteora/errors.go
// =============================
package meteora

import (
	"errors"
	"fmt"
)

// ErrorCode идентифицирует класс отказа операции. Набор закрыт: вызывающие
// ветвятся по коду, а не по тексту сообщения.
type ErrorCode int

const (
	ErrCodeRPC ErrorCode = iota + 1
	ErrCodeAccountNotFound
	ErrCodeInvalidPoolData
	ErrCodeInvalidAccountData
	ErrCodeDeserialization
	ErrCodeCalculation
	ErrCodeNoLiquidityPool
	ErrCodeNoHistoricalData
	ErrCodeSlippageExceeded
	ErrCodeInsufficientBalance
	ErrCodeTransactionFailed
	ErrCodeTransactionTimeout
	ErrCodeSimulationFailed
	ErrCodeInvalidInput
	ErrCodeInvalidPrice
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeRPC:
		return "rpc error"
	case ErrCodeAccountNotFound:
		return "account not found"
	case ErrCodeInvalidPoolData:
		return "invalid pool data"
	case ErrCodeInvalidAccountData:
		return "invalid account data"
	case ErrCodeDeserialization:
		return "deserialization error"
	case ErrCodeCalculation:
		return "calculation error"
	case ErrCodeNoLiquidityPool:
		return "no liquidity pool found"
	case ErrCodeNoHistoricalData:
		return "no historical data"
	case ErrCodeSlippageExceeded:
		return "slippage exceeded"
	case ErrCodeInsufficientBalance:
		return "insufficient balance"
	case ErrCodeTransactionFailed:
		return "transaction failed"
	case ErrCodeTransactionTimeout:
		return "transaction timeout"
	case ErrCodeSimulationFailed:
		return "simulation failed"
	case ErrCodeInvalidInput:
		return "invalid input"
	case ErrCodeInvalidPrice:
		return "invalid price"
	}
	return "unknown error"
}

// Error — типизированная ошибка, возвращаемая каждой экспортируемой операцией.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сопоставляет ошибки с одинаковым кодом, чтобы сравнения в стиле
// сентинелов через errors.Is работали против голых целей &Error{Code: ...}.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// newError создает типизированную ошибку. Сообщение и обернутая причина опциональны.
func newError(code ErrorCode, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Err: cause}
}

func errRPC(cause error) *Error {
	return newError(ErrCodeRPC, "", cause)
}

func errAccountNotFound(what string) *Error {
	return newError(ErrCodeAccountNotFound, what, nil)
}

func errInvalidInput(msg string) *Error {
	return newError(ErrCodeInvalidInput, msg, nil)
}

func errCalculation(msg string) *Error {
	return newError(ErrCodeCalculation, msg, nil)
}

func errDeserialization(cause error) *Error {
	return newError(ErrCodeDeserialization, "", cause)
}

// CodeOf извлекает ErrorCode из err, либо 0, если err — не типизированная Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// IsCode проверяет, несет ли err данный код.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
