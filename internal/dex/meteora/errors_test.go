// ==================================
// File: internal/dex/meteora/errors_test.go
// ==================================
package meteora

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := errRPC(cause)

	assert.True(t, errors.Is(err, cause), "wrapped cause must be reachable")
	assert.ErrorIs(t, err, &Error{Code: ErrCodeRPC})
	assert.NotErrorIs(t, err, &Error{Code: ErrCodeCalculation})
}

func TestErrorCodeMatchingThroughFmtWrap(t *testing.T) {
	inner := newError(ErrCodeSlippageExceeded, "impact too high", nil)
	wrapped := fmt.Errorf("execute swap: %w", inner)

	assert.True(t, IsCode(wrapped, ErrCodeSlippageExceeded))
	assert.Equal(t, ErrCodeSlippageExceeded, CodeOf(wrapped))

	var typed *Error
	require.True(t, errors.As(wrapped, &typed))
	assert.Equal(t, "impact too high", typed.Message)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "slippage exceeded: too fast",
		newError(ErrCodeSlippageExceeded, "too fast", nil).Error())
	assert.Equal(t, "rpc error", errRPC(nil).Error())

	withCause := newError(ErrCodeTransactionFailed, "submit", errors.New("blockhash expired"))
	assert.Contains(t, withCause.Error(), "blockhash expired")
}

func TestCodeOfForeignError(t *testing.T) {
	assert.Equal(t, ErrorCode(0), CodeOf(errors.New("plain")))
	assert.False(t, IsCode(errors.New("plain"), ErrCodeRPC))
	assert.False(t, IsCode(nil, ErrCodeRPC))
}
