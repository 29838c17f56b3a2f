package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrorTypeAuthentication, "bad key")

	assert.Equal(t, ErrorTypeAuthentication, err.Type)
	assert.Equal(t, "authentication: bad key", err.Error())
	assert.NotEmpty(t, err.Stack)
}

func TestNewf(t *testing.T) {
	err := Newf(ErrorTypeConnection, "status %d", 502)
	assert.Equal(t, "connection: status 502", err.Error())
}

func TestWrap(t *testing.T) {
	t.Run("wraps foreign error", func(t *testing.T) {
		cause := stderrors.New("connection refused")
		err := Wrap(cause, ErrorTypeConnection, "request failed")

		require.NotNil(t, err)
		assert.Equal(t, ErrorTypeConnection, err.Type)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("nil cause returns nil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, ErrorTypeConnection, "request failed"))
	})

	t.Run("inner type survives rewrapping", func(t *testing.T) {
		inner := New(ErrorTypeRateLimit, "throttled")
		outer := Wrap(inner, ErrorTypeRateLimit, "page 3")

		assert.True(t, IsType(outer, ErrorTypeRateLimit))
		assert.ErrorIs(t, outer, inner)
	})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errType   ErrorType
		retryable bool
	}{
		{ErrorTypeRateLimit, true},
		{ErrorTypeTimeout, true},
		{ErrorTypeConnection, true},
		{ErrorTypeQuota, true},
		{ErrorTypeAuthentication, false},
		{ErrorTypePermission, false},
		{ErrorTypeData, false},
		{ErrorTypeConfig, false},
		{ErrorTypeNotFound, false},
		{ErrorTypeInternal, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(New(tt.errType, "x")))
		})
	}

	t.Run("foreign error is not retryable", func(t *testing.T) {
		assert.False(t, IsRetryable(stderrors.New("plain")))
	})
}

func TestIsType(t *testing.T) {
	err := New(ErrorTypeQuota, "quota exceeded")

	assert.True(t, IsType(err, ErrorTypeQuota))
	assert.False(t, IsType(err, ErrorTypeRateLimit))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, IsType(wrapped, ErrorTypeQuota))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeData, TypeOf(New(ErrorTypeData, "bad record")))
	assert.Equal(t, ErrorTypeInternal, TypeOf(stderrors.New("plain")))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeConnection, "request failed").
		WithDetail("endpoint", "users").
		WithDetail("page", 3)

	assert.Equal(t, "users", err.Details["endpoint"])
	assert.Equal(t, 3, err.Details["page"])
}
