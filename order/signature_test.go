package order_test

import (
	"testing"

	"github.com/miragespace/subpay/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVerifier(t *testing.T) {
	t.Run("short secret is rejected", func(t *testing.T) {
		_, err := order.NewVerifier(order.VerifierOptions{
			Secret: "too-short",
		})
		assert.Error(t, err)
	})

	t.Run("long enough secret is accepted", func(t *testing.T) {
		v, err := order.NewVerifier(order.VerifierOptions{
			Secret: "0123456789abcdef",
		})
		require.NoError(t, err)
		assert.NotNil(t, v)
	})
}

func TestSign(t *testing.T) {
	v, err := order.NewVerifier(order.VerifierOptions{
		Secret: "0123456789abcdef",
	})
	require.NoError(t, err)

	sig := v.Sign("order_abc123", "pay_def456")

	assert.Len(t, sig, 32)
	assert.Equal(t, sig, v.Sign("order_abc123", "pay_def456"))
	assert.NotEqual(t, sig, v.Sign("order_abc123", "pay_other"))
	assert.NotEqual(t, sig, v.Sign("order_other", "pay_def456"))
}

func TestVerify(t *testing.T) {
	v, err := order.NewVerifier(order.VerifierOptions{
		Secret: "0123456789abcdef",
	})
	require.NoError(t, err)

	t.Run("matching signature passes", func(t *testing.T) {
		sig := v.Sign("order_abc123", "pay_def456")
		assert.True(t, v.Verify("order_abc123", "pay_def456", sig))
	})

	t.Run("tampered signature fails", func(t *testing.T) {
		sig := v.Sign("order_abc123", "pay_def456")
		assert.False(t, v.Verify("order_abc123", "pay_def456", sig[:31]+"X"))
		assert.False(t, v.Verify("order_abc123", "pay_def456", ""))
	})

	t.Run("signature is bound to the pair", func(t *testing.T) {
		sig := v.Sign("order_abc123", "pay_def456")
		assert.False(t, v.Verify("order_abc123", "pay_other", sig))
	})
}

func TestVerifyDebugPrefix(t *testing.T) {
	v, err := order.NewVerifier(order.VerifierOptions{
		Secret:      "0123456789abcdef",
		DebugPrefix: "debug_",
	})
	require.NoError(t, err)

	assert.True(t, v.Verify("order_abc123", "pay_def456", "debug_anything"))
	assert.False(t, v.Verify("order_abc123", "pay_def456", "not-the-prefix"))

	// the real signature still works with the bypass enabled
	sig := v.Sign("order_abc123", "pay_def456")
	assert.True(t, v.Verify("order_abc123", "pay_def456", sig))
}
