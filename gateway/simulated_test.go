package gateway_test

import (
	"context"
	"testing"
	"time"

	"github.com/miragespace/subpay/gateway"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastSimulated(t *testing.T, chargeRate, refundRate int) *gateway.Simulated {
	client, err := gateway.NewSimulated(gateway.SimulatedOptions{
		ChargeSuccessRate: chargeRate,
		RefundSuccessRate: refundRate,
		MinLatency:        time.Millisecond,
		MaxLatency:        2 * time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func TestSimulatedCharge(t *testing.T) {
	ctx := context.Background()
	amount := decimal.RequireFromString("110.00")

	t.Run("full success rate always captures", func(t *testing.T) {
		client := fastSimulated(t, 100, 100)

		for i := 0; i < 20; i++ {
			result, err := client.Charge(ctx, "INV-202608-ABCDEFGH", amount, "USD")
			require.NoError(t, err)
			assert.True(t, result.Success)
			assert.Equal(t, "pay_", result.PaymentID[:4])
			assert.Len(t, result.PaymentID, 18)
		}
	})

	t.Run("cancelled context aborts the round trip", func(t *testing.T) {
		client := fastSimulated(t, 100, 100)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := client.Charge(cancelled, "INV-202608-ABCDEFGH", amount, "USD")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSimulatedRefund(t *testing.T) {
	ctx := context.Background()
	client := fastSimulated(t, 100, 100)

	result, err := client.Refund(ctx, "pay_abc123", decimal.RequireFromString("110.00"))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "rfnd_", result.RefundID[:5])
}

func TestSimulatedName(t *testing.T) {
	client := fastSimulated(t, 100, 100)
	assert.Equal(t, "simulated", client.Name())
}
