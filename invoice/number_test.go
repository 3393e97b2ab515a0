package invoice_test

import (
	"strings"
	"testing"
	"time"

	"github.com/miragespace/subpay/invoice"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNumber(t *testing.T) {
	now := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)

	number := invoice.NewNumber(now)

	parts := strings.Split(number, "-")
	require.Len(t, parts, 3)
	assert.Equal(t, "INV", parts[0])
	assert.Equal(t, "202608", parts[1])
	assert.Len(t, parts[2], 8)
	assert.Equal(t, strings.ToUpper(parts[2]), parts[2])
}

func TestNewNumberUnique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n := invoice.NewNumber(now)
		assert.False(t, seen[n], "duplicate invoice number %s", n)
		seen[n] = true
	}
}
