package apperror_test

import (
	"fmt"
	"testing"

	"github.com/miragespace/subpay/apperror"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Run("direct error", func(t *testing.T) {
		err := apperror.NotFound("invoice", "id", "abc")
		assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
		assert.Contains(t, err.Error(), "invoice not found with id: abc")
	})

	t.Run("wrapped error", func(t *testing.T) {
		err := fmt.Errorf("handling request: %w", apperror.Conflict("duplicate"))
		assert.True(t, apperror.IsKind(err, apperror.KindConflict))
	})

	t.Run("plain error has no kind", func(t *testing.T) {
		assert.Equal(t, apperror.Kind(0), apperror.KindOf(fmt.Errorf("boom")))
	})
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := apperror.PaymentProcessing("payment could not be processed", cause)
	assert.Equal(t, cause, err.Unwrap())
	assert.Contains(t, err.Error(), "connection reset")
}
