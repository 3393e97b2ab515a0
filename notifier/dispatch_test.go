package notifier_test

import (
	"testing"
	"time"

	"github.com/miragespace/subpay/notifier"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// channelSink hands published events back to the test
type channelSink struct {
	received chan notifier.Event
}

func (s *channelSink) Publish(event notifier.Event) error {
	s.received <- event
	return nil
}

func TestDispatcher(t *testing.T) {
	t.Run("events reach the sink", func(t *testing.T) {
		sink := &channelSink{received: make(chan notifier.Event, 1)}
		d, err := notifier.NewDispatcher(notifier.DispatcherOptions{
			Sink:   sink,
			Logger: zap.NewNop(),
		})
		require.NoError(t, err)
		defer d.Close()

		d.Notify(notifier.Event{
			Kind:      notifier.KindInvoiceCreated,
			UserID:    "user-1",
			UserEmail: "alice@example.com",
			Payload: map[string]string{
				"invoiceNumber": "INV-202608-ABCDEFGH",
			},
		})

		select {
		case event := <-sink.received:
			assert.Equal(t, notifier.KindInvoiceCreated, event.Kind)
			assert.Equal(t, "user-1", event.UserID)
			assert.Equal(t, "INV-202608-ABCDEFGH", event.Payload["invoiceNumber"])
			assert.False(t, event.OccurredAt.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event never reached the sink")
		}
	})

	t.Run("zero timestamp is backfilled", func(t *testing.T) {
		sink := &channelSink{received: make(chan notifier.Event, 1)}
		d, err := notifier.NewDispatcher(notifier.DispatcherOptions{
			Sink:   sink,
			Logger: zap.NewNop(),
		})
		require.NoError(t, err)
		defer d.Close()

		before := time.Now()
		d.Notify(notifier.Event{Kind: notifier.KindPaymentSucceeded})

		select {
		case event := <-sink.received:
			assert.True(t, event.OccurredAt.After(before) || event.OccurredAt.Equal(before))
		case <-time.After(time.Second):
			t.Fatal("event never reached the sink")
		}
	})

	t.Run("nil sink is rejected", func(t *testing.T) {
		_, err := notifier.NewDispatcher(notifier.DispatcherOptions{
			Logger: zap.NewNop(),
		})
		assert.Error(t, err)
	})
}
