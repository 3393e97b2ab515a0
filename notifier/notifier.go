package notifier

import "time"

// Kind identifies a billing lifecycle event
type Kind string

// Defining the event kinds emitted by the billing engines
const (
	KindSubscriptionCreated     Kind = "subscription.created"
	KindSubscriptionCancelled   Kind = "subscription.cancelled"
	KindSubscriptionRenewed     Kind = "subscription.renewed"
	KindSubscriptionPlanChanged Kind = "subscription.plan_changed"
	KindInvoiceCreated          Kind = "invoice.created"
	KindPaymentSucceeded        Kind = "payment.succeeded"
	KindPaymentRefunded         Kind = "payment.refunded"
)

// Event is the payload handed to the notifier. Events carry denormalized
// facts so consumers never have to query the billing database.
type Event struct {
	Kind       Kind              `json:"kind"`
	OccurredAt time.Time         `json:"occurredAt"`
	UserID     string            `json:"userId"`
	UserEmail  string            `json:"userEmail"`
	Payload    map[string]string `json:"payload"`
}

// Notifier is the fire-and-forget side channel for billing events. Engines
// call Notify after the entity write; delivery failure is logged and
// discarded, never surfaced to the engine's caller.
type Notifier interface {
	Notify(event Event)
}

// Nop discards all events
type Nop struct{}

// Notify implements Notifier
func (Nop) Notify(event Event) {}
