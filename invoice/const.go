package invoice

// Status is the settlement state of an Invoice
type Status string

// Defining the valid statuses of an Invoice.
// PENDING -> PAID/OVERDUE/CANCELLED
// OVERDUE -> PAID/CANCELLED
// PAID    -> REFUNDED (via the payment engine only)
// PARTIALLY_PAID is reserved; no current flow produces it.
const (
	StatusPending       Status = "PENDING"
	StatusPaid          Status = "PAID"
	StatusOverdue       Status = "OVERDUE"
	StatusCancelled     Status = "CANCELLED"
	StatusRefunded      Status = "REFUNDED"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
)

var transitions = map[Status][]Status{
	StatusPending: {StatusPaid, StatusOverdue, StatusCancelled},
	StatusOverdue: {StatusPaid, StatusCancelled},
	StatusPaid:    {StatusRefunded},
}

// CanTransition reports whether an invoice may move from one status to
// another. Transitions only move forward; CANCELLED and REFUNDED are
// terminal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
