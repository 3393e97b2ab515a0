package payment

// Status is the outcome state of a Payment
type Status string

// Defining the valid statuses of a Payment.
// PENDING -> SUCCESS/FAILED
// SUCCESS -> REFUNDED
// FAILED and REFUNDED are terminal.
const (
	StatusPending  Status = "PENDING"
	StatusSuccess  Status = "SUCCESS"
	StatusFailed   Status = "FAILED"
	StatusRefunded Status = "REFUNDED"
)

var transitions = map[Status][]Status{
	StatusPending: {StatusSuccess, StatusFailed},
	StatusSuccess: {StatusRefunded},
}

// CanTransition reports whether a payment may move from one status to
// another
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
