package order

// Status is the verification state of a PaymentOrder
type Status string

// Defining the valid statuses of a PaymentOrder.
// PENDING -> SUCCESS/FAILED, both terminal.
const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)
