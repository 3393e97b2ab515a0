package subscription

// Status is the lifecycle state of a Subscription
type Status string

// Defining the valid statuses of a Subscription.
// PENDING   -> ACTIVE/CANCELLED
// TRIAL     -> ACTIVE/EXPIRED/CANCELLED
// ACTIVE    -> INACTIVE/EXPIRED/CANCELLED
// INACTIVE  -> ACTIVE/CANCELLED
// EXPIRED   -> ACTIVE/CANCELLED (renewal reactivates)
// CANCELLED -> ACTIVE (renewal reactivates)
const (
	StatusPending   Status = "PENDING"
	StatusTrial     Status = "TRIAL"
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusActive, StatusCancelled},
	StatusTrial:     {StatusActive, StatusExpired, StatusCancelled},
	StatusActive:    {StatusInactive, StatusExpired, StatusCancelled},
	StatusInactive:  {StatusActive, StatusCancelled},
	StatusExpired:   {StatusActive, StatusCancelled},
	StatusCancelled: {StatusActive},
}

// CanTransition reports whether a subscription may move from one status to
// another
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Current reports whether the status counts against the one-current-per-user
// rule
func (s Status) Current() bool {
	return s == StatusActive || s == StatusTrial
}
