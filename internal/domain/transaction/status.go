package transaction

// Type is the direction of a money movement.
type Type string

const (
	TypeDeposit  Type = "deposit"
	TypeWithdraw Type = "withdraw"
	TypeSend     Type = "send"
	TypeReceive  Type = "receive"
)

// Valid reports whether t is a known transaction type.
func (t Type) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdraw, TypeSend, TypeReceive:
		return true
	}
	return false
}

// Status is a step in the reconciliation lifecycle.
type Status string

const (
	StatusWaiting   Status = "Waiting"
	StatusConfirmed Status = "Confirmed"
	StatusPending   Status = "Pending"
	StatusComplete  Status = "Complete"
	StatusFailed    Status = "Failed"
	StatusCancelled Status = "Cancelled"
)

// IsTerminal reports whether no further transition is possible from s.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed || s == StatusCancelled
}

// NonTerminalStatuses lists every status a transaction can still leave.
var NonTerminalStatuses = []Status{StatusWaiting, StatusConfirmed, StatusPending}

var transitions = map[Status][]Status{
	StatusWaiting:   {StatusConfirmed, StatusPending, StatusComplete, StatusFailed, StatusCancelled},
	StatusConfirmed: {StatusPending, StatusComplete, StatusFailed, StatusCancelled},
	StatusPending:   {StatusComplete, StatusFailed, StatusCancelled},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
