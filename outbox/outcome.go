package outbox

// Outcome is the per-message result of a dispatch cycle.
type Outcome int

const (
	Delivered Outcome = iota
	Retrying
	DeadLettered
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Retrying:
		return "retrying"
	case DeadLettered:
		return "dead_lettered"
	}

	return "unknown"
}

// Outcome classifies the message after a publish attempt. A failing message
// keeps retrying until its attempt count reaches maxAttempts, at which point
// it is parked as dead-lettered and no longer selected into batches.
func (m *Message) Outcome(maxAttempts int) Outcome {
	if m.ErrorReason == nil {
		return Delivered
	}

	if m.Attempts+1 >= maxAttempts {
		return DeadLettered
	}

	return Retrying
}
