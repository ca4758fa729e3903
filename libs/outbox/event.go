package outbox

// Event is a domain event staged for publication in the same transaction as
// the state change that produced it.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
