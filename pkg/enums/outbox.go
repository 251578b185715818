package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox row belongs to.
type OutboxAggregateType string

const (
	AggregateOrder  OutboxAggregateType = "order"
	AggregateTenant OutboxAggregateType = "tenant"
)

// OutboxEventType names a domain event written to the outbox.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order_created"
	EventOrderPaid          OutboxEventType = "order_paid"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventTenantUpdated      OutboxEventType = "tenant_updated"
)

// eventOwners maps each event to the only aggregate allowed to emit it.
var eventOwners = map[OutboxEventType]OutboxAggregateType{
	EventOrderCreated:       AggregateOrder,
	EventOrderPaid:          AggregateOrder,
	EventOrderStatusChanged: AggregateOrder,
	EventTenantUpdated:      AggregateTenant,
}

func (e OutboxEventType) IsValid() bool {
	_, ok := eventOwners[e]
	return ok
}

// Aggregate returns the owning aggregate, or "" for unknown events.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return eventOwners[e]
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	e := OutboxEventType(value)
	if !e.IsValid() {
		return "", fmt.Errorf("invalid event type %q", value)
	}
	return e, nil
}

func (a OutboxAggregateType) IsValid() bool {
	return a == AggregateOrder || a == AggregateTenant
}

// OutboxDLQErrorReason records why the relay stopped retrying an event.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
