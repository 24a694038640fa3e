package domain

import "context"

// OrderStore persists finalized order records.
type OrderStore interface {
	Create(ctx context.Context, o Order) error
	GetByID(ctx context.Context, id string) (Order, error)
	ListBySymbol(ctx context.Context, symbol string, limit int) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status OrderStatus) error
}

// DomainEventStore appends to and reads from the domain event log.
type DomainEventStore interface {
	Append(ctx context.Context, ev DomainEvent) error
	ListBySubject(ctx context.Context, subjectID string, limit int) ([]DomainEvent, error)
}

// SignalBus publishes raw payloads to named channels. Implementations must
// tolerate a nil receiver so publication stays optional.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}
