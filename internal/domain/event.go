package domain

import "time"

// DomainEvent is one row of the append-only event log. Subject carries the
// event payload serialized as JSON; SubjectID keys events to the entity they
// describe.
type DomainEvent struct {
	ID        string
	Type      string
	SubjectID string
	Subject   []byte
	At        time.Time
}

// Domain event types recorded by the trading engine.
const (
	EventOrderCreated  = "order.created"
	EventPositionEnter = "position.entered"
	EventPositionExit  = "position.exited"
)
