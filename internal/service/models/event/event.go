package event

import (
	"slices"
	"time"

	"github.com/corray333/food-ordering/order/internal/service/models/order"
	"github.com/google/uuid"
)

// Type names a committed order transition.
type Type string

const (
	TypeOrderCreated    Type = "ORDER_CREATED"
	TypeOrderPaid       Type = "ORDER_PAID"
	TypeOrderApproved   Type = "ORDER_APPROVED"
	TypeOrderCancelling Type = "ORDER_CANCELLING"
	TypeOrderCancelled  Type = "ORDER_CANCELLED"
)

// ParseType converts a stored event type back to a Type.
func ParseType(s string) (Type, bool) {
	switch t := Type(s); t {
	case TypeOrderCreated, TypeOrderPaid, TypeOrderApproved, TypeOrderCancelling, TypeOrderCancelled:
		return t, true
	default:
		return "", false
	}
}

// OrderEvent is an immutable record of a transition. Its fields are only
// reachable through accessors that hand out copies.
type OrderEvent struct {
	id        uuid.UUID
	typ       Type
	order     order.Snapshot
	createdAt time.Time
}

// New creates an event over a copy of the given snapshot.
func New(id uuid.UUID, typ Type, snapshot order.Snapshot, createdAt time.Time) OrderEvent {
	return OrderEvent{
		id:        id,
		typ:       typ,
		order:     copySnapshot(snapshot),
		createdAt: createdAt,
	}
}

func (e OrderEvent) ID() uuid.UUID        { return e.id }
func (e OrderEvent) Type() Type           { return e.typ }
func (e OrderEvent) CreatedAt() time.Time { return e.createdAt }
func (e OrderEvent) OrderID() uuid.UUID   { return e.order.ID }

// Order returns a copy of the order snapshot the event carries.
func (e OrderEvent) Order() order.Snapshot {
	return copySnapshot(e.order)
}

// IsZero reports whether the event was never constructed.
func (e OrderEvent) IsZero() bool {
	return e.id == uuid.Nil
}

func copySnapshot(s order.Snapshot) order.Snapshot {
	s.Items = slices.Clone(s.Items)
	s.FailureMessages = slices.Clone(s.FailureMessages)

	return s
}
