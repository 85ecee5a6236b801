package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"yoyaku/internal/core"
)

// ErrInvalidMessage marks a delivery that can never be processed.
var ErrInvalidMessage = errors.New("invalid message")

// ReservationChanged announces that a reservation was written or removed.
// It carries only the id; consumers read the current record from the store.
type ReservationChanged struct {
	ID        string        `json:"id"`
	Op        core.ChangeOp `json:"op"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewReservationChanged creates a change event stamped with the current time
func NewReservationChanged(id string, op core.ChangeOp) *ReservationChanged {
	return &ReservationChanged{
		ID:        id,
		Op:        op,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReservationChanged) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReservationChangedFromJSON decodes a message and rejects unusable payloads
func ReservationChangedFromJSON(data []byte) (*ReservationChanged, error) {
	var msg ReservationChanged
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidMessage)
	}
	switch msg.Op {
	case core.OpUpsert, core.OpDelete:
	default:
		return nil, fmt.Errorf("%w: unknown op %q", ErrInvalidMessage, msg.Op)
	}
	return &msg, nil
}
