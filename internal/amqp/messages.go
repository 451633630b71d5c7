package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Operation is the kind of write a ChangeMessage reports.
type Operation string

const (
	OpUpsert Operation = "upsert"
	OpDelete Operation = "delete"
	// OpReconcile asks the sync worker for a full pass over the profile.
	OpReconcile Operation = "reconcile"
)

// ChangeMessage is a lightweight notification that one ledger record changed.
// It carries no record data: the worker reads the current row from the source store.
type ChangeMessage struct {
	ProfileID string    `json:"profile_id"`
	Entity    string    `json:"entity"`
	RecordID  string    `json:"record_id"`
	Operation Operation `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeMessage creates a change notification stamped with the current time.
func NewChangeMessage(profileID, entity, recordID string, op Operation) *ChangeMessage {
	return &ChangeMessage{
		ProfileID: profileID,
		Entity:    entity,
		RecordID:  recordID,
		Operation: op,
		Timestamp: time.Now().UTC(),
	}
}

// NewReconcileMessage requests a full reconciliation of the profile.
func NewReconcileMessage(profileID string) *ChangeMessage {
	return NewChangeMessage(profileID, "", "", OpReconcile)
}

func (m *ChangeMessage) Validate() error {
	if m.ProfileID == "" {
		return fmt.Errorf("change message: missing profile_id")
	}
	switch m.Operation {
	case OpUpsert, OpDelete:
		if m.Entity == "" || m.RecordID == "" {
			return fmt.Errorf("change message: %s needs entity and record_id", m.Operation)
		}
	case OpReconcile:
	default:
		return fmt.Errorf("change message: unknown operation %q", m.Operation)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes and validates a message.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
