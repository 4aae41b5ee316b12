package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"evcharge/internal/sheets"

	"github.com/google/uuid"
)

// RecordsChangedMessage tells consumers that the record list changed. It
// carries no records; consumers read the current list from the primary store.
type RecordsChangedMessage struct {
	ID        uuid.UUID `json:"id"`
	Operation string    `json:"operation"`
	Position  int       `json:"position"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecordsChangedMessage builds a message with a fresh id from a change event.
func NewRecordsChangedMessage(ev sheets.RecordsChanged) *RecordsChangedMessage {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &RecordsChangedMessage{
		ID:        uuid.New(),
		Operation: string(ev.Operation),
		Position:  ev.Position,
		Count:     ev.Count,
		Timestamp: ts,
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordsChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordsChangedMessageFromJSON decodes a message and rejects bodies without an id.
func RecordsChangedMessageFromJSON(data []byte) (*RecordsChangedMessage, error) {
	var msg RecordsChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == uuid.Nil {
		return nil, fmt.Errorf("message has no id")
	}
	return &msg, nil
}
