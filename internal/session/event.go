package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventConnected       EventType = "connected"
	EventDisconnected    EventType = "disconnected"
	EventAccountsChanged EventType = "accountsChanged"
)

// Event is published on the data bus for every session transition.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Session     string    `json:"session"`
	ConnectorID string    `json:"connector_id"`
	Accounts    []string  `json:"accounts,omitempty"`
	At          time.Time `json:"at"`

	topic string
}

func newEvent(topic, session, connectorID string, typ EventType, accounts []string) *Event {
	return &Event{
		ID:          uuid.NewString(),
		Type:        typ,
		Session:     session,
		ConnectorID: connectorID,
		Accounts:    accounts,
		At:          time.Now().UTC(),
		topic:       topic,
	}
}

func (e *Event) Serialize() []byte {
	raw, _ := json.Marshal(e)
	return raw
}

func (e *Event) Topic() string {
	return e.topic
}

// Key partitions events by session so a session's events stay ordered.
func (e *Event) Key() string {
	return e.Session
}
