package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message types routed through the sync queue.
const (
	TypeSync   = "subscription.sync"
	TypeDelete = "subscription.delete"
)

// envelope carries just enough to route a raw delivery to its handler.
type envelope struct {
	Type string `json:"type"`
}

// SubscriptionSyncMessage asks the export worker to sync one subscription.
// It carries only the ID and version; the worker fetches the full record
// from the database so the message never goes stale.
type SubscriptionSyncMessage struct {
	Type      string    `json:"type"`
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSubscriptionSyncMessage creates a sync message for id at version.
func NewSubscriptionSyncMessage(id, version int64) *SubscriptionSyncMessage {
	return &SubscriptionSyncMessage{
		Type:      TypeSync,
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SubscriptionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SubscriptionDeleteMessage tells the export worker a subscription was
// removed. The name is included because the row is already soft-deleted
// locally by the time the worker sees the message.
type SubscriptionDeleteMessage struct {
	Type      string    `json:"type"`
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSubscriptionDeleteMessage creates a delete message.
func NewSubscriptionDeleteMessage(id int64, name string) *SubscriptionDeleteMessage {
	return &SubscriptionDeleteMessage{
		Type:      TypeDelete,
		ID:        id,
		Name:      name,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SubscriptionDeleteMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// messageType extracts the routing type from a raw delivery body.
func messageType(data []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Type == "" {
		return "", fmt.Errorf("message has no type field")
	}
	return env.Type, nil
}

// SubscriptionSyncMessageFromJSON creates a sync message from JSON bytes.
func SubscriptionSyncMessageFromJSON(data []byte) (*SubscriptionSyncMessage, error) {
	var msg SubscriptionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SubscriptionDeleteMessageFromJSON creates a delete message from JSON bytes.
func SubscriptionDeleteMessageFromJSON(data []byte) (*SubscriptionDeleteMessage, error) {
	var msg SubscriptionDeleteMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
