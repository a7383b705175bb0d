package relay

import (
	"encoding/json"
	"time"
)

// Message is a slot change travelling between hosts.
type Message struct {
	Origin    string    `json:"origin"`
	Key       string    `json:"key"`
	Value     []byte    `json:"value,omitempty"`
	Removed   bool      `json:"removed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes.
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MessageFromJSON decodes a message.
func MessageFromJSON(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
