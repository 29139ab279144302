package fabric

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeRequest      MessageType = "request"
	MessageTypeResponse     MessageType = "response"
	MessageTypeNotification MessageType = "notification"
)

// Message is the unit of delivery on the fabric. ID is a UUIDv7 unique for
// the lifetime of the sending process; responses carry the originating
// request's ID in ReplyTo, which is the only correlation the fabric offers.
type Message struct {
	ID        string      `json:"id"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	Type      MessageType `json:"type"`
	Data      any         `json:"data"`
	ReplyTo   string      `json:"reply_to,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func (msg *Message) IsRequest() bool {
	return msg.Type == MessageTypeRequest
}

func (msg *Message) IsResponse() bool {
	return msg.Type == MessageTypeResponse
}

func (msg *Message) String() string {
	return fmt.Sprintf(
		"Message{ID: %s, From: %s, To: %s, Type: %s}",
		msg.ID,
		msg.From,
		msg.To,
		msg.Type,
	)
}

func generateID() string {
	return uuid.Must(uuid.NewV7()).String()
}
