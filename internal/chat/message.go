// Package chat holds the conversation log and its message types.
package chat

import "time"

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of the conversation. Messages are immutable once
// appended to a Log.
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	ImageData string    `json:"image_data,omitempty"` // base64-encoded, user messages only
	CreatedAt time.Time `json:"created_at"`
}
