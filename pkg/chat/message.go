// Package chat talks to the EduSpark chat backend and keeps the history of
// a single conversation.
package chat

// Role is the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is the body posted to the chat backend.
type Request struct {
	Messages []Message `json:"messages"`
}

// Valid reports whether r is a role the backend accepts from clients.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}
