package transcript

import "context"

// Record is one chat output as seen by the caller of a stream.
type Record struct {
	RequestID       string `json:"request_id"`
	ApplicationID   string `json:"application_id"`
	ConversationID  string `json:"conversation_id"`
	Query           string `json:"query"`
	Seq             int    `json:"seq"`
	Kind            string `json:"kind"`
	Content         string `json:"content"`
	UserMessageID   string `json:"user_message_id"`
	SystemMessageID string `json:"system_message_id"`
	CreatedAtMs     int64  `json:"created_at_ms"`
}

// Query describes filters for loading stored records.
type Query struct {
	RequestID      string
	ConversationID string
	Limit          int
}

// Store persists chat outputs for inspection/debugging.
type Store interface {
	Save(ctx context.Context, r Record) error
	List(ctx context.Context, q Query) ([]Record, error)
	// SetConversation fills in the conversation id of earlier records of a
	// request that were saved before the service assigned one.
	SetConversation(ctx context.Context, requestID, conversationID string) error
	Close() error
}
