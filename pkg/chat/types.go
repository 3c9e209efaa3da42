package chat

import (
	"context"
	"fmt"
)

// InputEvent is one outbound event of a chat turn.
type InputEvent interface {
	inputEvent()
}

// TextTurn carries the user message of a turn.
type TextTurn struct {
	Message string
}

// EndOfInput tells the service that no more input follows for this turn.
type EndOfInput struct{}

func (TextTurn) inputEvent()   {}
func (EndOfInput) inputEvent() {}

// InboundEvent is an event received from the service. The set of variants is
// open: anything that is neither a TextChunk nor a MetadataEvent is skipped.
type InboundEvent interface {
	Kind() string
}

// TextChunk is a fragment of the system reply. SystemMessage may be nil for
// keep-alive chunks.
type TextChunk struct {
	SystemMessage *string
}

// MetadataEvent carries the identifiers of the turn that just completed.
type MetadataEvent struct {
	ConversationID  *string
	UserMessageID   *string
	SystemMessageID *string
}

// UnknownEvent stands in for protocol variants the adapter does not surface.
type UnknownEvent struct {
	Type string
}

func (TextChunk) Kind() string     { return "text" }
func (MetadataEvent) Kind() string { return "metadata" }
func (u UnknownEvent) Kind() string {
	if u.Type == "" {
		return "unknown"
	}
	return u.Type
}

// Output is what a Stream hands to its caller: either Text or Metadata.
type Output interface {
	fmt.Stringer
	output()
}

// Text is one fragment of the system reply.
type Text struct {
	Content string
}

// Metadata identifies the turn just completed. It is usually the last output of a stream.
type Metadata struct {
	ConversationID  string
	UserMessageID   string
	SystemMessageID string
}

func (Text) output()     {}
func (Metadata) output() {}

func (t Text) String() string {
	return fmt.Sprintf("Text(%s)", t.Content)
}

func (m Metadata) String() string {
	return fmt.Sprintf("Metadata{ChatId: %s, Sys: %s, Usr: %s}", m.ConversationID, m.SystemMessageID, m.UserMessageID)
}

// ChatRequest is what a Session submits to a Client for one turn.
type ChatRequest struct {
	ApplicationID   string
	Query           string
	ConversationID  *string
	ParentMessageID *string
	// ClientToken makes the submission idempotent on the service side.
	ClientToken string
}

// ApplicationSummary is one entry of a ListApplications page. ID is nil when the
// service omitted it.
type ApplicationSummary struct {
	ID          *string
	DisplayName string
}

// InboundStream is the receiving half of an established chat stream.
// Recv returns io.EOF once the service has sent its last event. It is not safe
// for concurrent use; Stream serializes access to it.
type InboundStream interface {
	Recv(ctx context.Context) (InboundEvent, error)
	Close() error
}

// Client submits chat requests and lists applications.
type Client interface {
	Chat(ctx context.Context, req ChatRequest, inputs []InputEvent) (InboundStream, error)
	ListApplications(ctx context.Context) ([]ApplicationSummary, error)
}

// TurnInfo identifies the chat call a Stream belongs to.
type TurnInfo struct {
	RequestID       string
	ApplicationID   string
	Query           string
	ConversationID  string
	ParentMessageID string
}

// EventSink observes every Output a Stream returns to its caller, in order.
// seq starts at 1 for the first output of a stream.
type EventSink interface {
	PublishOutput(ctx context.Context, turn TurnInfo, seq int, out Output) error
}
