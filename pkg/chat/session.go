package chat

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Session binds a Client to one application. It is safe for concurrent use;
// every Chat call yields an independent Stream.
type Session struct {
	client        Client
	applicationID string
	sinks         []EventSink
	newToken      func() string
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithEventSinks registers sinks that observe the outputs of every stream the
// session creates.
func WithEventSinks(sinks ...EventSink) SessionOption {
	return func(s *Session) {
		s.sinks = append(s.sinks, sinks...)
	}
}

// WithTokenGenerator overrides how client tokens are generated.
func WithTokenGenerator(fn func() string) SessionOption {
	return func(s *Session) {
		if fn != nil {
			s.newToken = fn
		}
	}
}

// NewSession returns a session for applicationID.
func NewSession(client Client, applicationID string, opts ...SessionOption) (*Session, error) {
	if client == nil {
		return nil, errors.New("chat session: client is nil")
	}
	if applicationID == "" {
		return nil, errors.New("chat session: empty application id")
	}
	s := &Session{
		client:        client,
		applicationID: applicationID,
		newToken:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ApplicationID returns the application the session is bound to.
func (s *Session) ApplicationID() string {
	return s.applicationID
}

type chatParams struct {
	conversationID  *string
	parentMessageID *string
}

// ChatOption sets the optional identifiers of a chat call.
type ChatOption func(*chatParams)

// WithConversationID continues an existing conversation.
func WithConversationID(id string) ChatOption {
	return func(p *chatParams) {
		p.conversationID = &id
	}
}

// WithParentMessageID sets the message the new turn replies to. The service
// validates it; it is forwarded as-is.
func WithParentMessageID(id string) ChatOption {
	return func(p *chatParams) {
		p.parentMessageID = &id
	}
}

// Chat submits query as one user turn and returns the stream of the reply.
// There is exactly one submission attempt. On failure the returned error is a
// *ChatRequestError and no stream is returned.
func (s *Session) Chat(ctx context.Context, query string, opts ...ChatOption) (*Stream, error) {
	var p chatParams
	for _, opt := range opts {
		opt(&p)
	}

	req := ChatRequest{
		ApplicationID:   s.applicationID,
		Query:           query,
		ConversationID:  p.conversationID,
		ParentMessageID: p.parentMessageID,
		ClientToken:     s.newToken(),
	}
	turn := TurnInfo{
		RequestID:       req.ClientToken,
		ApplicationID:   req.ApplicationID,
		Query:           query,
		ConversationID:  deref(req.ConversationID),
		ParentMessageID: deref(req.ParentMessageID),
	}

	log.Debug().
		Str("component", "chat").
		Str("request_id", turn.RequestID).
		Str("application_id", turn.ApplicationID).
		Str("conversation_id", turn.ConversationID).
		Msg("submitting chat request")

	inbound, err := s.client.Chat(ctx, req, BuildInputEvents(query))
	if err != nil {
		if inbound != nil {
			_ = inbound.Close()
		}
		return nil, &ChatRequestError{ApplicationID: s.applicationID, Cause: err}
	}
	if inbound == nil {
		return nil, &ChatRequestError{ApplicationID: s.applicationID, Cause: errors.New("transport returned no stream")}
	}

	return NewStream(inbound, turn, s.sinks...), nil
}

// ListApplications returns the ids of the applications visible to the client.
// Entries without an id are omitted.
func (s *Session) ListApplications(ctx context.Context) ([]string, error) {
	apps, err := s.client.ListApplications(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list applications")
	}
	known := KnownApplications(apps)
	ids := make([]string, 0, len(known))
	for _, app := range known {
		ids = append(ids, *app.ID)
	}
	return ids, nil
}

// KnownApplications drops summaries that carry no application id. Use it when
// listing without a Session, which needs an application id up front.
func KnownApplications(apps []ApplicationSummary) []ApplicationSummary {
	out := make([]ApplicationSummary, 0, len(apps))
	for _, app := range apps {
		if app.ID == nil {
			continue
		}
		out = append(out, app)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
