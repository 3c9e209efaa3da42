package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/streamq/pkg/chat"
)

const (
	TypeText     = "text"
	TypeMetadata = "metadata"
)

// Envelope is the JSON payload published for each chat output.
type Envelope struct {
	RequestID       string `json:"request_id"`
	ApplicationID   string `json:"application_id"`
	ConversationID  string `json:"conversation_id,omitempty"`
	Seq             int    `json:"seq"`
	Type            string `json:"type"`
	Content         string `json:"content,omitempty"`
	UserMessageID   string `json:"user_message_id,omitempty"`
	SystemMessageID string `json:"system_message_id,omitempty"`
	CreatedAtMs     int64  `json:"created_at_ms"`
}

// NewEnvelope flattens a chat output.
func NewEnvelope(turn chat.TurnInfo, seq int, out chat.Output) (Envelope, error) {
	env := Envelope{
		RequestID:      turn.RequestID,
		ApplicationID:  turn.ApplicationID,
		ConversationID: turn.ConversationID,
		Seq:            seq,
		CreatedAtMs:    time.Now().UnixMilli(),
	}
	switch o := out.(type) {
	case chat.Text:
		env.Type = TypeText
		env.Content = o.Content
	case chat.Metadata:
		env.Type = TypeMetadata
		env.ConversationID = o.ConversationID
		env.UserMessageID = o.UserMessageID
		env.SystemMessageID = o.SystemMessageID
	default:
		return Envelope{}, errors.Errorf("unsupported output %T", out)
	}
	return env, nil
}

// Output rebuilds the chat output the envelope was made from.
func (e Envelope) Output() (chat.Output, error) {
	switch e.Type {
	case TypeText:
		return chat.Text{Content: e.Content}, nil
	case TypeMetadata:
		return chat.Metadata{
			ConversationID:  e.ConversationID,
			UserMessageID:   e.UserMessageID,
			SystemMessageID: e.SystemMessageID,
		}, nil
	default:
		return nil, errors.Errorf("unknown envelope type %q", e.Type)
	}
}

// OutputSink publishes chat outputs to a Watermill topic.
type OutputSink struct {
	publisher message.Publisher
	topic     string
}

var _ chat.EventSink = &OutputSink{}

func NewOutputSink(publisher message.Publisher, topic string) *OutputSink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &OutputSink{publisher: publisher, topic: topic}
}

func (s *OutputSink) PublishOutput(ctx context.Context, turn chat.TurnInfo, seq int, out chat.Output) error {
	env, err := NewEnvelope(turn, seq, out)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal envelope")
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("request_id", turn.RequestID)
	msg.Metadata.Set("seq", strconv.Itoa(seq))
	if env.ConversationID != "" {
		msg.Metadata.Set("conversation_id", env.ConversationID)
	}
	if err := s.publisher.Publish(s.topic, msg); err != nil {
		return errors.Wrapf(err, "publish to %s", s.topic)
	}
	return nil
}

// Tap subscribes to topic and calls fn for every envelope until ctx is done or
// the subscription closes.
func Tap(ctx context.Context, sub message.Subscriber, topic string, fn func(Envelope)) error {
	ch, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return errors.Wrapf(err, "subscribe to %s", topic)
	}
	return Drain(ctx, topic, ch, fn)
}

// Drain consumes an existing subscription. Messages that fail to decode are
// acked and skipped.
func Drain(ctx context.Context, topic string, ch <-chan *message.Message, fn func(Envelope)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal(msg.Payload, &env); err != nil {
				log.Warn().Err(err).Str("component", "events").Str("topic", topic).Msg("tap: failed to decode envelope")
				msg.Ack()
				continue
			}
			fn(env)
			msg.Ack()
		}
	}
}
