package transcript

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/go-go-golems/streamq/pkg/chat"
)

// Sink records every output of a stream into a Store.
type Sink struct {
	store Store
	now   func() time.Time
}

var _ chat.EventSink = &Sink{}

func NewSink(store Store) *Sink {
	return &Sink{store: store, now: time.Now}
}

func (s *Sink) PublishOutput(ctx context.Context, turn chat.TurnInfo, seq int, out chat.Output) error {
	r := Record{
		RequestID:      turn.RequestID,
		ApplicationID:  turn.ApplicationID,
		ConversationID: turn.ConversationID,
		Query:          turn.Query,
		Seq:            seq,
		CreatedAtMs:    s.now().UnixMilli(),
	}
	switch o := out.(type) {
	case chat.Text:
		r.Kind = "text"
		r.Content = o.Content
	case chat.Metadata:
		r.Kind = "metadata"
		r.ConversationID = o.ConversationID
		r.UserMessageID = o.UserMessageID
		r.SystemMessageID = o.SystemMessageID
	default:
		return errors.Errorf("transcript: unsupported output %T", out)
	}
	if err := s.store.Save(ctx, r); err != nil {
		return err
	}
	if r.Kind == "metadata" {
		return s.store.SetConversation(ctx, r.RequestID, r.ConversationID)
	}
	return nil
}
