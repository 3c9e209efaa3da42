package qbusiness

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/qbusiness/types"
	"github.com/pkg/errors"

	"github.com/go-go-golems/streamq/pkg/chat"
)

func toSDKInput(in chat.InputEvent) (types.ChatInputStream, error) {
	switch e := in.(type) {
	case chat.TextTurn:
		return &types.ChatInputStreamMemberTextEvent{
			Value: types.TextInputEvent{UserMessage: aws.String(e.Message)},
		}, nil
	case chat.EndOfInput:
		return &types.ChatInputStreamMemberEndOfInputEvent{
			Value: types.EndOfInputEvent{},
		}, nil
	default:
		return nil, errors.Errorf("unsupported input event %T", in)
	}
}

func fromSDKOutput(ev types.ChatOutputStream) chat.InboundEvent {
	switch e := ev.(type) {
	case *types.ChatOutputStreamMemberTextEvent:
		return chat.TextChunk{SystemMessage: e.Value.SystemMessage}
	case *types.ChatOutputStreamMemberMetadataEvent:
		return chat.MetadataEvent{
			ConversationID:  e.Value.ConversationId,
			UserMessageID:   e.Value.UserMessageId,
			SystemMessageID: e.Value.SystemMessageId,
		}
	case *types.UnknownUnionMember:
		return chat.UnknownEvent{Type: e.Tag}
	case nil:
		return chat.UnknownEvent{}
	default:
		name := fmt.Sprintf("%T", ev)
		name = strings.TrimPrefix(name, "*types.ChatOutputStreamMember")
		return chat.UnknownEvent{Type: name}
	}
}

// inboundStream reads from the SDK event channel.
type inboundStream struct {
	es eventStream
}

func newInboundStream(es eventStream) *inboundStream {
	return &inboundStream{es: es}
}

func (s *inboundStream) Recv(ctx context.Context) (chat.InboundEvent, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ev, ok := <-s.es.Events():
		if !ok {
			if err := s.es.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		return fromSDKOutput(ev), nil
	}
}

func (s *inboundStream) Close() error {
	return s.es.Close()
}
