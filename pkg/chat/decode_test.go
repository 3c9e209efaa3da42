package chat

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestDecodeText(t *testing.T) {
	out, ok, err := Decode(TextChunk{SystemMessage: ptr("Hi")})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Text{Content: "Hi"}, out)

	out, ok, err = Decode(&TextChunk{SystemMessage: ptr("there")})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Text{Content: "there"}, out)
}

func TestDecodeTextWithoutMessageIsEmpty(t *testing.T) {
	out, ok, err := Decode(TextChunk{})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Text{Content: ""}, out)
}

func TestDecodeMetadata(t *testing.T) {
	out, ok, err := Decode(MetadataEvent{
		ConversationID:  ptr("conv1"),
		UserMessageID:   ptr("u1"),
		SystemMessageID: ptr("s1"),
	})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Metadata{ConversationID: "conv1", UserMessageID: "u1", SystemMessageID: "s1"}, out)
}

func TestDecodeMetadataMissingField(t *testing.T) {
	_, ok, err := Decode(MetadataEvent{ConversationID: ptr("conv1"), UserMessageID: ptr("u1")})
	require.False(t, ok)
	var mErr *MalformedMetadataError
	require.True(t, errors.As(err, &mErr))
	require.Equal(t, []string{"system_message_id"}, mErr.Missing)

	_, _, err = Decode(&MetadataEvent{})
	require.True(t, errors.As(err, &mErr))
	require.Equal(t, []string{"conversation_id", "user_message_id", "system_message_id"}, mErr.Missing)
	require.Contains(t, err.Error(), "conversation_id, user_message_id, system_message_id")
}

func TestDecodeSkipsOtherVariants(t *testing.T) {
	var nilText *TextChunk
	for _, ev := range []InboundEvent{UnknownEvent{Type: "ActionReviewEvent"}, UnknownEvent{}, nil, nilText} {
		out, ok, err := Decode(ev)
		require.NoError(t, err)
		require.False(t, ok)
		require.Nil(t, out)
	}
}

func TestOutputString(t *testing.T) {
	require.Equal(t, "Text(Hi)", Text{Content: "Hi"}.String())
	require.Equal(t, "Text()", Text{}.String())
	require.Equal(t,
		"Metadata{ChatId: conv1, Sys: s1, Usr: u1}",
		Metadata{ConversationID: "conv1", UserMessageID: "u1", SystemMessageID: "s1"}.String())
	require.Equal(t, "Metadata{ChatId: , Sys: , Usr: }", Metadata{}.String())
}
