package chat

// Decode maps an inbound event to an Output. The boolean is false for events
// that are valid but not surfaced to callers.
func Decode(ev InboundEvent) (Output, bool, error) {
	switch e := ev.(type) {
	case TextChunk:
		return decodeText(e), true, nil
	case *TextChunk:
		if e == nil {
			return nil, false, nil
		}
		return decodeText(*e), true, nil
	case MetadataEvent:
		return decodeMetadata(e)
	case *MetadataEvent:
		if e == nil {
			return nil, false, nil
		}
		return decodeMetadata(*e)
	default:
		return nil, false, nil
	}
}

func decodeText(e TextChunk) Output {
	if e.SystemMessage == nil {
		return Text{}
	}
	return Text{Content: *e.SystemMessage}
}

func decodeMetadata(e MetadataEvent) (Output, bool, error) {
	var missing []string
	if e.ConversationID == nil {
		missing = append(missing, "conversation_id")
	}
	if e.UserMessageID == nil {
		missing = append(missing, "user_message_id")
	}
	if e.SystemMessageID == nil {
		missing = append(missing, "system_message_id")
	}
	if len(missing) > 0 {
		return nil, false, &MalformedMetadataError{Missing: missing}
	}
	return Metadata{
		ConversationID:  *e.ConversationID,
		UserMessageID:   *e.UserMessageID,
		SystemMessageID: *e.SystemMessageID,
	}, true, nil
}
