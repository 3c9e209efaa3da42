package chat

// BuildInputEvents returns the outbound events for one turn: the query as-is,
// then the end-of-input marker the protocol requires before it answers.
func BuildInputEvents(query string) []InputEvent {
	return []InputEvent{
		TextTurn{Message: query},
		EndOfInput{},
	}
}
