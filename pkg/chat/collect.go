package chat

import (
	"context"
	"strings"
)

// Reply is a fully drained stream.
type Reply struct {
	Text      string
	Fragments int
	// Metadata is nil when the stream ended without a metadata event.
	Metadata *Metadata
}

// Collect drains s, concatenating text fragments. On failure the partial reply
// gathered so far is returned along with the error.
func Collect(ctx context.Context, s *Stream) (Reply, error) {
	var (
		reply Reply
		sb    strings.Builder
	)
	for out, err := range s.All(ctx) {
		if err != nil {
			reply.Text = sb.String()
			return reply, err
		}
		switch o := out.(type) {
		case Text:
			sb.WriteString(o.Content)
			reply.Fragments++
		case Metadata:
			m := o
			reply.Metadata = &m
		}
	}
	reply.Text = sb.String()
	return reply, nil
}
