package chat

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrStreamExhausted is returned by Stream.Next once the service has closed the
// stream normally. It marks the end of iteration, not a failure.
var ErrStreamExhausted = errors.New("chat stream exhausted")

// ErrStreamClosed is returned by Stream.Next after Close was called before the
// stream reached a terminal state.
var ErrStreamClosed = errors.New("chat stream closed")

// IsExhausted reports whether err signals the normal end of a stream.
func IsExhausted(err error) bool {
	return errors.Is(err, ErrStreamExhausted)
}

// ChatRequestError is returned by Session.Chat when the transport rejected the request.
type ChatRequestError struct {
	ApplicationID string
	Cause         error
}

func (e *ChatRequestError) Error() string {
	return fmt.Sprintf("chat request for application %q failed: %v", e.ApplicationID, e.Cause)
}

func (e *ChatRequestError) Unwrap() error { return e.Cause }

// StreamReceiveError is the terminal failure of a Stream whose transport broke
// after the stream was established.
type StreamReceiveError struct {
	Cause error
}

func (e *StreamReceiveError) Error() string {
	return fmt.Sprintf("chat stream receive failed: %v", e.Cause)
}

func (e *StreamReceiveError) Unwrap() error { return e.Cause }

// MalformedMetadataError reports a metadata event without one of its identifiers.
type MalformedMetadataError struct {
	Missing []string
}

func (e *MalformedMetadataError) Error() string {
	return fmt.Sprintf("malformed metadata event: missing %s", strings.Join(e.Missing, ", "))
}
