// Package chat adapts a bidirectional chat event stream into a pull-based iterator.
//
// Flow:
//   - A Session submits one user turn (BuildInputEvents) through a Client and
//     wraps the returned InboundStream into a Stream.
//   - Stream.Next pulls inbound events, decodes them with Decode and returns one
//     Output (Text or Metadata) per call, skipping variants it does not surface.
//   - Termination is sticky: ErrStreamExhausted after the service closes the
//     stream, the same failure after a receive or protocol error.
//
// Transports live elsewhere (see pkg/qbusiness); this package only depends on the
// Client and InboundStream interfaces.
package chat
