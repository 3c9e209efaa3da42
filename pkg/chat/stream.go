package chat

import (
	"context"
	"io"
	"iter"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// State is the lifecycle state of a Stream.
type State int

const (
	StateIdle State = iota
	StatePulling
	StateCompleted
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePulling:
		return "pulling"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s State) terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateClosed
}

// Stream is the caller-facing iterator over one chat call. Pulls are serialized
// by a one-slot semaphore; a pull waiting for the slot gives up when its context
// is cancelled.
type Stream struct {
	turn  TurnInfo
	sinks []EventSink

	cursor  *semaphore.Weighted
	inbound InboundStream
	seq     int

	mu    sync.Mutex
	state State
	err   error

	releaseOnce sync.Once
	cleanup     runtime.Cleanup
}

// NewStream wraps an established inbound stream. Sinks observe every Output
// returned by Next.
func NewStream(inbound InboundStream, turn TurnInfo, sinks ...EventSink) *Stream {
	s := &Stream{
		turn:    turn,
		sinks:   sinks,
		cursor:  semaphore.NewWeighted(1),
		inbound: inbound,
	}
	s.cleanup = runtime.AddCleanup(s, func(in InboundStream) {
		_ = in.Close()
	}, inbound)
	return s
}

// Turn returns the identifiers of the chat call this stream belongs to.
func (s *Stream) Turn() TurnInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Next returns the next Output. After the stream ends it returns
// ErrStreamExhausted on every call; after a failure it returns that same failure.
// A cancelled ctx returns ctx.Err() and leaves the stream usable.
func (s *Stream) Next(ctx context.Context) (Output, error) {
	if err := s.cursor.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.cursor.Release(1)

	if done, err := s.begin(); done {
		return nil, err
	}

	for {
		ev, err := s.inbound.Recv(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, s.finish(StateCompleted, ErrStreamExhausted)
			}
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				s.setIdle()
				return nil, ctxErr
			}
			return nil, s.finish(StateFailed, &StreamReceiveError{Cause: err})
		}

		out, ok, err := Decode(ev)
		if err != nil {
			return nil, s.finish(StateFailed, err)
		}
		if !ok {
			log.Trace().Str("component", "chat").Str("request_id", s.turn.RequestID).Str("kind", kindOf(ev)).Msg("skipping inbound event")
			continue
		}

		s.seq++
		s.publish(ctx, s.seq, out)
		s.setIdle()
		return out, nil
	}
}

// All adapts Next to a range-over-func iterator. Iteration stops silently at the
// end of the stream; any other terminal error is yielded once.
func (s *Stream) All(ctx context.Context) iter.Seq2[Output, error] {
	return func(yield func(Output, error) bool) {
		for {
			out, err := s.Next(ctx)
			if IsExhausted(err) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(out, nil) {
				return
			}
		}
	}
}

// Close releases the inbound stream. It is safe to call more than once and while
// a pull is in flight; the pending pull then ends with ErrStreamClosed.
func (s *Stream) Close() error {
	s.mu.Lock()
	if !s.state.terminal() {
		s.state = StateClosed
		s.err = ErrStreamClosed
	}
	s.mu.Unlock()
	return s.release()
}

func (s *Stream) begin() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.terminal() {
		return true, s.err
	}
	s.state = StatePulling
	return false, nil
}

func (s *Stream) setIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StatePulling {
		s.state = StateIdle
	}
}

// finish moves the stream to a terminal state unless it already is in one, and
// returns the error callers will see from now on.
func (s *Stream) finish(state State, err error) error {
	s.mu.Lock()
	if !s.state.terminal() {
		s.state = state
		s.err = err
		if state == StateFailed {
			log.Debug().Err(err).Str("component", "chat").Str("request_id", s.turn.RequestID).Msg("chat stream failed")
		} else {
			log.Debug().Str("component", "chat").Str("request_id", s.turn.RequestID).Int("outputs", s.seq).Msg("chat stream completed")
		}
	}
	err = s.err
	s.mu.Unlock()

	if cerr := s.release(); cerr != nil {
		log.Warn().Err(cerr).Str("component", "chat").Str("request_id", s.turn.RequestID).Msg("chat stream: inbound close failed")
	}
	return err
}

func (s *Stream) release() error {
	var err error
	s.releaseOnce.Do(func() {
		s.cleanup.Stop()
		err = s.inbound.Close()
	})
	return err
}

func (s *Stream) publish(ctx context.Context, seq int, out Output) {
	s.mu.Lock()
	if m, ok := out.(Metadata); ok && s.turn.ConversationID == "" {
		s.turn.ConversationID = m.ConversationID
	}
	turn := s.turn
	s.mu.Unlock()

	for _, sink := range s.sinks {
		if sink == nil {
			continue
		}
		if err := sink.PublishOutput(ctx, turn, seq, out); err != nil {
			log.Warn().Err(err).Str("component", "chat").Str("request_id", turn.RequestID).Msg("chat stream: event sink failed")
		}
	}
}

func kindOf(ev InboundEvent) string {
	if ev == nil {
		return "nil"
	}
	return ev.Kind()
}
