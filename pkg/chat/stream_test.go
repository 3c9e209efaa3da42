package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, s *Stream) ([]Output, error) {
	t.Helper()
	var outs []Output
	for {
		out, err := s.Next(context.Background())
		if err != nil {
			return outs, err
		}
		outs = append(outs, out)
	}
}

func TestStreamOrderingSkipsUnknownEvents(t *testing.T) {
	in := newFakeInbound(
		event(TextChunk{SystemMessage: ptr("a")}),
		event(UnknownEvent{Type: "ActionReviewEvent"}),
		event(TextChunk{SystemMessage: ptr("b")}),
		event(MetadataEvent{ConversationID: ptr("c"), UserMessageID: ptr("u"), SystemMessageID: ptr("s")}),
	)
	s := NewStream(in, TurnInfo{RequestID: "r1"})

	outs, err := drain(t, s)
	require.ErrorIs(t, err, ErrStreamExhausted)
	require.True(t, IsExhausted(err))
	require.Equal(t, []Output{
		Text{Content: "a"},
		Text{Content: "b"},
		Metadata{ConversationID: "c", UserMessageID: "u", SystemMessageID: "s"},
	}, outs)
	require.Equal(t, StateCompleted, s.State())
}

func TestStreamExhaustionIsIdempotent(t *testing.T) {
	in := newFakeInbound(event(TextChunk{SystemMessage: ptr("only")}))
	s := NewStream(in, TurnInfo{})

	out, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, Text{Content: "only"}, out)

	for i := 0; i < 4; i++ {
		out, err := s.Next(context.Background())
		require.Nil(t, out)
		require.ErrorIs(t, err, ErrStreamExhausted)
		require.Equal(t, StateCompleted, s.State())
	}
	require.Equal(t, 1, in.closes(), "inbound released exactly once")
}

func TestStreamReceiveFailureIsSticky(t *testing.T) {
	cause := errors.New("connection reset")
	in := newFakeInbound(
		event(TextChunk{SystemMessage: ptr("a")}),
		failure(cause),
		event(TextChunk{SystemMessage: ptr("never")}),
	)
	s := NewStream(in, TurnInfo{})

	out, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, Text{Content: "a"}, out)

	_, first := s.Next(context.Background())
	var rErr *StreamReceiveError
	require.True(t, errors.As(first, &rErr))
	require.ErrorIs(t, first, cause)
	require.Equal(t, StateFailed, s.State())

	for i := 0; i < 3; i++ {
		out, err := s.Next(context.Background())
		require.Nil(t, out)
		require.Same(t, first, err)
	}
	require.Equal(t, 1, in.closes())
}

func TestStreamMalformedMetadataFails(t *testing.T) {
	in := newFakeInbound(
		event(TextChunk{SystemMessage: ptr("Hi")}),
		event(MetadataEvent{ConversationID: ptr("c"), UserMessageID: ptr("u")}),
		event(TextChunk{SystemMessage: ptr("after")}),
	)
	s := NewStream(in, TurnInfo{})

	_, err := s.Next(context.Background())
	require.NoError(t, err)

	_, err = s.Next(context.Background())
	var mErr *MalformedMetadataError
	require.True(t, errors.As(err, &mErr))
	require.Equal(t, []string{"system_message_id"}, mErr.Missing)
	require.Equal(t, StateFailed, s.State())

	for i := 0; i < 3; i++ {
		_, again := s.Next(context.Background())
		require.Same(t, err, again)
	}
}

func TestStreamSkipsLongRunsOfUnknownEvents(t *testing.T) {
	items := []inboundItem{event(TextChunk{SystemMessage: ptr("first")})}
	for i := 0; i < 500; i++ {
		items = append(items, event(UnknownEvent{Type: fmt.Sprintf("Future%d", i)}))
	}
	items = append(items, event(TextChunk{SystemMessage: ptr("second")}))
	for i := 0; i < 50; i++ {
		items = append(items, event(UnknownEvent{}))
	}
	s := NewStream(newFakeInbound(items...), TurnInfo{})

	outs, err := drain(t, s)
	require.ErrorIs(t, err, ErrStreamExhausted)
	require.Equal(t, []Output{Text{Content: "first"}, Text{Content: "second"}}, outs)
}

func TestStreamConcurrentPullsNeverShareEvents(t *testing.T) {
	const n = 200
	items := make([]inboundItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, event(TextChunk{SystemMessage: ptr(fmt.Sprintf("m%03d", i))}))
	}
	in := newFakeInbound(items...)
	s := NewStream(in, TurnInfo{})

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				out, err := s.Next(context.Background())
				if err != nil {
					return
				}
				mu.Lock()
				seen[out.(Text).Content]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.False(t, in.overlapped.Load(), "inbound stream was read by two pulls at once")
	require.Len(t, seen, n)
	for k, c := range seen {
		require.Equal(t, 1, c, "event %s delivered more than once", k)
	}
}

func TestStreamWaitingPullHonoursContext(t *testing.T) {
	in := newFakeInbound(event(TextChunk{SystemMessage: ptr("slow")}))
	in.gate = make(chan struct{})
	s := NewStream(in, TurnInfo{})

	first := make(chan Output, 1)
	go func() {
		out, err := s.Next(context.Background())
		if err == nil {
			first <- out
		}
		close(first)
	}()

	require.Eventually(t, func() bool { return s.State() == StatePulling }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	in.gate <- struct{}{}
	select {
	case out := <-first:
		require.Equal(t, Text{Content: "slow"}, out)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for first pull")
	}

	close(in.gate)
	_, err = s.Next(context.Background())
	require.ErrorIs(t, err, ErrStreamExhausted)
}

func TestStreamCancelledPullLeavesStreamUsable(t *testing.T) {
	in := newFakeInbound(event(TextChunk{SystemMessage: ptr("later")}))
	in.gate = make(chan struct{})
	s := NewStream(in, TurnInfo{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := s.Next(ctx)
		errCh <- err
	}()
	require.Eventually(t, func() bool { return s.State() == StatePulling }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled pull did not return")
	}
	require.Equal(t, StateIdle, s.State())

	close(in.gate)
	out, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, Text{Content: "later"}, out)
}

func TestStreamCloseReleasesInboundAndEndsPendingPull(t *testing.T) {
	in := newFakeInbound(event(TextChunk{SystemMessage: ptr("unused")}))
	in.gate = make(chan struct{})
	s := NewStream(in, TurnInfo{})

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Next(context.Background())
		errCh <- err
	}()
	require.Eventually(t, func() bool { return s.State() == StatePulling }, time.Second, time.Millisecond)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrStreamClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("pending pull did not return after Close")
	}
	require.Equal(t, StateClosed, s.State())
	require.Equal(t, 1, in.closes())

	for i := 0; i < 3; i++ {
		_, err := s.Next(context.Background())
		require.ErrorIs(t, err, ErrStreamClosed)
	}
}

func TestStreamCloseAfterCompletionKeepsExhaustion(t *testing.T) {
	in := newFakeInbound()
	s := NewStream(in, TurnInfo{})

	_, err := s.Next(context.Background())
	require.ErrorIs(t, err, ErrStreamExhausted)
	require.NoError(t, s.Close())

	_, err = s.Next(context.Background())
	require.ErrorIs(t, err, ErrStreamExhausted)
	require.Equal(t, StateCompleted, s.State())
	require.Equal(t, 1, in.closes())
}

func TestStreamPublishesToSinks(t *testing.T) {
	in := newFakeInbound(
		event(TextChunk{SystemMessage: ptr("Hi")}),
		event(UnknownEvent{}),
		event(MetadataEvent{ConversationID: ptr("conv1"), UserMessageID: ptr("u1"), SystemMessageID: ptr("s1")}),
	)
	good := &recordingSink{}
	broken := &recordingSink{err: errors.New("sink down")}
	s := NewStream(in, TurnInfo{RequestID: "r1", ApplicationID: "app"}, broken, nil, good)

	outs, err := drain(t, s)
	require.ErrorIs(t, err, ErrStreamExhausted)
	require.Len(t, outs, 2)

	require.Len(t, good.calls, 2)
	require.Len(t, broken.calls, 2)
	require.Equal(t, Text{Content: "Hi"}, good.calls[0].out)
	require.Equal(t, 1, good.calls[0].seq)
	require.Equal(t, 2, good.calls[1].seq)
	require.Equal(t, "", good.calls[0].turn.ConversationID)
	require.Equal(t, "conv1", good.calls[1].turn.ConversationID)
	require.Equal(t, "r1", good.calls[1].turn.RequestID)
	require.Equal(t, "conv1", s.Turn().ConversationID)
}

func TestStreamAll(t *testing.T) {
	in := newFakeInbound(
		event(TextChunk{SystemMessage: ptr("a")}),
		event(TextChunk{SystemMessage: ptr("b")}),
	)
	s := NewStream(in, TurnInfo{})

	var got []Output
	for out, err := range s.All(context.Background()) {
		require.NoError(t, err)
		got = append(got, out)
	}
	require.Equal(t, []Output{Text{Content: "a"}, Text{Content: "b"}}, got)

	cause := errors.New("boom")
	s = NewStream(newFakeInbound(failure(cause)), TurnInfo{})
	var errs []error
	for _, err := range s.All(context.Background()) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], cause)
}
