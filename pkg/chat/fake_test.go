package chat

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

type inboundItem struct {
	ev  InboundEvent
	err error
}

func event(ev InboundEvent) inboundItem { return inboundItem{ev: ev} }

func failure(err error) inboundItem { return inboundItem{err: err} }

// fakeInbound replays a fixed list of events, then io.EOF. When gate is set,
// every Recv waits for a value on it (or for ctx / Close).
type fakeInbound struct {
	mu         sync.Mutex
	items      []inboundItem
	received   int
	closeCount int

	gate     chan struct{}
	done     chan struct{}
	doneOnce sync.Once

	inFlight   atomic.Int32
	overlapped atomic.Bool
}

func newFakeInbound(items ...inboundItem) *fakeInbound {
	return &fakeInbound{items: items, done: make(chan struct{})}
}

func (f *fakeInbound) Recv(ctx context.Context) (InboundEvent, error) {
	if f.inFlight.Add(1) > 1 {
		f.overlapped.Store(true)
	}
	defer f.inFlight.Add(-1)

	if f.gate != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.done:
			return nil, io.EOF
		case <-f.gate:
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.received >= len(f.items) {
		return nil, io.EOF
	}
	it := f.items[f.received]
	f.received++
	return it.ev, it.err
}

func (f *fakeInbound) Close() error {
	f.mu.Lock()
	f.closeCount++
	f.mu.Unlock()
	f.doneOnce.Do(func() { close(f.done) })
	return nil
}

func (f *fakeInbound) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCount
}

type stubClient struct {
	mu       sync.Mutex
	requests []ChatRequest
	inputs   [][]InputEvent

	inbound InboundStream
	err     error

	apps    []ApplicationSummary
	appsErr error
}

func (c *stubClient) Chat(_ context.Context, req ChatRequest, inputs []InputEvent) (InboundStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	c.inputs = append(c.inputs, inputs)
	if c.err != nil {
		return nil, c.err
	}
	return c.inbound, nil
}

func (c *stubClient) ListApplications(context.Context) ([]ApplicationSummary, error) {
	return c.apps, c.appsErr
}

type sinkCall struct {
	turn TurnInfo
	seq  int
	out  Output
}

type recordingSink struct {
	mu    sync.Mutex
	calls []sinkCall
	err   error
}

func (s *recordingSink) PublishOutput(_ context.Context, turn TurnInfo, seq int, out Output) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sinkCall{turn: turn, seq: seq, out: out})
	return s.err
}

func ptr(s string) *string { return &s }
