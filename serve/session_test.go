package serve

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeTransport is an in-memory Transport for Session tests.
type fakeTransport struct {
	mu      sync.Mutex
	inbound chan []byte
	outbox  [][]byte
	closed  bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{inbound: make(chan []byte, 8)}
}

func (f *fakeTransport) WriteMessage(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("closed")
	}
	cp := append([]byte(nil), data...)
	f.outbox = append(f.outbox, cp)
	return nil
}

func (f *fakeTransport) ReadMessage() ([]byte, error) {
	data, ok := <-f.inbound
	if !ok {
		return nil, errors.New("transport closed")
	}
	return data, nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.inbound)
	}
	return nil
}

func (f *fakeTransport) outboxSnapshot() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.outbox))
	copy(out, f.outbox)
	return out
}

// S5: file-selected with open-file-command "emacsclient" spawns
// ["emacsclient","-n","+42","/p/x.cljs"].
func TestSession_S5_EmacsclientFileOpen(t *testing.T) {
	transport := newFakeTransport()
	bus := NewBus(time.Millisecond)
	var counter atomic.Int64

	s := NewSession(transport, bus, NewCallbackRegistry(), "emacsclient", nil, &counter, "proj", "")

	var gotName string
	var gotArgs []string
	spawned := make(chan struct{})
	s.spawn = func(name string, args []string) error {
		gotName = name
		gotArgs = append([]string(nil), args...)
		close(spawned)
		return nil
	}

	go s.Serve()

	ev := InboundEvent{FigwheelEvent: "file-selected", FileName: "/p/x.cljs", FileLine: 42}
	data, _ := json.Marshal(ev)
	transport.inbound <- data

	select {
	case <-spawned:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for spawn")
	}

	if gotName != "emacsclient" {
		t.Fatalf("spawn name = %q, want emacsclient", gotName)
	}
	want := []string{"-n", "+42", "/p/x.cljs"}
	if len(gotArgs) != len(want) {
		t.Fatalf("spawn args = %v, want %v", gotArgs, want)
	}
	for i := range want {
		if gotArgs[i] != want[i] {
			t.Fatalf("spawn args = %v, want %v", gotArgs, want)
		}
	}

	s.Close()
}

func TestSession_CallbackDispatch(t *testing.T) {
	transport := newFakeTransport()
	bus := NewBus(time.Millisecond)
	var counter atomic.Int64
	callbacks := NewCallbackRegistry()

	invoked := make(chan any, 1)
	callbacks.Register("on-thing", func(content any) { invoked <- content })

	s := NewSession(transport, bus, callbacks, "", nil, &counter, "proj", "")
	go s.Serve()

	ev := InboundEvent{FigwheelEvent: "callback", CallbackName: "on-thing", Content: "hello"}
	data, _ := json.Marshal(ev)
	transport.inbound <- data

	select {
	case got := <-invoked:
		if got != "hello" {
			t.Fatalf("content = %v, want hello", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for callback invocation")
	}

	s.Close()
}

func TestSession_UnknownCallbackSilentlyDropped(t *testing.T) {
	transport := newFakeTransport()
	bus := NewBus(time.Millisecond)
	var counter atomic.Int64

	s := NewSession(transport, bus, NewCallbackRegistry(), "", nil, &counter, "proj", "")
	go s.Serve()

	ev := InboundEvent{FigwheelEvent: "callback", CallbackName: "nope"}
	data, _ := json.Marshal(ev)
	transport.inbound <- data

	time.Sleep(20 * time.Millisecond)
	s.Close()
}

// Property 6: the connection counter and state follow the Session's
// lifecycle: 1 and OPEN while serving, 0 and CLOSED after Close. Ping
// cadence is covered by TestSession_HeartbeatCadence.
func TestSession_OpenCloseStateAndCounter(t *testing.T) {
	transport := newFakeTransport()
	bus := NewBus(time.Millisecond)
	var counter atomic.Int64

	s := NewSession(transport, bus, NewCallbackRegistry(), "", nil, &counter, "proj", "build1")
	go s.Serve()
	time.Sleep(10 * time.Millisecond)

	if counter.Load() != 1 {
		t.Fatalf("connection counter = %d, want 1 while session open", counter.Load())
	}
	if s.State() != StateOpen {
		t.Fatalf("state = %v, want StateOpen", s.State())
	}

	s.Close()
	time.Sleep(10 * time.Millisecond)

	if counter.Load() != 0 {
		t.Fatalf("connection counter = %d, want 0 after close", counter.Load())
	}
	if s.State() != StateClosed {
		t.Fatalf("state = %v, want StateClosed", s.State())
	}
}

// S6 (cadence): a ping arrives within the first interval and more follow
// over the next two intervals. Shrinks heartbeatInterval for the duration of the test so the
// assertion runs in milliseconds rather than waiting out the real 5s
// period.
func TestSession_HeartbeatCadence(t *testing.T) {
	prev := heartbeatInterval
	heartbeatInterval = 20 * time.Millisecond
	defer func() { heartbeatInterval = prev }()

	transport := newFakeTransport()
	bus := NewBus(time.Millisecond)
	var counter atomic.Int64

	s := NewSession(transport, bus, NewCallbackRegistry(), "", nil, &counter, "proj", "build1")
	go s.Serve()
	defer s.Close()

	time.Sleep(5 * time.Millisecond) // let Serve reach its select loop

	countPings := func() int {
		n := 0
		for _, raw := range transport.outboxSnapshot() {
			if msg, err := Decode(raw); err == nil && msg.MsgName == MsgPing {
				n++
			}
		}
		return n
	}

	pingsAt := func(window time.Duration) int {
		deadline := time.Now().Add(window)
		count := 0
		for time.Now().Before(deadline) {
			if c := countPings(); c > count {
				count = c
			}
			time.Sleep(time.Millisecond)
		}
		return count
	}

	first := pingsAt(25 * time.Millisecond)
	if first < 1 {
		t.Fatalf("expected at least one ping within one heartbeat interval, got %d", first)
	}

	second := pingsAt(45 * time.Millisecond)
	if second <= first {
		t.Fatalf("expected additional pings over two more intervals, first=%d second=%d", first, second)
	}
}

func TestSession_DeliversBusMessageWithIdentity(t *testing.T) {
	transport := newFakeTransport()
	bus := NewBus(time.Millisecond)
	var counter atomic.Int64

	s := NewSession(transport, bus, NewCallbackRegistry(), "", nil, &counter, "proj-1", "build-1")
	go s.Serve()
	time.Sleep(5 * time.Millisecond)

	bus.Publish(NewCompileWarningMessage("ignored", "uh oh"))

	deadline := time.After(time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for delivery to transport")
		default:
		}
		snap := transport.outboxSnapshot()
		if len(snap) > 0 {
			m, err := Decode(snap[len(snap)-1])
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if m.MsgName == MsgCompileWarning {
				if m.ProjectID != "proj-1" || m.BuildID != "build-1" {
					t.Fatalf("message identity = %+v, want proj-1/build-1", m)
				}
				s.Close()
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
}
