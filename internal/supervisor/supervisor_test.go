package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/lol-presence/internal/engine"
	"github.com/DoyleJ11/lol-presence/internal/lcu"
	"github.com/DoyleJ11/lol-presence/internal/lockfile"
	"github.com/DoyleJ11/lol-presence/internal/tracker"
	"github.com/DoyleJ11/lol-presence/internal/ws"
)

type fakeTracker struct {
	msgs     chan tracker.Msg
	done     chan struct{}
	stopOnce sync.Once
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{msgs: make(chan tracker.Msg, 64), done: make(chan struct{})}
}

func (f *fakeTracker) Send(m tracker.Msg) bool {
	select {
	case <-f.done:
		return false
	default:
	}
	f.msgs <- m
	if _, ok := m.(tracker.Shutdown); ok {
		f.stopOnce.Do(func() { close(f.done) })
	}
	return true
}

func (f *fakeTracker) Done() <-chan struct{} { return f.done }

func recvMsg(t *testing.T, ch <-chan tracker.Msg, within time.Duration) tracker.Msg {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(within):
		t.Fatalf("timed out waiting for tracker message")
		return nil // unreachable
	}
}

// fakeStream delivers events then either ends with err or, when block is
// set, waits for ctx.
type fakeStream struct {
	events []lcu.Event
	err    error
	block  bool

	mu     sync.Mutex
	topics []string
	closed int
}

func (s *fakeStream) Subscribe(_ context.Context, topics ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = append(s.topics, topics...)
	return nil
}

func (s *fakeStream) Run(ctx context.Context, deliver func(lcu.Event)) error {
	for _, ev := range s.events {
		deliver(ev)
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

type nopSource struct{}

func (nopSource) GameflowPhase(context.Context) (engine.Phase, error) { return engine.PhaseNone, nil }
func (nopSource) ClientInfo(_ context.Context, prev engine.ClientInfo) (engine.ClientInfo, error) {
	return prev, nil
}
func (nopSource) CurrentChampion(context.Context) (engine.Champion, bool, error) {
	return engine.Champion{}, false, nil
}
func (nopSource) Champion(context.Context, int) (engine.Champion, error) {
	return engine.Champion{}, nil
}
func (nopSource) MatchContext(context.Context) (engine.MatchContext, error) {
	return engine.MatchContext{}, nil
}

var creds = lockfile.Credentials{Name: "LeagueClient", PID: 4242, Port: 54321, Token: "tok", Protocol: lockfile.ProtocolHTTPS}

type recorder struct {
	mu      sync.Mutex
	waits   []*time.Duration
	streams []*fakeStream
	dialErr []error
}

func (r *recorder) deps() Deps {
	return Deps{
		Acquire: func(_ context.Context, wait *time.Duration, _ ...string) (lockfile.Credentials, error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.waits = append(r.waits, wait)
			return creds, nil
		},
		Dial: func(context.Context, lockfile.Credentials) (Stream, error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			if len(r.dialErr) > 0 {
				err := r.dialErr[0]
				r.dialErr = r.dialErr[1:]
				return nil, err
			}
			s := r.streams[0]
			if len(r.streams) > 1 {
				r.streams = r.streams[1:]
			}
			return s, nil
		},
		NewSource: func(lockfile.Credentials) tracker.Source { return nopSource{} },
		NewStats:  func() tracker.StatsSource { return nil },
	}
}

func testConfig() Config {
	return Config{LockfilePaths: []string{"/nowhere/lockfile"}, RetryDelay: 10 * time.Millisecond}
}

func TestRun_TimeoutIsFatal(t *testing.T) {
	tr := newFakeTracker()
	deps := Deps{
		Acquire: func(context.Context, *time.Duration, ...string) (lockfile.Credentials, error) {
			return lockfile.Credentials{}, fmt.Errorf("%w: after 1s", lockfile.ErrTimeout)
		},
	}

	err := New(testConfig(), tr, deps, nil).Run(context.Background())
	require.ErrorIs(t, err, lockfile.ErrTimeout)
	assert.IsType(t, tracker.Shutdown{}, recvMsg(t, tr.msgs, time.Second))
}

func TestRun_ReconnectsAfterDisconnect(t *testing.T) {
	phase := lcu.Event{URI: lcu.URIGameflowPhase, Type: lcu.EventUpdate, Data: []byte(`"Lobby"`)}
	first := &fakeStream{events: []lcu.Event{phase, phase}, err: ws.ErrDisconnected}
	second := &fakeStream{block: true}
	rec := &recorder{streams: []*fakeStream{first, second}}

	wait := 30 * time.Second
	cfg := testConfig()
	cfg.WaitForClient = &wait

	tr := newFakeTracker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- New(cfg, tr, rec.deps(), nil).Run(ctx) }()

	assert.IsType(t, tracker.Connected{}, recvMsg(t, tr.msgs, time.Second))
	for i := 0; i < 2; i++ {
		msg := recvMsg(t, tr.msgs, time.Second)
		require.IsType(t, tracker.EventReceived{}, msg)
		assert.Equal(t, phase, msg.(tracker.EventReceived).Event)
	}
	assert.IsType(t, tracker.Disconnected{}, recvMsg(t, tr.msgs, time.Second))
	assert.IsType(t, tracker.Connected{}, recvMsg(t, tr.msgs, time.Second))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.IsType(t, tracker.Shutdown{}, recvMsg(t, tr.msgs, time.Second))

	assert.Equal(t, 1, first.closed)
	assert.Equal(t, 1, second.closed)
	assert.Equal(t, lcu.Topics(), first.topics)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.waits, 2)
	assert.Equal(t, &wait, rec.waits[0])
	assert.Nil(t, rec.waits[1], "later rounds wait forever")
}

func TestRun_DialFailureRetries(t *testing.T) {
	rec := &recorder{
		streams: []*fakeStream{{block: true}},
		dialErr: []error{
			fmt.Errorf("%w: connection refused", ws.ErrConnection),
			errors.New("tls handshake timeout"),
		},
	}
	tr := newFakeTracker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- New(testConfig(), tr, rec.deps(), nil).Run(ctx) }()

	// failed dials never reach the tracker
	assert.IsType(t, tracker.Connected{}, recvMsg(t, tr.msgs, time.Second))

	cancel()
	require.NoError(t, <-done)
	assert.IsType(t, tracker.Shutdown{}, recvMsg(t, tr.msgs, time.Second))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.waits, 3)
}

func TestRun_CancelWhileWaiting(t *testing.T) {
	tr := newFakeTracker()
	deps := Deps{
		Acquire: func(ctx context.Context, _ *time.Duration, _ ...string) (lockfile.Credentials, error) {
			<-ctx.Done()
			return lockfile.Credentials{}, ctx.Err()
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, New(testConfig(), tr, deps, nil).Run(ctx))
	assert.IsType(t, tracker.Shutdown{}, recvMsg(t, tr.msgs, time.Second))
}
