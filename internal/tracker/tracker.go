// Package tracker runs the single goroutine that owns the presence state.
// Everything that changes the state arrives as a message on its inbox.
package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lol-presence/internal/engine"
	"github.com/DoyleJ11/lol-presence/internal/lcu"
	"github.com/DoyleJ11/lol-presence/internal/presence"
	"github.com/DoyleJ11/lol-presence/pkg/types"
)

var ErrStopped = errors.New("tracker stopped")

// Source answers the client queries the tracker makes after an event.
type Source interface {
	GameflowPhase(ctx context.Context) (engine.Phase, error)
	ClientInfo(ctx context.Context, prev engine.ClientInfo) (engine.ClientInfo, error)
	CurrentChampion(ctx context.Context) (engine.Champion, bool, error)
	Champion(ctx context.Context, id int) (engine.Champion, error)
	MatchContext(ctx context.Context) (engine.MatchContext, error)
}

// StatsSource reads the in-match scoreboard.
type StatsSource interface {
	LiveStats(ctx context.Context) (engine.Reading, error)
	GameTime(ctx context.Context) (time.Duration, error)
}

type Publisher interface {
	Publish(ctx context.Context, snap types.Snapshot) error
	Close() error
}

type Msg interface{ isTrackerMsg() }

// Connected is sent once a new event stream is up. Any earlier state is
// discarded and rebuilt from Source.
type Connected struct {
	Source Source
	Stats  StatsSource
}

func (Connected) isTrackerMsg() {}

type EventReceived struct {
	Event lcu.Event
}

func (EventReceived) isTrackerMsg() {}

type Disconnected struct{}

func (Disconnected) isTrackerMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isTrackerMsg() {}

type Shutdown struct{}

func (Shutdown) isTrackerMsg() {}

type View struct {
	Connected bool
	Polling   bool
	State     engine.State
	Snapshot  types.Snapshot // last one the publisher accepted
	Published bool
}

type Config struct {
	Options           presence.Options
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	// GracePeriod is how long a lost connection keeps the presence before
	// it is cleared.
	GracePeriod  time.Duration
	QueryTimeout time.Duration
	Now          func() time.Time
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 60 * time.Second
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = 10 * time.Second
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 5 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type Tracker struct {
	inbox     chan Msg
	state     engine.State
	cfg       Config
	publisher Publisher
	logger    *zap.Logger

	source    Source
	stats     StatsSource
	connected bool

	poll  *time.Ticker
	grace *time.Timer

	last      types.Snapshot
	published bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(parent context.Context, publisher Publisher, cfg Config, logger *zap.Logger) *Tracker {
	ctx, cancel := context.WithCancel(parent)
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Tracker{
		inbox:     make(chan Msg, 64),
		state:     engine.NewState(),
		cfg:       cfg.withDefaults(),
		publisher: publisher,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	go t.loop()
	return t
}

// Send delivers m unless the tracker has already stopped.
func (t *Tracker) Send(m Msg) bool {
	select {
	case <-t.done:
		return false
	default:
	}
	select {
	case t.inbox <- m:
		return true
	case <-t.done:
		return false
	}
}

// View asks the loop for its current view.
func (t *Tracker) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if !t.Send(GetState{Reply: reply}) {
		return View{}, ErrStopped
	}
	select {
	case v := <-reply:
		return v, nil
	case <-t.done:
		return View{}, ErrStopped
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Done is closed once the loop has exited and the publisher is closed.
func (t *Tracker) Done() <-chan struct{} { return t.done }

func (t *Tracker) loop() {
	defer close(t.done)

	heartbeat := time.NewTicker(t.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-t.ctx.Done():
			t.shutdown()
			return

		case m := <-t.inbox:
			if t.handle(m) {
				return
			}

		case <-t.pollC():
			// events queued behind the tick win
			if t.drain() {
				return
			}
			if t.poll != nil {
				t.pollStats()
				t.emit()
			}

		case <-heartbeat.C:
			t.heartbeat()

		case <-t.graceC():
			t.grace = nil
			t.logger.Info("client did not come back, clearing presence")
			t.apply(engine.Command{Type: engine.CmdReset})
			t.emit()
		}
	}
}

func (t *Tracker) drain() bool {
	for {
		select {
		case m := <-t.inbox:
			if t.handle(m) {
				return true
			}
		default:
			return false
		}
	}
}

// handle reports whether the loop must stop.
func (t *Tracker) handle(m Msg) bool {
	switch msg := m.(type) {
	case Connected:
		t.stopGrace()
		t.source = msg.Source
		t.stats = msg.Stats
		t.connected = true
		t.apply(engine.Command{Type: engine.CmdReset})
		t.resync()
		t.emit()

	case EventReceived:
		if !t.connected {
			break
		}
		t.route(msg.Event)
		t.emit()

	case Disconnected:
		if !t.connected {
			break
		}
		t.connected = false
		t.source = nil
		t.stats = nil
		t.apply(engine.Command{Type: engine.CmdConnectionLost})
		t.grace = time.NewTimer(t.cfg.GracePeriod)
		t.logger.Info("client connection lost", zap.Duration("grace", t.cfg.GracePeriod))

	case GetState:
		// reflect internal state without data races
		msg.Reply <- View{
			Connected: t.connected,
			Polling:   t.poll != nil,
			State:     t.state,
			Snapshot:  t.last,
			Published: t.published,
		}

	case Shutdown:
		t.shutdown()
		return true
	}
	return false
}

// resync rebuilds the state from scratch after a connect.
func (t *Tracker) resync() {
	ctx, cancel := t.queryCtx()
	phase, err := t.source.GameflowPhase(ctx)
	cancel()
	if err != nil {
		t.logger.Warn("failed to read gameflow phase", zap.Error(err))
		t.refreshClient()
		return
	}
	if err := t.apply(engine.Command{Type: engine.CmdSetPhase, Phase: phase}); errors.Is(err, engine.ErrPhaseUnchanged) {
		t.refreshClient()
	}
}

// route applies one client event.
func (t *Tracker) route(ev lcu.Event) {
	switch ev.URI {
	case lcu.URIGameflowPhase:
		if ev.Type == lcu.EventDelete {
			return
		}
		phase, err := engine.ParsePhase(gjson.ParseBytes(ev.Data).String())
		if err != nil {
			t.logger.Debug("ignoring gameflow phase", zap.Error(err))
			return
		}
		t.apply(engine.Command{Type: engine.CmdSetPhase, Phase: phase})

	case lcu.URICurrentChampion:
		id := int(gjson.ParseBytes(ev.Data).Int())
		if ev.Type == lcu.EventDelete || id == 0 {
			t.apply(engine.Command{Type: engine.CmdClearChampion})
			return
		}
		ctx, cancel := t.queryCtx()
		champ, err := t.source.Champion(ctx, id)
		cancel()
		if err != nil {
			t.logger.Debug("champion lookup failed", zap.Int("champion_id", id), zap.Error(err))
			return
		}
		t.apply(engine.Command{Type: engine.CmdLockChampion, Champion: champ})

	case lcu.URILobby, lcu.URIChatMe, lcu.URIRankedStats:
		t.refreshClient()
	}
}

// apply runs cmd through the engine and carries out the resulting effects.
// Rejections that only mean "nothing changed" are not logged.
func (t *Tracker) apply(cmd engine.Command) error {
	events, newState, err := engine.Apply(t.state, cmd)
	if err != nil {
		if !errors.Is(err, engine.ErrPhaseUnchanged) && !errors.Is(err, engine.ErrNoChange) {
			t.logger.Debug("command rejected", zap.String("cmd", string(cmd.Type)), zap.Error(err))
		}
		return err
	}
	t.state = newState

	for _, ev := range events {
		switch ev.Type {
		case engine.EvtPhaseChanged:
			t.logger.Info("gameflow phase changed",
				zap.String("from", string(ev.From)),
				zap.String("to", string(ev.To)))
		case engine.EvtFetchChampion:
			t.fetchChampion()
		case engine.EvtFetchMatch:
			t.fetchMatch()
		case engine.EvtFetchClientInfo:
			t.refreshClient()
		case engine.EvtPollingStarted:
			t.startPolling()
		case engine.EvtPollingStopped:
			t.stopPolling()
		}
	}
	return nil
}

func (t *Tracker) fetchChampion() {
	if t.source == nil {
		return
	}
	ctx, cancel := t.queryCtx()
	defer cancel()
	champ, ok, err := t.source.CurrentChampion(ctx)
	if err != nil {
		t.logger.Debug("current champion query failed", zap.Error(err))
		return
	}
	if ok {
		t.apply(engine.Command{Type: engine.CmdLockChampion, Champion: champ})
	}
}

func (t *Tracker) fetchMatch() {
	var match engine.MatchContext
	if t.source != nil {
		ctx, cancel := t.queryCtx()
		m, err := t.source.MatchContext(ctx)
		cancel()
		if err != nil {
			t.logger.Debug("match context query failed", zap.Error(err))
		} else {
			match = m
		}
	}
	if match.StartTimestamp == 0 {
		match.StartTimestamp = t.matchStart()
	}
	t.apply(engine.Command{Type: engine.CmdStartMatch, Match: match})
}

// matchStart backdates the start by the in-game clock so a reconnect or a
// late launch keeps the running timer.
func (t *Tracker) matchStart() int64 {
	now := t.cfg.Now()
	if t.stats == nil {
		return now.Unix()
	}
	ctx, cancel := t.queryCtx()
	elapsed, err := t.stats.GameTime(ctx)
	cancel()
	if err != nil {
		t.logger.Debug("game time unavailable", zap.Error(err))
		return now.Unix()
	}
	return now.Add(-elapsed).Unix()
}

func (t *Tracker) refreshClient() {
	if t.source == nil {
		return
	}
	ctx, cancel := t.queryCtx()
	info, err := t.source.ClientInfo(ctx, t.state.Client)
	cancel()
	if err != nil {
		// partial results still carry whatever did succeed
		t.logger.Debug("client info partially unavailable", zap.Error(err))
	}
	t.apply(engine.Command{Type: engine.CmdUpdateClient, Client: info})
}

func (t *Tracker) startPolling() {
	if t.poll != nil {
		return
	}
	t.poll = time.NewTicker(t.cfg.PollInterval)
	t.logger.Debug("stats polling started", zap.Duration("interval", t.cfg.PollInterval))
	t.pollStats()
}

func (t *Tracker) stopPolling() {
	if t.poll == nil {
		return
	}
	t.poll.Stop()
	t.poll = nil
	t.logger.Debug("stats polling stopped")
}

func (t *Tracker) pollStats() {
	if t.stats == nil {
		return
	}
	ctx, cancel := t.queryCtx()
	reading, err := t.stats.LiveStats(ctx)
	cancel()
	if err != nil {
		// the API is down during loading screens
		t.logger.Debug("live stats unavailable", zap.Error(err))
		return
	}
	t.apply(engine.Command{Type: engine.CmdRecordStats, Reading: reading})
}

// emit publishes the current snapshot when it differs from the last one
// that was accepted. A zero snapshot before anything was shown is a no-op.
func (t *Tracker) emit() {
	if t.grace != nil {
		return
	}
	snap := presence.Build(t.state, t.cfg.Options)
	if snap == t.last {
		return
	}
	t.publish(snap)
}

// heartbeat republishes the current snapshot so a restarted Discord picks
// it up again.
func (t *Tracker) heartbeat() {
	if t.grace != nil {
		return
	}
	snap := presence.Build(t.state, t.cfg.Options)
	if !t.published && snap.IsZero() {
		return
	}
	t.publish(snap)
}

func (t *Tracker) publish(snap types.Snapshot) {
	ctx, cancel := t.queryCtx()
	defer cancel()
	if err := t.publisher.Publish(ctx, snap); err != nil {
		t.logger.Warn("failed to publish presence", zap.Error(err))
		return
	}
	t.last = snap
	t.published = true
	t.logger.Debug("presence published",
		zap.String("details", snap.Details),
		zap.String("fingerprint", presence.Fingerprint(snap)))
}

func (t *Tracker) stopGrace() {
	if t.grace == nil {
		return
	}
	t.grace.Stop()
	t.grace = nil
}

func (t *Tracker) shutdown() {
	t.stopPolling()
	t.stopGrace()
	t.cancel()
	if err := t.publisher.Close(); err != nil {
		t.logger.Warn("failed to close publisher", zap.Error(err))
	}
}

func (t *Tracker) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(t.ctx, t.cfg.QueryTimeout)
}

func (t *Tracker) pollC() <-chan time.Time {
	if t.poll == nil {
		return nil
	}
	return t.poll.C
}

func (t *Tracker) graceC() <-chan time.Time {
	if t.grace == nil {
		return nil
	}
	return t.grace.C
}
