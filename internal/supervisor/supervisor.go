// Package supervisor keeps one event stream connection to the League client
// alive and tells the tracker whenever it comes or goes.
package supervisor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lol-presence/internal/lcu"
	"github.com/DoyleJ11/lol-presence/internal/liveclient"
	"github.com/DoyleJ11/lol-presence/internal/lockfile"
	"github.com/DoyleJ11/lol-presence/internal/tracker"
	"github.com/DoyleJ11/lol-presence/internal/ws"
)

// Stream is a subscribed client event stream.
type Stream interface {
	Subscribe(ctx context.Context, topics ...string) error
	Run(ctx context.Context, deliver func(lcu.Event)) error
	Close() error
}

// Tracker is the actor the supervisor feeds.
type Tracker interface {
	Send(m tracker.Msg) bool
	Done() <-chan struct{}
}

type Deps struct {
	Acquire   func(ctx context.Context, wait *time.Duration, paths ...string) (lockfile.Credentials, error)
	Dial      func(ctx context.Context, creds lockfile.Credentials) (Stream, error)
	NewSource func(creds lockfile.Credentials) tracker.Source
	NewStats  func() tracker.StatsSource
}

// DefaultDeps talks to the real client.
func DefaultDeps(liveClientURL string) Deps {
	return Deps{
		Acquire: lockfile.Acquire,
		Dial: func(ctx context.Context, creds lockfile.Credentials) (Stream, error) {
			sub, err := ws.Dial(ctx, creds)
			if err != nil {
				return nil, err
			}
			return sub, nil
		},
		NewSource: func(creds lockfile.Credentials) tracker.Source {
			return lcu.NewClient(creds)
		},
		NewStats: func() tracker.StatsSource {
			return liveclient.NewClient(liveClientURL)
		},
	}
}

type Config struct {
	LockfilePaths []string
	// WaitForClient bounds the first lockfile wait only. Nil waits forever.
	WaitForClient *time.Duration
	RetryDelay    time.Duration
	Topics        []string
}

type Supervisor struct {
	cfg     Config
	tracker Tracker
	deps    Deps
	logger  *zap.Logger
}

func New(cfg Config, t Tracker, deps Deps, logger *zap.Logger) *Supervisor {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if len(cfg.Topics) == 0 {
		cfg.Topics = lcu.Topics()
	}
	if len(cfg.LockfilePaths) == 0 {
		cfg.LockfilePaths = lockfile.DefaultPaths()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{cfg: cfg, tracker: t, deps: deps, logger: logger}
}

// Run loops acquire, dial, subscribe and stream until ctx ends, then shuts
// the tracker down. The only error it returns is an exhausted client wait.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.stopTracker()

	wait := s.cfg.WaitForClient
	for {
		s.logger.Debug("waiting for league client", zap.Strings("paths", s.cfg.LockfilePaths))
		creds, err := s.deps.Acquire(ctx, wait, s.cfg.LockfilePaths...)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, lockfile.ErrTimeout) {
			return err
		}
		if err != nil {
			s.logger.Warn("failed to read lockfile", zap.Error(err))
			if !sleep(ctx, s.cfg.RetryDelay) {
				return nil
			}
			continue
		}
		wait = nil

		err = s.session(ctx, creds)
		if ctx.Err() != nil {
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Debug("session ended during shutdown", zap.Error(err))
			}
			return nil
		}
		switch {
		case errors.Is(err, ws.ErrConnection):
			// the lockfile shows up before the client listens
			s.logger.Debug("client not accepting connections yet", zap.Error(err))
		case err != nil:
			s.logger.Info("client connection ended", zap.Error(err))
		}
		if !sleep(ctx, s.cfg.RetryDelay) {
			return nil
		}
	}
}

// session runs one connection from dial to disconnect.
func (s *Supervisor) session(ctx context.Context, creds lockfile.Credentials) (err error) {
	stream, err := s.deps.Dial(ctx, creds)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, stream.Close())
	}()

	if err := stream.Subscribe(ctx, s.cfg.Topics...); err != nil {
		return err
	}
	s.logger.Info("connected to league client", zap.Uint16("port", creds.Port), zap.Int("pid", creds.PID))

	s.tracker.Send(tracker.Connected{Source: s.deps.NewSource(creds), Stats: s.deps.NewStats()})
	runErr := stream.Run(ctx, func(ev lcu.Event) {
		s.tracker.Send(tracker.EventReceived{Event: ev})
	})
	if ctx.Err() == nil {
		s.tracker.Send(tracker.Disconnected{})
	}
	return runErr
}

func (s *Supervisor) stopTracker() {
	if s.tracker.Send(tracker.Shutdown{}) {
		<-s.tracker.Done()
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
