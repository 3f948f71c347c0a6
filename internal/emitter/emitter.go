// Package emitter pushes presence snapshots to the local Discord client.
package emitter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lol-presence/internal/discordipc"
	"github.com/DoyleJ11/lol-presence/pkg/types"
)

var (
	ErrEmit               = errors.New("presence emit failed")
	ErrServiceUnavailable = errors.New("discord is not running")
	ErrClosed             = errors.New("emitter closed")
)

// EmitError is returned when a publish failed on a fresh connection too.
type EmitError struct {
	Err error
}

func (e *EmitError) Error() string {
	return fmt.Sprintf("%v: %v", ErrEmit, e.Err)
}

func (e *EmitError) Unwrap() []error {
	return []error{ErrEmit, e.Err}
}

// Conn is one handshaken session with the presence service.
type Conn interface {
	SetActivity(ctx context.Context, activity *discordipc.Activity) error
	Close() error
}

type DialFunc func(ctx context.Context, clientID string) (Conn, error)

// DialDiscord connects over the local IPC socket.
func DialDiscord(ctx context.Context, clientID string) (Conn, error) {
	c, err := discordipc.Connect(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return c, nil
}

var RetryInterval = 2 * time.Second

type Emitter struct {
	clientID string
	dial     DialFunc
	logger   *zap.Logger

	mu     sync.Mutex
	conn   Conn
	closed bool
}

func New(clientID string, dial DialFunc, logger *zap.Logger) *Emitter {
	if dial == nil {
		dial = DialDiscord
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{clientID: clientID, dial: dial, logger: logger}
}

// WaitForService blocks until a connection succeeds. A nil wait retries
// until ctx ends; a finite wait that runs out returns ErrServiceUnavailable.
// The connection is kept for the first Publish.
func (e *Emitter) WaitForService(ctx context.Context, wait *time.Duration) error {
	opts := []backoff.RetryOption{backoff.WithBackOff(backoff.NewConstantBackOff(RetryInterval))}
	if wait != nil {
		if *wait <= 0 {
			opts = append(opts, backoff.WithMaxTries(1))
		} else {
			opts = append(opts, backoff.WithMaxElapsedTime(*wait))
		}
	} else {
		opts = append(opts, backoff.WithMaxElapsedTime(0))
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if err := e.connect(ctx); err != nil {
			if errors.Is(err, ErrClosed) {
				return struct{}{}, backoff.Permanent(err)
			}
			if attempt == 1 {
				e.logger.Info("waiting for discord", zap.Error(err))
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, opts...)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, ErrClosed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
}

func (e *Emitter) connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.conn != nil {
		return nil
	}
	conn, err := e.dial(ctx, e.clientID)
	if err != nil {
		return err
	}
	e.conn = conn
	return nil
}

// Publish replaces the visible presence with snap. The zero snapshot clears
// it. A failed attempt is retried once on a new connection.
func (e *Emitter) Publish(ctx context.Context, snap types.Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	activity := toActivity(snap)
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if e.conn == nil {
			conn, err := e.dial(ctx, e.clientID)
			if err != nil {
				lastErr = err
				continue
			}
			e.conn = conn
			if attempt > 0 {
				e.logger.Info("reconnected to discord")
			}
		}
		err := e.conn.SetActivity(ctx, activity)
		if err == nil {
			return nil
		}
		lastErr = err
		e.logger.Debug("set activity failed, dropping connection", zap.Error(err))
		_ = e.conn.Close()
		e.conn = nil
	}
	return &EmitError{Err: lastErr}
}

// Close drops the connection. Discord clears the activity of a closed
// socket on its own. Safe to call more than once.
func (e *Emitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.conn == nil {
		return nil
	}
	err := e.conn.Close()
	e.conn = nil
	return err
}

func toActivity(s types.Snapshot) *discordipc.Activity {
	if s.IsZero() {
		return nil
	}
	act := &discordipc.Activity{
		Details: s.Details,
		State:   s.State,
	}
	if s.StartTimestamp > 0 {
		act.Timestamps = &discordipc.Timestamps{Start: s.StartTimestamp}
	}
	if s.LargeImageKey != "" || s.SmallImageKey != "" {
		act.Assets = &discordipc.Assets{
			LargeImage: s.LargeImageKey,
			LargeText:  s.LargeImageText,
			SmallImage: s.SmallImageKey,
			SmallText:  s.SmallImageText,
		}
	}
	if !s.Party.IsZero() {
		act.Party = &discordipc.Party{ID: s.Party.ID}
		if s.Party.Size > 0 && s.Party.Max > 0 {
			act.Party.Size = []int{s.Party.Size, s.Party.Max}
		}
	}
	return act
}
