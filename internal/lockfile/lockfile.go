// Package lockfile reads the credentials the League client writes while it
// is running.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var ErrNotFound = errors.New("lockfile not found")
var ErrTimeout = errors.New("timed out waiting for the league client")

// PollInterval is how often Acquire looks for the lockfile.
var PollInterval = 500 * time.Millisecond

type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
)

type Credentials struct {
	Name     string
	PID      int
	Port     uint16
	Token    string
	Protocol Protocol
}

// Parse reads "name:pid:port:password:protocol". Anything after the fifth
// field is ignored.
func Parse(data []byte) (Credentials, error) {
	fields := strings.Split(strings.TrimSpace(string(data)), ":")
	if len(fields) < 5 {
		return Credentials{}, fmt.Errorf("%w: expected 5 fields, got %d", ErrNotFound, len(fields))
	}

	pid, err := strconv.Atoi(fields[1])
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: bad pid %q", ErrNotFound, fields[1])
	}
	port, err := strconv.ParseUint(fields[2], 10, 16)
	if err != nil || port == 0 {
		return Credentials{}, fmt.Errorf("%w: bad port %q", ErrNotFound, fields[2])
	}
	if fields[3] == "" {
		return Credentials{}, fmt.Errorf("%w: empty auth token", ErrNotFound)
	}
	protocol := Protocol(fields[4])
	if protocol != ProtocolHTTP && protocol != ProtocolHTTPS {
		return Credentials{}, fmt.Errorf("%w: bad protocol %q", ErrNotFound, fields[4])
	}

	return Credentials{
		Name:     fields[0],
		PID:      pid,
		Port:     uint16(port),
		Token:    fields[3],
		Protocol: protocol,
	}, nil
}

// Read parses the lockfile at path. A missing or unreadable file is reported
// as ErrNotFound since the client may be mid-startup.
func Read(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return Parse(data)
}

// Acquire polls the given paths until one holds valid credentials. A nil
// wait polls until ctx is done.
func Acquire(ctx context.Context, wait *time.Duration, paths ...string) (Credentials, error) {
	if len(paths) == 0 {
		return Credentials{}, fmt.Errorf("%w: no lockfile paths", ErrNotFound)
	}

	op := func() (Credentials, error) {
		var lastErr error
		for _, path := range paths {
			creds, err := Read(path)
			if err == nil {
				return creds, nil
			}
			lastErr = err
		}
		return Credentials{}, lastErr
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(PollInterval)),
		backoff.WithMaxElapsedTime(0),
	}
	if wait != nil {
		if *wait <= 0 {
			opts = append(opts, backoff.WithMaxTries(1))
		} else {
			opts = append(opts, backoff.WithMaxElapsedTime(*wait))
		}
	}

	creds, err := backoff.Retry(ctx, op, opts...)
	if err != nil {
		if ctx.Err() != nil {
			return Credentials{}, ctx.Err()
		}
		if wait == nil {
			return Credentials{}, err
		}
		return Credentials{}, fmt.Errorf("%w after %s: %w", ErrTimeout, *wait, err)
	}
	return creds, nil
}

// DefaultPaths lists where the client writes its lockfile on this OS.
func DefaultPaths() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{
			`C:\Riot Games\League of Legends\lockfile`,
			`D:\Riot Games\League of Legends\lockfile`,
		}
	case "darwin":
		return []string{"/Applications/League of Legends.app/Contents/LoL/lockfile"}
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		return []string{
			filepath.Join(home, "Games", "league-of-legends", "drive_c", "Riot Games", "League of Legends", "lockfile"),
			filepath.Join(home, ".wine", "drive_c", "Riot Games", "League of Legends", "lockfile"),
		}
	}
}
