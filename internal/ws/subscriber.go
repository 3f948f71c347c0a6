// Package ws subscribes to the League client's WAMP event stream.
package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/tidwall/gjson"

	"github.com/DoyleJ11/lol-presence/internal/lcu"
	"github.com/DoyleJ11/lol-presence/internal/lockfile"
)

var ErrConnection = errors.New("lcu connection failed")
var ErrDisconnected = errors.New("lcu event stream disconnected")

// WAMP 1.0 opcodes used by the client
const (
	opSubscribe = 5
	opEvent     = 8
)

// Champion select sessions and lobby payloads easily pass the default 32KiB.
const maxFrameSize = 8 << 20

// Subscriber is one authenticated event stream connection. It never
// reconnects: when Run returns the credentials it was dialed with are
// presumed stale.
type Subscriber struct {
	conn *websocket.Conn

	mu     sync.Mutex
	topics []string

	closeOnce sync.Once
}

func Dial(ctx context.Context, creds lockfile.Credentials) (*Subscriber, error) {
	return DialURL(ctx, fmt.Sprintf("wss://127.0.0.1:%d/", creds.Port), creds.Token)
}

func DialURL(ctx context.Context, rawURL, token string) (*Subscriber, error) {
	header := http.Header{}
	header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("riot:"+token)))

	conn, resp, err := websocket.Dial(ctx, rawURL, &websocket.DialOptions{
		HTTPClient:   &http.Client{Transport: lcu.InsecureTransport()},
		HTTPHeader:   header,
		Subprotocols: []string{"wamp"},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: token rejected: %w", ErrConnection, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	conn.SetReadLimit(maxFrameSize)

	return &Subscriber{conn: conn}, nil
}

// Subscribe asks the client for the given topics. Frames for any other
// topic are dropped by Run.
func (s *Subscriber) Subscribe(ctx context.Context, topics ...string) error {
	for _, topic := range topics {
		msg, _ := json.Marshal([]any{opSubscribe, topic})
		if err := s.conn.Write(ctx, websocket.MessageText, msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		s.mu.Lock()
		s.topics = append(s.topics, topic)
		s.mu.Unlock()
	}
	return nil
}

// Run reads frames until the stream ends and hands every subscribed event
// to deliver. It returns ctx's error on cancellation and ErrDisconnected for
// anything else.
func (s *Subscriber) Run(ctx context.Context, deliver func(lcu.Event)) error {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Treat clean close/going-away as normal
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return fmt.Errorf("%w: closed by client", ErrDisconnected)
			}
			return fmt.Errorf("%w: %w", ErrDisconnected, err)
		}

		ev, ok := s.route(data)
		if !ok {
			continue
		}
		deliver(ev)
	}
}

func (s *Subscriber) route(data []byte) (lcu.Event, bool) {
	frame := gjson.ParseBytes(data)
	if !frame.IsArray() {
		return lcu.Event{}, false
	}
	parts := frame.Array()
	if len(parts) < 3 || parts[0].Int() != opEvent {
		return lcu.Event{}, false
	}

	name := parts[1].String()
	if !s.subscribed(name) {
		return lcu.Event{}, false
	}
	ev, err := lcu.DecodeEvent(name, []byte(parts[2].Raw))
	if err != nil {
		return lcu.Event{}, false
	}
	return ev, true
}

func (s *Subscriber) subscribed(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, topic := range s.topics {
		if strings.HasPrefix(name, topic) {
			return true
		}
	}
	return false
}

// Close is safe to call more than once.
func (s *Subscriber) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close(websocket.StatusNormalClosure, "bye")
	})
	return err
}
