// Package discordipc speaks Discord's local RPC protocol: little-endian
// opcode and length headers followed by a JSON body, over a unix socket or
// a Windows named pipe.
package discordipc

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

const (
	OpHandshake uint32 = 0
	OpFrame     uint32 = 1
	OpClose     uint32 = 2
	OpPing      uint32 = 3
	OpPong      uint32 = 4
)

const maxFrameSize = 64 << 10

var ErrNoSocket = errors.New("discord ipc socket not found")
var ErrClosed = errors.New("discord ipc connection closed")

// RPCError is an ERROR event or a close frame sent by Discord.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("discord rpc error %d: %s", e.Code, e.Message)
}

type Activity struct {
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
	Party      *Party      `json:"party,omitempty"`
}

type Timestamps struct {
	Start int64 `json:"start,omitempty"`
}

type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

type Party struct {
	ID   string `json:"id,omitempty"`
	Size []int  `json:"size,omitempty"`
}

func WriteFrame(w io.Writer, op uint32, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return writeRaw(w, op, body)
}

func ReadFrame(r io.Reader) (uint32, []byte, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	op := binary.LittleEndian.Uint32(header[0:4])
	n := binary.LittleEndian.Uint32(header[4:8])
	if n > maxFrameSize {
		return 0, nil, fmt.Errorf("frame of %d bytes exceeds limit", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return op, body, nil
}

type Client struct {
	rw io.ReadWriteCloser

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func NewClient(rw io.ReadWriteCloser) *Client {
	return &Client{rw: rw}
}

// Connect finds a running Discord and completes the handshake.
func Connect(ctx context.Context, clientID string) (*Client, error) {
	rw, err := Dial(ctx)
	if err != nil {
		return nil, err
	}
	c := NewClient(rw)
	if err := c.Handshake(ctx, clientID); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) Handshake(ctx context.Context, clientID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	defer c.withDeadline(ctx)()

	if err := WriteFrame(c.rw, OpHandshake, map[string]any{"v": 1, "client_id": clientID}); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	data, err := c.readReply()
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	if evt := gjson.GetBytes(data, "evt").String(); evt != "READY" {
		return fmt.Errorf("handshake: unexpected event %q", evt)
	}
	return nil
}

// SetActivity replaces the presence. A nil activity clears it.
func (c *Client) SetActivity(ctx context.Context, activity *Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	defer c.withDeadline(ctx)()

	nonce := uuid.NewString()
	req := map[string]any{
		"cmd": "SET_ACTIVITY",
		"args": map[string]any{
			"pid":      os.Getpid(),
			"activity": activity,
		},
		"nonce": nonce,
	}
	if err := WriteFrame(c.rw, OpFrame, req); err != nil {
		return fmt.Errorf("set activity: %w", err)
	}

	for {
		data, err := c.readReply()
		if err != nil {
			return fmt.Errorf("set activity: %w", err)
		}
		reply := gjson.ParseBytes(data)
		if n := reply.Get("nonce").String(); n != "" && n != nonce {
			continue
		}
		if reply.Get("evt").String() == "ERROR" {
			return &RPCError{
				Code:    int(reply.Get("data.code").Int()),
				Message: reply.Get("data.message").String(),
			}
		}
		return nil
	}
}

// readReply returns the next frame body, answering pings on the way.
func (c *Client) readReply() ([]byte, error) {
	for {
		op, data, err := ReadFrame(c.rw)
		if err != nil {
			return nil, err
		}
		switch op {
		case OpFrame:
			return data, nil
		case OpPing:
			if err := writeRaw(c.rw, OpPong, data); err != nil {
				return nil, err
			}
		case OpClose:
			c.closed = true
			res := gjson.ParseBytes(data)
			return nil, &RPCError{Code: int(res.Get("code").Int()), Message: res.Get("message").String()}
		}
	}
}

type deadliner interface {
	SetDeadline(time.Time) error
}

// withDeadline applies ctx's deadline to the connection when it supports one
// and returns a func that clears it.
func (c *Client) withDeadline(ctx context.Context) func() {
	d, ok := c.rw.(deadliner)
	if !ok {
		return func() {}
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = d.SetDeadline(deadline)
	}
	return func() { _ = d.SetDeadline(time.Time{}) }
}

// Close sends a close frame and releases the connection. Safe to call more
// than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.closed {
			_ = WriteFrame(c.rw, OpClose, map[string]any{})
		}
		c.closed = true
		err = c.rw.Close()
	})
	return err
}

func writeRaw(w io.Writer, op uint32, body []byte) error {
	buf := make([]byte, 8+len(body))
	binary.LittleEndian.PutUint32(buf[0:4], op)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(body)))
	copy(buf[8:], body)
	_, err := w.Write(buf)
	return err
}
