package cai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	readLimit       = 8 << 20
	incomingBacklog = 64
	closeGrace      = time.Second
	writeTimeout    = 10 * time.Second
)

// Conn is one chat2 socket. It runs a single exchange at a time: concurrent
// calls queue on an internal lock. Close may be called from any goroutine and
// unblocks a pending call with ErrClosed.
type Conn struct {
	*Chat2Service

	ws          *websocket.Conn
	log         *zap.Logger
	turnTimeout time.Duration

	// exchange serializes command/response round trips.
	exchange sync.Mutex

	incoming  chan frame
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

type frame struct {
	data []byte
	err  error
}

// Dial opens the chat2 socket with the session token or the WithToken
// override. A handshake rejected by the server yields *AuthError and leaves
// nothing open.
func (c *Client) Dial(ctx context.Context, opts ...CallOption) (*Conn, error) {
	key := c.resolveToken(opts)
	header := http.Header{}
	header.Set("Cookie", fmt.Sprintf(`HTTP_AUTHORIZATION="Token %s"`, key))

	c.log.Debug("connecting to server", zap.String("url", c.cfg.WebSocketURL))
	ws, resp, err := c.dialer.DialContext(ctx, c.cfg.WebSocketURL, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusSwitchingProtocols {
				return nil, &AuthError{StatusCode: resp.StatusCode, Detail: "websocket handshake rejected"}
			}
		}
		if errors.Is(err, websocket.ErrBadHandshake) {
			return nil, &AuthError{Detail: "websocket handshake rejected"}
		}
		return nil, fmt.Errorf("cai: dial %s: %w", c.cfg.WebSocketURL, err)
	}
	ws.SetReadLimit(readLimit)

	conn := &Conn{
		Chat2Service: c.Chat2,
		ws:           ws,
		log:          c.log,
		turnTimeout:  c.cfg.TurnTimeout,
		incoming:     make(chan frame, incomingBacklog),
		done:         make(chan struct{}),
	}
	go conn.readLoop()
	return conn, nil
}

// Connect dials, hands the connection to fn and closes it when fn returns,
// whatever the outcome.
func (c *Client) Connect(ctx context.Context, fn func(*Conn) error, opts ...CallOption) (err error) {
	conn, err := c.Dial(ctx, opts...)
	if err != nil {
		return err
	}
	defer func() {
		c.log.Debug("closing connection")
		if cerr := conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(conn)
}

// Close sends a close frame and releases the socket. Calling it more than
// once, or on a nil Conn, is a no-op.
func (c *Conn) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGrace))
		if err := c.ws.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			c.closeErr = err
		}
	})
	return c.closeErr
}

// readLoop pumps frames off the socket until it fails or Close is called.
func (c *Conn) readLoop() {
	defer close(c.incoming)
	for {
		_, data, err := c.ws.ReadMessage()
		select {
		case c.incoming <- frame{data: data, err: err}:
		case <-c.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// boundContext applies the turn timeout when ctx has no deadline of its own.
func (c *Conn) boundContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || c.turnTimeout < 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.turnTimeout)
}

func (c *Conn) send(ctx context.Context, cmd command) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	data, err := marshal(cmd)
	if err != nil {
		return fmt.Errorf("cai: encode %s: %w", cmd.Command, err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeTimeout)
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("cai: send %s: %w", cmd.Command, err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("cai: send %s: %w", cmd.Command, err)
	}
	c.log.Debug("sent command", zap.String("command", cmd.Command), zap.String("request_id", cmd.RequestID))
	return nil
}

func (c *Conn) recv(ctx context.Context) (*Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	case f, ok := <-c.incoming:
		if !ok {
			return nil, ErrClosed
		}
		if f.err != nil {
			if c.closed() || websocket.IsCloseError(f.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, fmt.Errorf("%w: %v", ErrClosed, f.err)
			}
			return nil, fmt.Errorf("cai: read frame: %w", f.err)
		}
		msg, err := decodeMessage(f.data)
		if err != nil {
			return nil, &ServerError{Kind: KindUnexpected, Message: "undecodable frame: " + truncate(string(f.data), maxErrorBody)}
		}
		return msg, nil
	}
}

// recvFor reads the next frame that is not addressed to another request.
func (c *Conn) recvFor(ctx context.Context, requestID string) (*Message, error) {
	for {
		msg, err := c.recv(ctx)
		if err != nil {
			return nil, err
		}
		if msg.RequestID != "" && requestID != "" && msg.RequestID != requestID {
			c.log.Debug("skipping frame for another request", zap.String("request_id", msg.RequestID))
			continue
		}
		return msg, nil
	}
}

func (c *Conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func newRequestID() string {
	return uuid.NewString()
}

// discardStale drops frames left over from an abandoned exchange so the next
// command starts on an empty queue. A read failure found there is returned.
func (c *Conn) discardStale() error {
	if c.closed() {
		return ErrClosed
	}
	for {
		select {
		case f, ok := <-c.incoming:
			if !ok {
				return ErrClosed
			}
			if f.err != nil {
				return fmt.Errorf("cai: read frame: %w", f.err)
			}
			c.log.Debug("discarding stale frame", zap.Int("bytes", len(f.data)))
		default:
			return nil
		}
	}
}
