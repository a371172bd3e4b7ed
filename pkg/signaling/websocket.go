package signaling

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sara-star-quant/quantum-call/internal/constants"
	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
)

// writeTimeout bounds a single websocket write when the caller's context
// has no deadline.
const writeTimeout = 10 * time.Second

// WSChannel is a Channel over a websocket connection to a relay Server.
type WSChannel struct {
	conn *websocket.Conn

	wmu sync.Mutex
	in  chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// RoomURL builds the websocket URL for joining room as peer on the relay at
// base ("ws://host:port" or "http://host:port").
func RoomURL(base, room, peer string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("signaling: invalid relay url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("signaling: unsupported relay scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/rooms/" + url.PathEscape(room) + "/ws"
	u.RawQuery = url.Values{"peer": []string{peer}}.Encode()
	return u.String(), nil
}

// Dial joins room on the relay at base as peer.
func Dial(ctx context.Context, base, room, peer string) (*WSChannel, error) {
	u, err := RoomURL(base, room, peer)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil, qerrors.ErrRoomFull
		}
		return nil, fmt.Errorf("signaling: dial relay: %w", err)
	}
	return newWSChannel(conn), nil
}

func newWSChannel(conn *websocket.Conn) *WSChannel {
	conn.SetReadLimit(constants.MaxMessageSize)
	c := &WSChannel{
		conn: conn,
		in:   make(chan []byte, pipeBuffer),
		done: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *WSChannel) readLoop() {
	defer close(c.in)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case c.in <- data:
		case <-c.done:
			return
		}
	}
}

// Send writes one message.
func (c *WSChannel) Send(ctx context.Context, data []byte) error {
	if len(data) > constants.MaxMessageSize {
		return qerrors.ErrMessageTooLarge
	}
	select {
	case <-c.done:
		return qerrors.ErrChannelClosed
	default:
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeTimeout)
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return qerrors.ErrChannelClosed
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return qerrors.ErrChannelClosed
	}
	return nil
}

// Receive returns the next message.
func (c *WSChannel) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-c.in:
		if !ok {
			return nil, qerrors.ErrChannelClosed
		}
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close sends a close frame and closes the connection.
func (c *WSChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.wmu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.wmu.Unlock()
		err = c.conn.Close()
	})
	return err
}
