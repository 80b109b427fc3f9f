// Package wsclient owns the single persistent WebSocket connection of a
// signed-in user. One Conn is one handle: once it is closed or failed it
// stays that way, and reconnecting means dialing a fresh Conn.
package wsclient

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"chatsync/internal/protocol"
)

// State is the lifecycle position of a connection handle.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Conn is one duplex stream scoped to an identity/credential pair.
type Conn struct {
	userID int64
	token  string
	wsURL  string

	mu    sync.Mutex
	ws    *websocket.Conn
	state State

	onEvent func(protocol.Event)
	onOpen  func()
	onClose func(error)
	onError func(error)
}

// New prepares a handle for the given identity against an http(s) base
// URL. Callbacks must be registered before Connect.
func New(baseURL string, userID int64, token string) *Conn {
	return &Conn{
		userID: userID,
		token:  token,
		wsURL:  wsEndpoint(baseURL, userID, token),
		state:  StateIdle,
	}
}

// wsEndpoint converts the REST base URL into the chat socket target,
// addressed by user id with the bearer credential as a query param.
func wsEndpoint(baseURL string, userID int64, token string) string {
	u := strings.TrimSuffix(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return fmt.Sprintf("%s/chat/ws/%d?token=%s", u, userID, url.QueryEscape(token))
}

// OnEvent registers the consumer of decoded inbound events. At most one
// registration is active; the last one wins.
func (c *Conn) OnEvent(fn func(protocol.Event)) { c.onEvent = fn }

// OnOpen registers the open notification, e.g. to trigger the initial
// history fetch.
func (c *Conn) OnOpen(fn func()) { c.onOpen = fn }

// OnClose registers the close notification. It receives nil after a
// local Close and the transport error otherwise.
func (c *Conn) OnClose(fn func(error)) { c.onClose = fn }

// OnError registers the transport error notification.
func (c *Conn) OnError(fn func(error)) { c.onError = fn }

// State reports the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UserID returns the identity the handle is scoped to.
func (c *Conn) UserID() int64 { return c.userID }

// Connect dials the stream and starts the read loop. A handle connects
// at most once; closed and failed handles stay terminal.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("connect: handle already %s", st)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)

	c.mu.Lock()
	if c.state != StateConnecting {
		// Close raced the dial and already decided the handle's fate;
		// the fresh stream must not outlive that decision.
		st := c.state
		c.mu.Unlock()
		if err == nil {
			_ = ws.Close()
		}
		return fmt.Errorf("connect: handle %s during dial", st)
	}
	if err != nil {
		c.state = StateFailed
		c.mu.Unlock()
		return fmt.Errorf("dial %s: %w", c.wsURL, err)
	}
	c.ws = ws
	c.state = StateOpen
	c.mu.Unlock()

	if c.onOpen != nil {
		c.onOpen()
	}
	go c.readLoop()
	return nil
}

// Send encodes and writes one action frame. Sends on a handle that is
// not open are dropped, not errors: a view firing a typing indicator
// after a disconnect must not crash.
func (c *Conn) Send(a protocol.Action) error {
	data, err := protocol.Encode(a)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		log.Printf("wsclient: dropping send while %s (user %d)", c.state, c.userID)
		return nil
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close releases the stream. Safe to call on any state and more than
// once; after it returns no further sends are possible on this handle.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.state != StateOpen {
		if c.state == StateIdle || c.state == StateConnecting {
			c.state = StateClosed
		}
		c.mu.Unlock()
		return
	}
	c.state = StateClosing
	ws := c.ws
	c.mu.Unlock()

	_ = ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = ws.Close()
	// The read loop observes the closed socket and finishes the
	// Closing -> Closed transition.
}

func (c *Conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.finish(err)
			return
		}

		ev, err := protocol.Decode(data)
		if err != nil {
			// Unknown or malformed frames are ignorable; the
			// connection stays open.
			log.Printf("wsclient: ignoring frame: %v", err)
			continue
		}

		if _, ok := ev.(protocol.Ping); ok {
			// Keepalive contract: answer before anything else runs,
			// or the server evicts us as a zombie.
			if err := c.Send(protocol.Pong{}); err != nil {
				log.Printf("wsclient: pong failed: %v", err)
			}
			continue
		}

		if c.onEvent != nil {
			c.onEvent(ev)
		}
	}
}

// finish completes the state machine when the read loop exits.
func (c *Conn) finish(readErr error) {
	c.mu.Lock()
	wasClosing := c.state == StateClosing
	if wasClosing {
		c.state = StateClosed
	} else {
		c.state = StateFailed
	}
	ws := c.ws
	c.mu.Unlock()

	_ = ws.Close()

	if wasClosing {
		if c.onClose != nil {
			c.onClose(nil)
		}
		return
	}
	if c.onError != nil {
		c.onError(readErr)
	}
	if c.onClose != nil {
		c.onClose(readErr)
	}
}

// Addr returns the socket target without the credential, for logging.
func (c *Conn) Addr() string {
	if i := strings.Index(c.wsURL, "?"); i > 0 {
		return c.wsURL[:i]
	}
	return c.wsURL
}
