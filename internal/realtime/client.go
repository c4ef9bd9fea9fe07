package realtime

import (
	"encoding/json"
	"errors"
	"expvar"
	"log"
	"net/http"
	"sync"
	"time"

	"clinicdesk/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
)

var (
	reconnectAttempts = expvar.NewInt("realtime_reconnect_attempts_total")
	unknownEvents     = expvar.NewInt("realtime_unknown_events_total")
	handlerPanics     = expvar.NewInt("realtime_handler_panics_total")
)

var ErrNotConnected = errors.New("realtime: not connected")

// Handler receives the raw payload of one event. Handlers run on the receive
// goroutine, in receipt order; a panicking handler is recovered and logged
// without affecting other subscribers.
type Handler func(data json.RawMessage)

type Options struct {
	URL string
	// BackoffBase scales the linear reconnect backoff: attempt n waits
	// n * BackoffBase. Defaults to 2s.
	BackoffBase time.Duration
	// MaxAttempts caps automatic reconnection; afterwards the client stays
	// disconnected until Reconnect is called. Defaults to 5.
	MaxAttempts int
	Dialer      *websocket.Dialer
}

// Client maintains one logical connection to the backend push channel and
// fans events out to typed subscribers.
type Client struct {
	opts Options

	mu          sync.Mutex
	conn        *websocket.Conn
	state       string
	token       string
	subscribers map[EventKind][]subscriber
	rooms       map[string]struct{}
	nextID      int
	retrying    bool

	// writeMu serializes frames; gorilla allows a single writer.
	writeMu sync.Mutex
	closed  atomic.Bool
}

type subscriber struct {
	id int
	fn Handler
}

func NewClient(opts Options) *Client {
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 2 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Client{
		opts:        opts,
		state:       models.ConnDisconnected,
		subscribers: make(map[EventKind][]subscriber),
		rooms:       make(map[string]struct{}),
	}
}

// Subscribe registers a handler for one event kind and returns its cancel
// function.
func (c *Client) Subscribe(kind EventKind, fn Handler) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subscribers[kind] = append(c.subscribers[kind], subscriber{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		subs := c.subscribers[kind]
		for i := range subs {
			if subs[i].id == id {
				c.subscribers[kind] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Connect establishes the push channel with the given bearer credential.
func (c *Client) Connect(token string) error {
	c.closed.Store(false)
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return c.dial()
}

// Reconnect is the explicit retry once automatic reconnection has given up.
func (c *Client) Reconnect() error {
	c.closed.Store(false)
	return c.dial()
}

// Close disconnects without triggering automatic reconnection.
func (c *Client) Close() {
	c.closed.Store(true)
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	c.setState(models.ConnDisconnected)
}

func (c *Client) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) dial() error {
	c.setState(models.ConnConnecting)

	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := c.opts.Dialer.Dial(c.opts.URL, header)
	if err != nil {
		c.setState(models.ConnDisconnected)
		c.emitError(err)
		return err
	}

	c.mu.Lock()
	c.conn = conn
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.mu.Unlock()
	c.setState(models.ConnConnected)

	// Room membership is per connection on the server; re-announce it so a
	// reconnect keeps receiving room-scoped events.
	for _, room := range rooms {
		if err := c.send(Envelope{Type: EventKind(room + frameJoinSuffix)}); err != nil {
			log.Printf("realtime: rejoin %s: %v", room, err)
		}
	}

	go c.readLoop(conn)
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.handleDrop(conn, err)
			return
		}
		c.deliver(payload)
	}
}

func (c *Client) deliver(payload []byte) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		unknownEvents.Add(1)
		log.Printf("realtime: malformed frame: %v", err)
		return
	}
	if env.Type == envelopeGeneric {
		var inner Envelope
		if err := json.Unmarshal(env.Data, &inner); err != nil {
			unknownEvents.Add(1)
			log.Printf("realtime: malformed generic event: %v", err)
			return
		}
		env = inner
	}
	if !knownKind(env.Type) {
		unknownEvents.Add(1)
		log.Printf("realtime: dropping unknown event kind %q", env.Type)
		return
	}
	c.dispatch(env.Type, env.Data)
}

func (c *Client) dispatch(kind EventKind, data json.RawMessage) {
	c.mu.Lock()
	subs := make([]subscriber, len(c.subscribers[kind]))
	copy(subs, c.subscribers[kind])
	c.mu.Unlock()

	for _, sub := range subs {
		invoke(kind, sub, data)
	}
}

func invoke(kind EventKind, sub subscriber, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			handlerPanics.Add(1)
			log.Printf("realtime: handler panic kind=%s: %v", kind, r)
		}
	}()
	sub.fn(data)
}

func (c *Client) handleDrop(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		// A newer connection already replaced this one.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()
	_ = conn.Close()

	if c.closed.Load() {
		c.setState(models.ConnDisconnected)
		return
	}

	c.emitError(cause)
	c.setState(models.ConnDisconnected)

	c.mu.Lock()
	if c.retrying {
		c.mu.Unlock()
		return
	}
	c.retrying = true
	c.mu.Unlock()
	go c.reconnectLoop()
}

func (c *Client) reconnectLoop() {
	defer func() {
		c.mu.Lock()
		c.retrying = false
		c.mu.Unlock()
	}()

	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		time.Sleep(time.Duration(attempt) * c.opts.BackoffBase)
		if c.closed.Load() {
			return
		}
		reconnectAttempts.Add(1)
		log.Printf("realtime: reconnect attempt %d/%d", attempt, c.opts.MaxAttempts)
		if err := c.dial(); err == nil {
			return
		}
	}
	// Exhausted: remain disconnected until an explicit Reconnect.
	log.Printf("realtime: giving up after %d attempts", c.opts.MaxAttempts)
}

func (c *Client) setState(state string) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.mu.Unlock()
	if !changed {
		return
	}
	payload, _ := json.Marshal(models.ConnectionStateEvent{State: state})
	c.dispatch(EventConnectionState, payload)
}

func (c *Client) emitError(cause error) {
	payload, _ := json.Marshal(models.ErrorEvent{Message: cause.Error()})
	c.dispatch(EventError, payload)
}

func (c *Client) send(env Envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// PublishVisitAction notifies the server of a completed queue action so other
// connected clients converge.
func (c *Client) PublishVisitAction(action, visitID string, data interface{}) error {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return err
		}
		raw = encoded
	}
	payload, err := json.Marshal(models.VisitActionEvent{
		Action:    action,
		VisitID:   visitID,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return c.send(Envelope{Type: frameVisitAction, Data: payload})
}

// JoinRoom subscribes this connection to a room's events. Membership is
// remembered and re-announced after an automatic reconnect.
func (c *Client) JoinRoom(room string) error {
	c.mu.Lock()
	c.rooms[room] = struct{}{}
	c.mu.Unlock()
	return c.send(Envelope{Type: EventKind(room + frameJoinSuffix)})
}

func (c *Client) LeaveRoom(room string) error {
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
	return c.send(Envelope{Type: EventKind(room + frameLeaveSuffix)})
}
