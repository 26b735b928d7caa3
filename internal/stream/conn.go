package stream

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Status is the externally visible connection state, surfaced to the REST
// API and the ops bot instead of per-tick errors.
type Status struct {
	State    State  `json:"state"`
	Attempts int    `json:"attempts"`
	GaveUp   bool   `json:"gave_up"`
	LastErr  string `json:"last_error,omitempty"`
}

// socket is the subset of *websocket.Conn the manager uses; tests substitute
// scripted fakes through the dial seam.
type socket interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Config carries the reconnection policy.
type Config struct {
	URL            string
	BaseDelay      time.Duration // first retry waits BaseDelay*2, then doubles
	MaxAttempts    int
	ConnectTimeout time.Duration
	PingInterval   time.Duration
}

// Manager owns the one upstream socket. On connect it replays a subscribe
// for every symbol the feed layer still holds subscriptions for; on close it
// schedules reconnects until the retry budget runs out.
type Manager struct {
	cfg Config

	// ActiveSymbols yields the transport symbols that must be subscribed
	// after (re)connecting. The manager only reads the registry, it never
	// owns subscription state.
	activeSymbols func() []string
	onMessage     func(Message)
	onStatus      func(Status)

	dial func(url string, timeout time.Duration) (socket, error)

	mu         sync.Mutex
	conn       socket
	state      State
	attempts   int
	gaveUp     bool
	lastErr    string
	retryTimer *time.Timer
	connDone   chan struct{}
	closed     bool
}

// NewManager wires a manager to its consumers. onStatus may be nil.
func NewManager(cfg Config, activeSymbols func() []string, onMessage func(Message), onStatus func(Status)) *Manager {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Manager{
		cfg:           cfg,
		activeSymbols: activeSymbols,
		onMessage:     onMessage,
		onStatus:      onStatus,
		dial:          dialWebsocket,
	}
}

func dialWebsocket(url string, timeout time.Duration) (socket, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Connect starts the connection attempt. It returns immediately; progress is
// observable through Status. Calling Connect after a manual Close or after
// the retry budget was exhausted starts a fresh attempt cycle.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.closed = false
	m.gaveUp = false
	m.attempts = 0
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	go m.dialAndRun()
}

// Close tears the connection down and cancels any pending reconnect timer.
// No reconnect fires afterwards until Connect is called again.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	if m.connDone != nil {
		close(m.connDone)
		m.connDone = nil
	}
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()
}

// Status returns a snapshot of the connection state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() Status {
	return Status{State: m.state, Attempts: m.attempts, GaveUp: m.gaveUp, LastErr: m.lastErr}
}

// Subscribe sends a transport-level subscribe for one symbol. While
// disconnected this is a no-op: the symbol is replayed from the registry on
// the next successful connect.
func (m *Manager) Subscribe(symbol string) error {
	return m.writeFrame(encodeSubscribe(symbol))
}

// Unsubscribe sends a transport-level unsubscribe for one symbol.
func (m *Manager) Unsubscribe(symbol string) error {
	return m.writeFrame(encodeUnsubscribe(symbol))
}

func (m *Manager) writeFrame(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	if err := m.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("transport write: %w", err)
	}
	return nil
}

func (m *Manager) dialAndRun() {
	conn, err := m.dial(m.cfg.URL, m.cfg.ConnectTimeout)
	if err != nil {
		log.Printf("stream: connect to %s failed: %v", m.cfg.URL, err)
		m.handleDisconnect(err)
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.attempts = 0
	m.lastErr = ""
	done := make(chan struct{})
	m.connDone = done
	m.setStateLocked(StateConnected)
	symbols := m.activeSymbols()
	m.mu.Unlock()

	log.Printf("stream: connected to %s, replaying %d subscription(s)", m.cfg.URL, len(symbols))
	for _, symbol := range symbols {
		if err := m.Subscribe(symbol); err != nil {
			log.Printf("stream: resubscribe %s: %v", symbol, err)
		}
	}

	go m.pingLoop(done)
	m.readLoop(conn)
}

func (m *Manager) readLoop(conn socket) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			m.handleDisconnect(err)
			return
		}
		msg, err := Decode(frame)
		if err != nil {
			// Malformed frames never take the connection down.
			log.Printf("stream: dropping frame: %v", err)
			continue
		}
		m.onMessage(msg)
	}
}

func (m *Manager) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := m.writeFrame(encodePing()); err != nil {
				return
			}
		}
	}
}

func (m *Manager) handleDisconnect(cause error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	if m.connDone != nil {
		close(m.connDone)
		m.connDone = nil
	}
	if cause != nil {
		m.lastErr = cause.Error()
	}

	m.attempts++
	if m.attempts > m.cfg.MaxAttempts {
		m.gaveUp = true
		m.setStateLocked(StateDisconnected)
		m.mu.Unlock()
		log.Printf("stream: giving up after %d attempts, last error: %v", m.cfg.MaxAttempts, cause)
		return
	}

	delay := m.retryDelayLocked()
	m.setStateLocked(StateReconnecting)
	m.retryTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		m.retryTimer = nil
		m.setStateLocked(StateConnecting)
		m.mu.Unlock()
		m.dialAndRun()
	})
	m.mu.Unlock()
	log.Printf("stream: connection lost (%v), retry %d/%d in %s", cause, m.attempts, m.cfg.MaxAttempts, delay)
}

// retryDelayLocked computes BaseDelay * 2^attempts.
func (m *Manager) retryDelayLocked() time.Duration {
	return m.cfg.BaseDelay << uint(m.attempts)
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s && s != StateDisconnected {
		return
	}
	m.state = s
	if m.onStatus != nil {
		go m.onStatus(m.statusLocked())
	}
}
