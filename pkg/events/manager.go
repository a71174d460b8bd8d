package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// writeTimeout bounds a single WebSocket send, mirroring the teacher's
// per-connection write timeout in the original ConnectionManager.
const writeTimeout = 5 * time.Second

// ConnectionManager upgrades HTTP connections to WebSocket and forwards
// Bus events for whichever project a client subscribes to. One manager is
// shared process-wide; each connection owns a goroutine reading client
// messages and one goroutine per active subscription forwarding Bus events.
type ConnectionManager struct {
	bus *Bus

	mu          sync.RWMutex
	connections map[string]*connection
}

type connection struct {
	id     string
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	unsubscribers map[string]func()
}

func NewConnectionManager(bus *Bus) *ConnectionManager {
	return &ConnectionManager{bus: bus, connections: make(map[string]*connection)}
}

// HandleConnection manages a single WebSocket client's lifecycle. It
// blocks until the connection closes.
func (m *ConnectionManager) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &connection{
		id:            uuid.NewString(),
		conn:          conn,
		ctx:           ctx,
		cancel:        cancel,
		unsubscribers: make(map[string]func()),
	}

	m.register(c)
	defer m.unregister(c)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("invalid websocket message", "connection_id", c.id, "error", err)
			continue
		}
		m.handleMessage(c, msg)
	}
}

func (m *ConnectionManager) handleMessage(c *connection, msg ClientMessage) {
	if msg.ProjectID == "" {
		return
	}
	channel := ProjectChannel(msg.ProjectID)

	switch msg.Action {
	case "subscribe":
		m.subscribe(c, channel)
	case "unsubscribe":
		m.unsubscribe(c, channel)
	}
}

func (m *ConnectionManager) subscribe(c *connection, channel string) {
	c.mu.Lock()
	if _, exists := c.unsubscribers[channel]; exists {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	stream, unsubscribe := m.bus.Subscribe(channel)

	c.mu.Lock()
	c.unsubscribers[channel] = unsubscribe
	c.mu.Unlock()

	go m.forward(c, stream)
}

func (m *ConnectionManager) unsubscribe(c *connection, channel string) {
	c.mu.Lock()
	unsubscribe, exists := c.unsubscribers[channel]
	delete(c.unsubscribers, channel)
	c.mu.Unlock()

	if exists {
		unsubscribe()
	}
}

func (m *ConnectionManager) forward(c *connection, stream <-chan Event) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case event, ok := <-stream:
			if !ok {
				return
			}
			m.send(c, event)
		}
	}
}

func (m *ConnectionManager) send(c *connection, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Warn("failed to marshal event", "connection_id", c.id, "error", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	if err := c.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		slog.Warn("failed to write event to websocket client", "connection_id", c.id, "error", err)
	}
}

func (m *ConnectionManager) register(c *connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[c.id] = c
}

func (m *ConnectionManager) unregister(c *connection) {
	m.mu.Lock()
	delete(m.connections, c.id)
	m.mu.Unlock()

	c.mu.Lock()
	for _, unsubscribe := range c.unsubscribers {
		unsubscribe()
	}
	c.mu.Unlock()

	c.cancel()
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}

// ActiveConnections reports the number of live WebSocket connections.
func (m *ConnectionManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}
