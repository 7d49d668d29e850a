package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"jobhub/internal/infrastructure/ratelimit"
	"jobhub/internal/usecase"
	"jobhub/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBufferSize = 256
)

// Client is one authenticated WebSocket connection. Each connection owns its
// own conversation view and contact list.
type Client struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte

	conversation *usecase.ConversationStore
	contacts     *usecase.ContactDirectory

	ctx    context.Context
	cancel context.CancelFunc

	mutex  sync.Mutex
	closed bool
}

// Manager tracks live connections and routes their frames to the messaging
// core.
type Manager struct {
	clients    map[string]*Client
	Register   chan *Client
	Unregister chan *Client
	mutex      sync.RWMutex

	messagingUseCase *usecase.MessagingUseCase
	rateLimiter      *ratelimit.RateLimiter
}

func NewManager(messagingUseCase *usecase.MessagingUseCase, rateLimiter *ratelimit.RateLimiter) *Manager {
	return &Manager{
		clients:          make(map[string]*Client),
		Register:         make(chan *Client),
		Unregister:       make(chan *Client),
		messagingUseCase: messagingUseCase,
		rateLimiter:      rateLimiter,
	}
}

// NewClient wires a connection to fresh per-connection stores. Every state
// change of either store is pushed to the client as a full view.
func (m *Manager) NewClient(userID string, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		ID:           uuid.New().String(),
		UserID:       userID,
		Conn:         conn,
		Send:         make(chan []byte, sendBufferSize),
		conversation: m.messagingUseCase.NewConversation(),
		contacts:     m.messagingUseCase.NewContactDirectory(),
		ctx:          ctx,
		cancel:       cancel,
	}

	client.conversation.OnChange(func(view usecase.ConversationView) {
		m.sendToClient(client, MessageTypeConversation, newConversationPayload(view))
	})
	client.contacts.OnChange(func(view usecase.ContactsView) {
		m.sendToClient(client, MessageTypeContacts, newContactsPayload(view))
	})

	return client
}

// Start runs the manager's main loop in a goroutine
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				m.clients[client.ID] = client
				m.mutex.Unlock()
				logger.Info("WebSocket: client %s registered for user %s", client.ID, client.UserID)

			case client := <-m.Unregister:
				m.mutex.Lock()
				_, ok := m.clients[client.ID]
				delete(m.clients, client.ID)
				m.mutex.Unlock()
				if ok {
					go client.shutdown()
				}
				logger.Info("WebSocket: client %s unregistered", client.ID)

			case <-ctx.Done():
				m.mutex.Lock()
				clients := m.clients
				m.clients = make(map[string]*Client)
				m.mutex.Unlock()
				for _, client := range clients {
					client.shutdown()
				}
				return
			}
		}
	}()
}

// Serve registers client, starts its pumps and activates its contact list.
func (m *Manager) Serve(client *Client) {
	m.Register <- client

	go client.WritePump()
	go client.ReadPump(m)
	go func() {
		if err := client.contacts.Activate(client.ctx, client.UserID); err != nil {
			logger.Warn("WebSocket: contacts for %s unavailable: %v", client.UserID, err)
		}
	}()
}

func (m *Manager) ClientCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

// ConnectionsForUser returns how many connections userID currently holds.
func (m *Manager) ConnectionsForUser(userID string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	count := 0
	for _, client := range m.clients {
		if client.UserID == userID {
			count++
		}
	}
	return count
}

// shutdown releases the client's subscriptions and stops its writer.
func (c *Client) shutdown() {
	c.cancel()
	c.conversation.Close()
	c.contacts.Close()

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// enqueue hands a frame to the writer without blocking. Frames for a closed
// or saturated connection are dropped.
func (c *Client) enqueue(frame []byte) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.Send <- frame:
		return true
	default:
		logger.Warn("WebSocket: send buffer full for client %s, dropping frame", c.ID)
		return false
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		select {
		case m.Unregister <- c:
		case <-c.ctx.Done():
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket: read error for client %s: %v", c.ID, err)
			}
			break
		}

		m.HandleClientMessage(c, message)
	}
}

// WritePump sends messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Error("WebSocket: write error for client %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
