package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"inventorycounter/internal/logger"
	"inventorycounter/internal/service/metrics"
	"inventorycounter/internal/service/pipeline"
	"inventorycounter/internal/session"
)

const (
	writeWait = time.Second

	// DefaultPingPeriod must stay below the viewer read timeout.
	DefaultPingPeriod = 30 * time.Second
)

// Message is the envelope every viewer receives.
type Message struct {
	Type string      `json:"type"` // "view" or "outcome"
	Data interface{} `json:"data"`
}

// HubService fans views and session outcomes out to connected viewers.
// It is the pipeline's display.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mutex      sync.RWMutex
	lastView   []byte
	logger     *logger.Logger
	metrics    *metrics.Metrics

	// PingPeriod is read once when Run starts.
	PingPeriod time.Duration
}

func NewHubService(logger *logger.Logger, m *metrics.Metrics) *HubService {
	if m == nil {
		m = metrics.New()
	}
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		logger:     logger,
		metrics:    m,
		PingPeriod: DefaultPingPeriod,
	}
}

// Run serves registrations, broadcasts and keepalive pings until ctx is done,
// then closes every client. Run is the only writer of data frames, and it
// writes outside the client lock.
func (h *HubService) Run(ctx context.Context) {
	period := h.PingPeriod
	if period <= 0 {
		period = DefaultPingPeriod
	}
	ping := time.NewTicker(period)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			h.metrics.ViewClients.Store(0)
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.lastView = nil
			h.mutex.Unlock()
			h.metrics.ViewClients.Store(int64(count))
			h.logger.Info("Viewer connected. Total: %d", count)

		case client := <-h.unregister:
			h.drop(client)
			h.logger.Info("Viewer disconnected. Total: %d", h.GetClientCount())

		case message := <-h.broadcast:
			for _, client := range h.snapshotClients() {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Warning("Error sending message: %v", err)
					h.drop(client)
				}
			}

		case <-ping.C:
			for _, client := range h.snapshotClients() {
				if err := client.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					h.logger.Debug("Ping failed, dropping viewer: %v", err)
					h.drop(client)
				}
			}
		}
	}
}

func (h *HubService) snapshotClients() []*websocket.Conn {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

func (h *HubService) drop(client *websocket.Conn) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.Close()
	}
	count := len(h.clients)
	h.mutex.Unlock()
	h.metrics.ViewClients.Store(int64(count))
}

func (h *HubService) Register(client *websocket.Conn) {
	h.register <- client
}

func (h *HubService) Unregister(client *websocket.Conn) {
	h.unregister <- client
}

// Render broadcasts view when it differs from the last one sent. It never blocks.
func (h *HubService) Render(view pipeline.View) {
	if h.GetClientCount() == 0 {
		return
	}

	message, err := json.Marshal(Message{Type: "view", Data: view})
	if err != nil {
		h.logger.Error("Failed to encode view: %v", err)
		return
	}

	h.mutex.Lock()
	if bytes.Equal(message, h.lastView) {
		h.mutex.Unlock()
		return
	}
	h.lastView = message
	h.mutex.Unlock()

	h.send(message)
}

// Report broadcasts a session outcome.
func (h *HubService) Report(outcome session.Outcome) {
	message, err := json.Marshal(Message{Type: "outcome", Data: outcome})
	if err != nil {
		h.logger.Error("Failed to encode outcome: %v", err)
		return
	}
	h.send(message)
}

func (h *HubService) send(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.metrics.ViewsDropped.Add(1)
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
