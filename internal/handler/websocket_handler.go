// internal/handler/websocket_handler.go
package handler

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"serialkit/internal/utils"
	"serialkit/pkg/serialkit"
)

const (
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// MonitorHandler streams bytes read from the port to WebSocket clients
type MonitorHandler struct {
	upgrader websocket.Upgrader
	conn     *serialkit.Connection
	logger   *utils.ServiceLogger

	mu      sync.Mutex
	clients map[string]*Client
}

// Client represents a WebSocket monitor client
type Client struct {
	ID          string          `json:"id"`
	Connection  *websocket.Conn `json:"-"`
	RemoteAddr  string          `json:"remote_addr"`
	UserAgent   string          `json:"user_agent"`
	ConnectedAt time.Time       `json:"connected_at"`
}

// WebSocketMessage is sent as a text frame for non-data events
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMonitorHandler creates a new monitor handler
func NewMonitorHandler(conn *serialkit.Connection, logger *zap.Logger) *MonitorHandler {
	return &MonitorHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		conn:    conn,
		logger:  utils.NewServiceLogger(logger, "monitor-handler"),
		clients: make(map[string]*Client),
	}
}

// RegisterRoutes registers WebSocket routes
func (h *MonitorHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/monitor", h.HandleMonitor)
}

// Clients returns the connected monitor clients
func (h *MonitorHandler) Clients() []Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, *client)
	}
	return clients
}

// HandleMonitor upgrades the request and streams port data as binary
// frames until the client goes away or the port closes
func (h *MonitorHandler) HandleMonitor(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  ws,
		RemoteAddr:  c.Request.RemoteAddr,
		UserAgent:   c.Request.UserAgent(),
		ConnectedAt: time.Now(),
	}

	h.register(client)
	defer h.unregister(client)

	h.logger.Info("Monitor client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	done := make(chan struct{})
	go h.handleClientRead(client, done)

	h.stream(client, done)
}

// handleClientRead drains control frames and signals when the client leaves
func (h *MonitorHandler) handleClientRead(client *Client, done chan<- struct{}) {
	defer close(done)

	for {
		if _, _, err := client.Connection.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			return
		}
	}
}

// stream is the only writer on the WebSocket connection
func (h *MonitorHandler) stream(client *Client, done <-chan struct{}) {
	lastPing := time.Now()

	for {
		select {
		case <-done:
			return
		default:
		}

		data, err := h.conn.ReadData(serialkit.DefaultReadChunk)
		if err != nil {
			reason := "read failed"
			var stateErr *serialkit.StateError
			if errors.As(err, &stateErr) {
				reason = "port closed"
			}
			h.send(client, &WebSocketMessage{
				Type:      "error",
				Data:      map[string]string{"reason": reason, "error": err.Error()},
				Timestamp: time.Now(),
			})
			client.Connection.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
				time.Now().Add(writeWait))
			return
		}

		if len(data) > 0 {
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Connection.WriteMessage(websocket.BinaryMessage, data); err != nil {
				h.logger.Warn("WebSocket write error", zap.Error(err), zap.String("client_id", client.ID))
				return
			}
		}

		if time.Since(lastPing) >= pingInterval {
			lastPing = time.Now()
			if err := client.Connection.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *MonitorHandler) send(client *Client, message *WebSocketMessage) {
	client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
	if err := client.Connection.WriteJSON(message); err != nil {
		h.logger.Warn("WebSocket write error", zap.Error(err), zap.String("client_id", client.ID))
	}
}

func (h *MonitorHandler) register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
}

func (h *MonitorHandler) unregister(client *Client) {
	h.mu.Lock()
	delete(h.clients, client.ID)
	h.mu.Unlock()

	client.Connection.Close()
	h.logger.Info("Monitor client disconnected", zap.String("client_id", client.ID))
}
