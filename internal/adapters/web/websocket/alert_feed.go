package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/lcalzada-xor/iotguard/internal/adapters/web/middleware"
	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/ports"
)

// Ensure interface compliance
var _ ports.AlertPublisher = (*AlertFeed)(nil)

const writeWait = 5 * time.Second

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// AlertFeed pushes technician alerts to connected technicians.
type AlertFeed struct {
	upgrader gws.Upgrader
	clients  map[*gws.Conn]*domain.User
	mu       sync.Mutex
	logger   *slog.Logger
}

// NewAlertFeed accepts same-origin upgrades plus the listed origins.
func NewAlertFeed(allowedOrigins []string, logger *slog.Logger) *AlertFeed {
	if logger == nil {
		logger = slog.Default()
	}
	f := &AlertFeed{
		clients: make(map[*gws.Conn]*domain.User),
		logger:  logger,
	}
	f.upgrader = gws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
				return true
			}
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			logger.Warn("WebSocket: rejected origin", "origin", origin)
			return false
		},
	}
	return f
}

func (f *AlertFeed) Name() string { return "websocket" }

// HandleWebSocket registers the caller set by the identity middleware.
func (f *AlertFeed) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	f.mu.Lock()
	f.clients[conn] = user
	f.mu.Unlock()
	f.logger.Info("WebSocket connected", "username", user.Username, "role", user.Role)

	go func() {
		defer f.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (f *AlertFeed) drop(conn *gws.Conn) {
	f.mu.Lock()
	user, ok := f.clients[conn]
	delete(f.clients, conn)
	f.mu.Unlock()
	conn.Close()
	if ok {
		f.logger.Info("WebSocket disconnected", "username", user.Username)
	}
}

// PublishTechAlert broadcasts the alert. Clients that cannot keep up are dropped.
func (f *AlertFeed) PublishTechAlert(ctx context.Context, alert domain.TechnicianAlert) error {
	return f.broadcast(Message{Type: "tech_alert", Payload: alert})
}

// Clients returns the number of connected clients.
func (f *AlertFeed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Close disconnects every client.
func (f *AlertFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for conn := range f.clients {
		conn.WriteControl(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		conn.Close()
		delete(f.clients, conn)
	}
}

func (f *AlertFeed) broadcast(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for conn := range f.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(gws.TextMessage, data); err != nil {
			f.logger.Debug("Dropping slow WebSocket client", "error", err)
			conn.Close()
			delete(f.clients, conn)
		}
	}
	return nil
}
