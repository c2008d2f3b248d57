package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// upgrader is the WebSocket upgrader for the live stats stream.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StatsStreamManager tracks active live-stats WebSocket connections so they
// can all be closed together on server shutdown.
type StatsStreamManager struct {
	connections map[string]*statsConnection
	mu          sync.RWMutex
}

type statsConnection struct {
	id         string
	conn       *websocket.Conn
	cancelFunc context.CancelFunc
	mu         sync.Mutex
}

// NewStatsStreamManager creates an empty stats stream manager.
func NewStatsStreamManager() *StatsStreamManager {
	return &StatsStreamManager{connections: make(map[string]*statsConnection)}
}

// Close cancels and closes every active connection.
func (m *StatsStreamManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.connections {
		c.close()
	}
	m.connections = make(map[string]*statsConnection)
	return nil
}

func (m *StatsStreamManager) add(c *statsConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[c.id] = c
}

func (m *StatsStreamManager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connections, id)
}

func (c *statsConnection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

// statsMessage is one frame of the live stats stream.
type statsMessage struct {
	Type    string                 `json:"type"` // "stats", "error"
	Stats   map[string]interface{} `json:"stats,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// HandleStatsStream upgrades to a WebSocket and pushes a buffer pool / hash
// index metrics snapshot on a fixed interval until the client disconnects.
func (h *Handlers) HandleStatsStream(manager *StatsStreamManager, interval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("stats stream: failed to upgrade connection: %v", err)
			return
		}

		connID := fmt.Sprintf("ws-%d", time.Now().UnixNano())
		ctx, cancel := context.WithCancel(context.Background())
		wsConn := &statsConnection{id: connID, conn: conn, cancelFunc: cancel}

		manager.add(wsConn)
		defer func() {
			manager.remove(connID)
			wsConn.close()
		}()

		// Drain control/close frames from the client so the read side stays
		// responsive to disconnects.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					cancel()
					return
				}
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snapshot := map[string]interface{}{
					"store":        h.store.Stats(),
					"global_depth": h.table.GlobalDepth(),
					"metrics":      h.collector.GetMetrics(),
				}

				wsConn.mu.Lock()
				err := conn.WriteJSON(statsMessage{Type: "stats", Stats: snapshot})
				wsConn.mu.Unlock()
				if err != nil {
					log.Printf("stats stream: failed to send snapshot: %v", err)
					return
				}
			}
		}
	}
}

// SetupWebSocketRoutes adds the live stats WebSocket route to the router.
func SetupWebSocketRoutes(r chi.Router, h *Handlers) *StatsStreamManager {
	manager := NewStatsStreamManager()
	r.Get("/_ws/stats", h.HandleStatsStream(manager, 2*time.Second))
	return manager
}
