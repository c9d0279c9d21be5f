// Package monitoring implements the Monitoring Service: structured
// logging, a websocket broadcast backend for sendUpdate, Prometheus
// metrics, and OpenTelemetry tracing helpers the runtime core and node
// executor use around level/node execution.
package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/fluxwell/runtime/internal/domain"
)

// Hub is a MonitoringService that logs every update via zerolog and, when
// websocket sessions are attached, broadcasts the same update to them.
// sendUpdate is a no-op when sessionID is empty, matching the contract.
type Hub struct {
	logger zerolog.Logger

	mu       sync.RWMutex
	sessions map[string][]*websocket.Conn
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{logger: logger, sessions: make(map[string][]*websocket.Conn)}
}

func (h *Hub) SendUpdate(ctx context.Context, sessionID string, exec domain.WorkflowExecution) {
	if sessionID == "" {
		return
	}

	h.logger.Info().
		Str("session_id", sessionID).
		Str("execution_id", exec.ID.String()).
		Str("status", string(exec.Status)).
		Int("usage", exec.Usage).
		Msg("execution update")

	h.mu.RLock()
	conns := append([]*websocket.Conn(nil), h.sessions[sessionID]...)
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	payload, err := json.Marshal(exec)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal execution update for broadcast")
		return
	}
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to write update to session socket")
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Attach upgrades an incoming HTTP request to a websocket connection and
// registers it under sessionID so future SendUpdate calls reach it. The
// HTTP surface itself (routing, auth) is outside the runtime core's scope;
// Attach only owns the upgrade + registration mechanics a host process
// wires in.
func (h *Hub) Attach(sessionID string, w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.sessions[sessionID] = append(h.sessions[sessionID], conn)
	h.mu.Unlock()

	go func() {
		defer h.detach(sessionID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

func (h *Hub) detach(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.sessions[sessionID]
	for i, c := range conns {
		if c == conn {
			h.sessions[sessionID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	_ = conn.Close()
}
