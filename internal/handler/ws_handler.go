package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/config"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/middleware"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/service"
	ws "github.com/Nobiscumdeus/robustquiz-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the live session stream: timer sync, heartbeats, and
// the terminated push when the session leaves IN_PROGRESS.
type WSHandler struct {
	rdb       *redis.Client
	manager   *service.SessionManager
	timer     *service.TimerAuthority
	heartbeat *service.HeartbeatMonitor
	log       zerolog.Logger
	upgrader  websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, manager *service.SessionManager, timer *service.TimerAuthority, heartbeat *service.HeartbeatMonitor, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:       rdb,
		manager:   manager,
		timer:     timer,
		heartbeat: heartbeat,
		log:       log.With().Str("component", "ws_handler").Logger(),
		upgrader:  buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/session/:session_id/stream
// Upgrades to WebSocket. The client sends ping/heartbeat/sync actions; the
// server answers with timer state and pushes terminated when the session
// reaches a terminal status, then closes.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	s, err := h.manager.Get(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if s.StudentID != claims.StudentID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	wsLog := h.log.With().
		Str("session_id", sessionID.String()).
		Int("student_id", claims.StudentID).
		Logger()
	wsLog.Info().Msg("Session stream connected")

	// A session already terminal gets its outcome and nothing else.
	if s.Status.IsTerminal() {
		h.writeTerminated(conn, s)
		return
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.watchTermination(streamCtx, conn, sessionID, wsLog)

	for {
		var msg ws.Request
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		case ws.ActionHeartbeat:
			h.handleHeartbeat(streamCtx, conn, sessionID)
		case ws.ActionSync:
			h.handleSync(streamCtx, conn, sessionID)
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: " + string(msg.Action))
		}
	}
}

func (h *WSHandler) handleHeartbeat(ctx context.Context, conn *ws.Conn, sessionID uuid.UUID) {
	if err := h.heartbeat.Heartbeat(ctx, sessionID); err != nil {
		conn.WriteError("session is not in progress")
		return
	}

	s, err := h.manager.Get(ctx, sessionID)
	if err != nil {
		conn.WriteError("session lookup failed")
		return
	}
	conn.WriteTyped(ws.TimerResponse{
		Event:         ws.EventHeartbeatAck,
		Status:        s.Status,
		RemainingSecs: h.timer.Remaining(s),
	})
}

func (h *WSHandler) handleSync(ctx context.Context, conn *ws.Conn, sessionID uuid.UUID) {
	s, remaining, err := h.timer.Sync(ctx, sessionID)
	if err != nil {
		conn.WriteError("timer sync failed")
		return
	}
	conn.WriteTyped(ws.TimerResponse{
		Event:         ws.EventTimer,
		Status:        s.Status,
		RemainingSecs: remaining,
	})
}

// watchTermination subscribes to the session's termination channel and
// pushes the terminated event the moment any finalizer fires.
func (h *WSHandler) watchTermination(ctx context.Context, conn *ws.Conn, sessionID uuid.UUID, wsLog zerolog.Logger) {
	sub := h.rdb.Subscribe(ctx, config.CacheKey.SessionTerminatedChannel(sessionID.String()))
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var term service.TerminatedMessage
			if err := json.Unmarshal([]byte(msg.Payload), &term); err != nil {
				wsLog.Warn().Err(err).Msg("Bad termination payload")
				continue
			}
			conn.WriteTyped(ws.TerminatedResponse{
				Event:     ws.EventTerminated,
				SessionID: term.SessionID,
				Status:    term.Status,
				Reason:    term.Reason,
			})
			conn.Close()
			return
		}
	}
}

func (h *WSHandler) writeTerminated(conn *ws.Conn, s *model.Session) {
	reason := ""
	if s.TerminationReason != nil {
		reason = *s.TerminationReason
	}
	conn.WriteTyped(ws.TerminatedResponse{
		Event:     ws.EventTerminated,
		SessionID: s.ID,
		Status:    s.Status,
		Reason:    reason,
	})
}
