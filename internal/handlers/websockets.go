package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"controlling_dehumidifier/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000

	msgTypeState = "state"
	msgTypeError = "error"
)

// wsEnvelope is one frame of the state stream. Changes lists the fields
// that differ from the previous state frame on this connection; the first
// frame has none.
type wsEnvelope struct {
	Type    string                 `json:"type"`
	Data    *models.DeviceSnapshot `json:"data,omitempty"`
	Changes []models.FieldChange   `json:"changes,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// stateStream holds per-connection state of one websocket subscriber.
type stateStream struct {
	conn        *websocket.Conn
	changesOnly bool

	last *models.DeviceState
}

// @Summary      Dehumidifier state stream
// @Description  Upgrades to WebSocket and pushes {"type":"state","data":<snapshot>,"changes":[...]} every interval (?interval=2s or ?interval_ms=2000, max 10s). With ?changes_only=true frames are sent only when the record changed.
// @Tags         dehumidifier
// @Param        access_token  query  string  false  "JWT when the Authorization header cannot be set"
// @Param        changes_only  query  bool    false  "Skip frames without changes"
// @Failure      401  {object}  map[string]string
// @Router       /ws [get]
// @Security     BearerAuth
func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)
	changesOnly, _ := strconv.ParseBool(c.Query("changes_only"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.drainReads(conn, done)

	stream := &stateStream{conn: conn, changesOnly: changesOnly}
	ctx := c.Request.Context()
	if err := h.pushState(ctx, stream); err != nil {
		h.logWSWrite("initial", err)
		return
	}

	ticker := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logWSWrite("ping", err)
				return
			}
		case <-ticker.C:
			if err := h.pushState(ctx, stream); err != nil {
				h.logWSWrite("state", err)
				return
			}
		}
	}
}

// parseInterval reads ?interval=2s or ?interval_ms=2000 with bounds.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}
	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}
	return defaultInterval
}

// drainReads consumes client frames so pongs and closes are processed.
func (h *Handler) drainReads(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Debugw("ws_read_closed", "err", err)
			}
			return
		}
	}
}

// pushState sends the current snapshot with its diff against the last
// frame. A failed lookup becomes an error frame and keeps the stream open;
// only write failures are returned.
func (h *Handler) pushState(ctx context.Context, s *stateStream) error {
	snap, err := h.services.Monitoring.GetState(ctx)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_get_state_failed", "err", err)
		}
		return s.write(wsEnvelope{Type: msgTypeError, Error: errGetState})
	}

	env := wsEnvelope{Type: msgTypeState, Data: &snap}
	if s.last != nil {
		env.Changes = snap.DeviceState.Diff(*s.last)
		if s.changesOnly && len(env.Changes) == 0 {
			return nil
		}
	}
	st := snap.DeviceState
	s.last = &st
	return s.write(env)
}

func (s *stateStream) write(env wsEnvelope) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(env)
}

func (h *Handler) logWSWrite(stage string, err error) {
	if h.log != nil {
		h.log.Infow("ws_write_failed", "stage", stage, "err", err)
	}
}
