package broadcast

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/smukkama/energy-workshop/internal/events"
)

const writeTimeout = 10 * time.Second

// wsSink serializes writes to one WebSocket connection
type wsSink struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSink) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Ping sends a ping control frame. Clients answer with a pong, which counts
// as activity.
func (s *wsSink) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (s *wsSink) Close() error {
	return s.conn.Close()
}

// NewUpgrader accepts connections whose Origin is listed. "*" allows any
// origin.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(allowedOrigins, "*") {
				return true
			}
			return slices.Contains(allowedOrigins, origin)
		},
	}
}

// Handler upgrades HTTP requests and attaches them to the hub
func (h *Hub) Handler(upgrader *websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
			return
		}

		sink := &wsSink{conn: conn}
		l, err := h.Register(sink, r.RemoteAddr)
		if err != nil {
			h.logger.Warn("rejecting listener", "remote_addr", r.RemoteAddr, "error", err)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
				time.Now().Add(time.Second))
			conn.Close()
			return
		}

		conn.SetPongHandler(func(string) error {
			l.UpdateLastHeardFrom()
			return nil
		})

		done := make(chan struct{})
		if h.cfg.IdleTimeout > 0 {
			go h.pingLoop(l, sink, h.cfg.IdleTimeout/2, done)
		}
		h.readLoop(l, conn)
		close(done)
	}
}

// pingLoop pings the listener every interval so that clients which only
// listen stay active, until done is closed.
func (h *Hub) pingLoop(l *Listener, sink *wsSink, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := sink.Ping(); err != nil {
				h.logger.Debug("listener ping failed", "listener_id", l.ID, "error", err)
				return
			}
		}
	}
}

// readLoop answers client messages until the connection drops
func (h *Hub) readLoop(l *Listener, conn *websocket.Conn) {
	defer h.Unregister(l.ID)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("listener read failed", "listener_id", l.ID, "error", err)
			}
			return
		}
		l.UpdateLastHeardFrom()

		reply, err := events.Reply(data)
		if err != nil {
			reply = events.ErrorReply(err)
		}
		if err := l.Send(reply); err != nil {
			return
		}
	}
}
