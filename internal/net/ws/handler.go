package ws

import (
	"log"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"spellcast/server/internal/telemetry"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type HandlerConfig struct {
	Logger *log.Logger
}

// Handler upgrades requests and streams the feed to the connection until
// either side goes away. Incoming frames other than control frames are
// ignored.
type Handler struct {
	feed     *Feed
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

func NewHandler(feed *Feed, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		feed:     feed,
		logger:   telemetry.WrapLogger(logger),
		upgrader: upgrader,
	}
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	query := r.URL.Query()
	filter := Filter{
		Category:   query.Get("category"),
		TypePrefix: query.Get("type"),
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("ws: upgrade failed: %v", err)
		return
	}

	sub, err := h.feed.subscribe(filter)
	if err != nil {
		message := websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed")
		conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go h.readLoop(conn, sub)
	h.writeLoop(conn, sub)
}

// readLoop drains the connection so control frames are processed and a
// closed peer is noticed.
func (h *Handler) readLoop(conn *websocket.Conn, sub *subscriber) {
	defer h.feed.unsubscribe(sub)
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writeLoop(conn *websocket.Conn, sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case data := <-sub.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.feed.unsubscribe(sub)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				h.feed.unsubscribe(sub)
				return
			}
		case <-sub.done:
			message := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
			conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
			return
		}
	}
}
