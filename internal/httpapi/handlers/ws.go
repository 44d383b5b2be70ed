package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"sdbooth/internal/fanout"
	"sdbooth/internal/httpkit"
)

const maxMessageBytes = 1 << 20

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.allowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// WebSocket registers the caller as a live client. Text frames it sends are
// relayed to every open connection, itself included.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		httpkit.WriteErr(w, http.StatusBadRequest, "BAD_REQUEST", "websocket upgrade required", nil)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.log.FromContext(r.Context()).Warn("websocket upgrade failed", "error", err.Error())
		return
	}

	conn := fanout.NewWSConn(ws, 10*time.Second)
	connID := h.registry.Register(conn)
	log := h.log.FromContext(r.Context()).WithConnID(connID)
	log.Info("client connected", "open", h.registry.Len())

	defer func() {
		h.registry.Remove(connID)
		_ = conn.Close()
		log.Info("client disconnected", "open", h.registry.Len())
	}()

	keepAlive := h.wsKeepAlive
	ws.SetReadLimit(maxMessageBytes)
	_ = ws.SetReadDeadline(time.Now().Add(keepAlive))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(keepAlive))
	})

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(keepAlive / 2)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := conn.Ping(); err != nil {
					return
				}
			}
		}
	}()

	for {
		mt, msg, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("websocket read failed", "error", err.Error())
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(keepAlive))

		if mt != websocket.TextMessage {
			continue
		}
		deliveries := fanout.Broadcast(r.Context(), h.registry, msg, log)
		log.Debug("relayed client message", "recipients", len(deliveries), "failed", fanout.Failed(deliveries))
	}
}
