package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/compose-network/pvgateway/x/gateway"
)

// handleEvents streams gateway events as JSON text frames. The optional "channel" query
// parameter restricts the stream to one channel.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("channel")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel := h.gw.Events().Subscribe(h.eventBuffer)
	defer cancel()

	h.log.Debug().Str("remote", r.RemoteAddr).Str("channel", filter).Msg("Event stream opened")

	// The client sends nothing; reading detects disconnects and handles control frames.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !matches(ev, filter) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				h.log.Debug().Err(err).Msg("Event stream write failed")
				return
			}
		}
	}
}

func matches(ev gateway.Event, channel string) bool {
	return channel == "" || ev.Channel == channel
}
