// Package http exposes gateway state over HTTP: statistics, channel configuration and a
// websocket feed of gateway events.
package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	apicommon "github.com/compose-network/pvgateway/server/api"
	"github.com/compose-network/pvgateway/x/gateway"
)

// Gateway is the part of *gateway.Gateway the handler reads
type Gateway interface {
	Stats() gateway.Stats
	Channels() []gateway.ChannelConfig
	Events() *gateway.EventBus
}

type Handler struct {
	gw       Gateway
	log      zerolog.Logger
	upgrader websocket.Upgrader

	eventBuffer  int
	pingInterval time.Duration
	writeTimeout time.Duration
}

func NewHandler(gw Gateway, log zerolog.Logger) *Handler {
	return &Handler{
		gw:  gw,
		log: log.With().Str("component", "gateway-http").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		eventBuffer:  256,
		pingInterval: 30 * time.Second,
		writeTimeout: 10 * time.Second,
	}
}

func (h *Handler) handleStats(w http.ResponseWriter, _ *http.Request) {
	apicommon.WriteJSON(w, http.StatusOK, h.gw.Stats())
}

func (h *Handler) handleChannels(w http.ResponseWriter, _ *http.Request) {
	apicommon.WriteJSON(w, http.StatusOK, map[string]any{"channels": h.gw.Channels()})
}

type channelResponse struct {
	Config gateway.ChannelConfig `json:"config"`
	Stats  gateway.ChannelStats  `json:"stats"`
}

func (h *Handler) handleChannel(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var resp channelResponse
	found := false
	for _, c := range h.gw.Channels() {
		if c.Name == name {
			resp.Config = c
			found = true
			break
		}
	}
	if !found {
		apicommon.WriteError(w, r, http.StatusNotFound, "channel_not_found", "no channel named "+name, nil)
		return
	}
	for _, s := range h.gw.Stats().Channels {
		if s.Name == name {
			resp.Stats = s
			break
		}
	}

	apicommon.WriteJSON(w, http.StatusOK, resp)
}
