package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterMux binds gorilla/mux routes.
func (h *Handler) RegisterMux(r *mux.Router) {
	r.HandleFunc(routeStats, h.handleStats).Methods(http.MethodGet).Name(routeNameStats)
	r.HandleFunc(routeChannels, h.handleChannels).Methods(http.MethodGet).Name(routeNameChannels)
	r.HandleFunc(routeChannel, h.handleChannel).Methods(http.MethodGet).Name(routeNameChannel)
	r.HandleFunc(routeEvents, h.handleEvents).Methods(http.MethodGet).Name(routeNameEvents)
}
