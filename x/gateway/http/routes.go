package http

// Route patterns for the gateway HTTP surface.
const (
	routeStats    = "/v1/stats"
	routeChannels = "/v1/channels"
	routeChannel  = "/v1/channels/{name}"
	routeEvents   = "/v1/events"
)

// Route names for mux URL building.
const (
	routeNameStats    = "gateway_stats"
	routeNameChannels = "gateway_channels"
	routeNameChannel  = "gateway_channel"
	routeNameEvents   = "gateway_events"
)
