package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RedisErrors counts Redis command failures by command name. Incremented by
// the cache package's client hook.
var RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "potential_redis_errors_total",
	Help: "Total number of failed Redis commands",
}, []string{"command"})

// RealtimeEventsPublished counts realtime change events published to Redis
// pub/sub, by table.
var RealtimeEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "potential_realtime_events_published_total",
	Help: "Total number of realtime change events published",
}, []string{"table"})

// WebsocketBackpressureDrops counts messages dropped because a client's send
// buffer was full or its channel already closed.
var WebsocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "potential_websocket_backpressure_drops_total",
	Help: "Total number of websocket messages dropped due to backpressure",
}, []string{"reason"})

// WebsocketConnections tracks the number of currently open websocket
// connections on the notification hub.
var WebsocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "potential_websocket_connections",
	Help: "Currently open websocket connections",
})

// InitMetrics creates the Prometheus middleware for the given service name.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New(serviceName)
}

// MetricsMiddleware wraps the fiberprometheus middleware as a fiber.Handler.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return prom.Middleware
}
