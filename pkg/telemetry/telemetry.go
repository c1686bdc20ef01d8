// Package telemetry exposes prometheus metrics for the HTTP surface and
// the messaging pipeline.
package telemetry

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glimpse_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "glimpse_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	messagesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glimpse_messages_created_total",
		Help: "Messages accepted and persisted.",
	})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glimpse_events_published_total",
		Help: "Realtime events fanned out, by event name.",
	}, []string{"event"})

	notificationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glimpse_notifications_created_total",
		Help: "Notification records persisted for offline recipients.",
	})

	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "glimpse_ws_connections",
		Help: "Live websocket connections.",
	})

	outboxDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "glimpse_outbox_queue_depth",
		Help: "Side-effect operations waiting in the outbox queue.",
	})
)

// Handler returns the /metrics scrape endpoint.
func Handler() http.Handler { return promhttp.Handler() }

// MessageCreated records one persisted message.
func MessageCreated() { messagesCreated.Inc() }

// EventPublished records one realtime broadcast.
func EventPublished(event string) { eventsPublished.WithLabelValues(event).Inc() }

// NotificationCreated records one stored notification.
func NotificationCreated() { notificationsCreated.Inc() }

// WSConnected and WSDisconnected track the live connection gauge.
func WSConnected()    { wsConnections.Inc() }
func WSDisconnected() { wsConnections.Dec() }

// SetOutboxDepth records the current queue depth.
func SetOutboxDepth(n int) { outboxDepth.Set(float64(n)) }

// statusRecorder captures the response status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade pass through the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := r.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Middleware records request counts and latency. Route is the raw path
// prefix up to the second segment so ids do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)
		route := routeLabel(r.URL.Path)
		requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(srw.status)).Inc()
		requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routeLabel(path string) string {
	// keep "/v1/<resource>" and drop ids
	segs := 0
	for i := 1; i < len(path); i++ {
		if path[i] == '/' {
			segs++
			if segs == 2 {
				return path[:i]
			}
		}
	}
	return path
}
