// Package metrics holds the prometheus collectors shared by the bot, the renderer and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_renders_total",
			Help: "Total number of calendar renders by outcome",
		},
		[]string{"outcome"},
	)
	RenderDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "calendar_render_duration_seconds",
			Help:    "Duration of a full month render including photo resolution",
			Buckets: prometheus.DefBuckets,
		},
	)
	PhotoFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_photo_failures_total",
			Help: "Photos replaced by a placeholder, by stage",
		},
		[]string{"stage"},
	)
	BotUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Telegram updates handled, by kind",
		},
		[]string{"kind"},
	)
	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "birthday_notifications_total",
			Help: "Birthday broadcast deliveries by outcome",
		},
		[]string{"outcome"},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

// Outcome and stage label values.
const (
	OutcomeOK     = "ok"
	OutcomeError  = "error"
	StageFetch    = "fetch"
	StageDecode   = "decode"
	KindMessage   = "message"
	KindCallback  = "callback"
	KindUnhandled = "unhandled"
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RendersTotal,
			RenderDuration,
			PhotoFailures,
			BotUpdates,
			NotificationsSent,
			httpRequestsTotal,
			httpRequestDuration,
		)
	})
}

// ObserveRender records the duration and outcome of one render.
func ObserveRender(start time.Time, err error) {
	RenderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		RendersTotal.WithLabelValues(OutcomeError).Inc()
		return
	}
	RendersTotal.WithLabelValues(OutcomeOK).Inc()
}

// Middleware tracks request counts and durations. pathLabel maps a request to a
// low-cardinality label (usually the route template).
func Middleware(pathLabel func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			path := pathLabel(r)
			httpRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(ww.statusCode)).Inc()
			httpRequestDuration.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
