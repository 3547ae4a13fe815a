// Package server exposes the birthday feed, on-demand calendar images and
// metrics over HTTP.
package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tartampluch/go-birthday-bot/internal/calendar"
	"github.com/tartampluch/go-birthday-bot/internal/config"
	"github.com/tartampluch/go-birthday-bot/internal/metrics"
)

// Renderer draws a month in memory.
type Renderer interface {
	RenderMonthPNG(ctx context.Context, year, month int) (png []byte, caption string, err error)
}

// cacheItem stores the rendered feed and its metadata for HTTP caching.
type cacheItem struct {
	data         []byte
	etag         string
	lastModified string // RFC1123 format required by HTTP headers
}

// Server serves the iCalendar feed, calendar images and metrics.
type Server struct {
	// cache uses atomic.Pointer: the feed is read on every request and
	// replaced only by the refresh job.
	cache    atomic.Pointer[cacheItem]
	BindAddr string
	Port     string
	Calendar Renderer
}

// New creates a server. cal may be nil, in which case image requests fail with 503.
func New(bindAddr, port string, cal Renderer) *Server {
	return &Server{BindAddr: bindAddr, Port: port, Calendar: cal}
}

// Handler builds the router with recovery, compression and request metrics.
// Calendar images are rendered on demand and throttled per client address.
func (s *Server) Handler() http.Handler {
	renders := newClientLimiter(config.HTTPRenderRateInterval, config.HTTPRenderRateBurst)

	r := mux.NewRouter()
	r.HandleFunc(config.RouteFeed, s.handleFeed).Methods(http.MethodGet, http.MethodHead)
	r.Handle(config.RouteCalendar, renders.Middleware(http.HandlerFunc(s.handleCalendar))).Methods(http.MethodGet, http.MethodHead)
	r.Handle(config.RouteMetrics, promhttp.Handler()).Methods(http.MethodGet)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	r.Use(metrics.Middleware(routeLabel))

	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(handlers.CompressHandler(r))
}

func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return config.RouteUnknown
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set(config.HeaderAllow, config.AllowedMethods)
	http.Error(w, config.HTTPMsgMethodNotAll, http.StatusMethodNotAllowed)
}

// Start listens and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.Port == "" {
		return errors.New(config.ErrPortRequired)
	}

	srv := &http.Server{
		Addr:         s.BindAddr + config.AddrSeparator + s.Port,
		Handler:      s.Handler(),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	serverError := make(chan error, config.ChannelBufferSize)

	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyAddr, s.BindAddr,
			config.LogKeyPort, s.Port,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info(config.MsgServerStop, config.LogKeyComponent, config.CompServer)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: %w", config.ErrServerShutdown, err)
		}
		return nil

	case err := <-serverError:
		return fmt.Errorf("%s: %w", config.ErrServerStartup, err)
	}
}

// Update atomically replaces the served feed.
func (s *Server) Update(data []byte) {
	hash := sha256.Sum256(data)
	etag := fmt.Sprintf(config.FormatETag, hex.EncodeToString(hash[:]))

	// Unchanged content keeps its Last-Modified so clients keep getting 304.
	if old := s.cache.Load(); old != nil && old.etag == etag {
		return
	}

	s.cache.Store(&cacheItem{
		data:         data,
		etag:         etag,
		lastModified: time.Now().UTC().Format(http.TimeFormat),
	})

	slog.Debug(config.MsgCacheUpdated,
		config.LogKeyComponent, config.CompServer,
		config.LogKeySizeBytes, len(data),
		config.LogKeyETag, etag,
	)
}

// handleFeed serves the ICS content with HTTP caching support.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	item := s.cache.Load()
	if item == nil {
		w.Header().Set(config.HeaderRetryAfter, config.RetryAfterSeconds)
		http.Error(w, config.HTTPMsgInitializing, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set(config.HeaderContentType, config.MimeTextCalendar)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	w.Header().Set(config.HeaderCacheControl, config.CacheControlPrivate)
	w.Header().Set(config.HeaderETag, item.etag)
	w.Header().Set(config.HeaderLastModified, item.lastModified)

	if notModified(r, item) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if r.Method == http.MethodGet {
		writeBody(w, item.data)
	}
}

func notModified(r *http.Request, item *cacheItem) bool {
	if match := r.Header.Get(config.HeaderIfNoneMatch); match != "" {
		return match == item.etag
	}
	since := r.Header.Get(config.HeaderIfModifiedSince)
	if since == "" {
		return false
	}
	clientTime, err := time.Parse(http.TimeFormat, since)
	if err != nil {
		return false
	}
	serverTime, err := time.Parse(http.TimeFormat, item.lastModified)
	if err != nil {
		return false
	}
	return !serverTime.After(clientTime)
}

// handleCalendar renders /calendar/{year}/{month}.png on demand.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if s.Calendar == nil {
		w.Header().Set(config.HeaderRetryAfter, config.RetryAfterSeconds)
		http.Error(w, config.HTTPMsgInitializing, http.StatusServiceUnavailable)
		return
	}

	vars := mux.Vars(r)
	// The route patterns only let digits through.
	year, _ := strconv.Atoi(vars[config.RouteVarYear])
	month, _ := strconv.Atoi(vars[config.RouteVarMonth])

	png, _, err := s.Calendar.RenderMonthPNG(r.Context(), year, month)
	if err != nil {
		if errors.Is(err, calendar.ErrInvalidMonth) {
			http.Error(w, config.HTTPMsgBadMonth, http.StatusBadRequest)
			return
		}
		slog.Error(config.ErrRender,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyYear, year,
			config.LogKeyMonth, month,
			config.LogKeyError, err,
		)
		http.Error(w, config.HTTPMsgInternalErr, http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HeaderContentType, config.MimeImagePNG)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	w.Header().Set(config.HeaderCacheControl, config.CacheControlPrivate)
	if r.Method == http.MethodGet {
		writeBody(w, png)
	}
}

func writeBody(w http.ResponseWriter, data []byte) {
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		slog.Error(config.ErrWriteResp,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
	}
}
