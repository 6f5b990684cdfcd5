package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"abbo/internal/cache"
	"abbo/internal/core"
	"abbo/internal/icons"
	applog "abbo/internal/log"
	"abbo/internal/metrics"
	"abbo/internal/store"
	appweb "abbo/web"
)

const cacheKeyAll = "all"

type Server struct {
	http.Server
	templates *template.Template

	writer  store.SubscriptionWriter
	updater store.SubscriptionUpdater
	deleter store.SubscriptionDeleter
	lister  store.SubscriptionLister

	icons       *icons.Client
	rateLimiter *rateLimiter

	// Fragment caches, invalidated on every mutation.
	listCache    *cache.LRUCache[[]core.Subscription]
	summaryCache *cache.LRUCache[core.Summary]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, w store.SubscriptionWriter, u store.SubscriptionUpdater, d store.SubscriptionDeleter, l store.SubscriptionLister, ic *icons.Client) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		writer:       w,
		updater:      u,
		deleter:      d,
		lister:       l,
		icons:        ic,
		rateLimiter:  newRateLimiter(),
		listCache:    cache.NewLRUCache[[]core.Subscription](4, 5*time.Minute),
		summaryCache: cache.NewLRUCache[core.Summary](4, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.listCache)
	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/", s.withSecurityHeaders(s.handleIndex))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/subscriptions", s.withSecurityHeaders(s.handleCreateSubscription))
	mux.HandleFunc("/subscriptions/update", s.withSecurityHeaders(s.handleUpdateSubscription))
	mux.HandleFunc("/subscriptions/cancel", s.withSecurityHeaders(s.handleCancelSubscription))
	mux.HandleFunc("/subscriptions/delete", s.withSecurityHeaders(s.handleDeleteSubscription))
	// UI partials
	mux.HandleFunc("/ui/subscription-list", s.withSecurityHeaders(s.handleSubscriptionList))
	mux.HandleFunc("/ui/summary", s.withSecurityHeaders(s.handleSummary))
	mux.HandleFunc("/ui/icon-search", s.withSecurityHeaders(s.handleIconSearch))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()

		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}

		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, request logging
// and Prometheus instrumentation to responses.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)
		requestID := uuid.NewString()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		// Rate limit mutating requests only.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com 'unsafe-eval'; style-src 'self' 'unsafe-inline'; img-src 'self' https: data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.statusCode)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.URL.Path).Observe(duration.Seconds())

		fields := applog.NewFields().
			WithRequestID(requestID).
			WithClientIP(clientIP).
			WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
			WithHTTPResponse(rw.statusCode, duration.Milliseconds(), rw.statusCode < http.StatusBadRequest)
		slog.InfoContext(ctx, "Request completed", fields.ToSlice()...)
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// invalidate drops the cached list and summary after any mutation.
func (s *Server) invalidate() {
	s.listCache.Delete(cacheKeyAll)
	s.summaryCache.Delete(cacheKeyAll)
}

func (s *Server) getSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	if items, found := s.listCache.Get(cacheKeyAll); found {
		slog.DebugContext(ctx, "Subscription list cache hit", "count", len(items))
		result := make([]core.Subscription, len(items))
		copy(result, items)
		return result, nil
	}

	cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()
	items, err := s.lister.List(cctx)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	s.listCache.Set(cacheKeyAll, items)
	slog.DebugContext(ctx, "Subscription list cached", "count", len(items))
	return items, nil
}

func (s *Server) getSummary(ctx context.Context) (core.Summary, error) {
	if data, found := s.summaryCache.Get(cacheKeyAll); found {
		slog.DebugContext(ctx, "Summary cache hit")
		return data, nil
	}

	items, err := s.getSubscriptions(ctx)
	if err != nil {
		return core.Summary{}, err
	}

	summary, err := core.Aggregate(items)
	if err != nil {
		return core.Summary{}, fmt.Errorf("aggregate subscriptions: %w", err)
	}

	s.summaryCache.Set(cacheKeyAll, summary)
	slog.DebugContext(ctx, "Summary cached",
		"records", summary.Records,
		"free_trials", summary.FreeTrials)
	return summary, nil
}
