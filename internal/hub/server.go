// Package hub implements ledger-hub, the shared remote record store. It
// serves household partitions over HTTP, pushes change signals over
// websockets and relays writes between replicas through AMQP.
package hub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ledger/internal/amqp"
	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/metrics"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/remote"
)

// Change sources, used as the broadcast metric label.
const (
	SourceLocal = "local"
	SourceRelay = "relay"
)

// Publisher announces writes to other replicas.
type Publisher interface {
	PublishChange(ctx context.Context, household string) error
}

// Config holds hub server settings
type Config struct {
	AllowedOrigins []string
	CacheTTL       time.Duration
	CacheSize      int
	RateLimit      int // requests per minute per client
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
		CacheTTL:       30 * time.Second,
		CacheSize:      256,
		RateLimit:      120,
	}
}

type Server struct {
	store     remote.Store
	keys      *KeyManager
	config    Config
	publisher Publisher
	logger    *log.Logger

	snapshots *cache.LRUCache[[]core.Expense]
	caches    *cache.Manager

	// versions counts changes per household. A snapshot is only cached if
	// no change happened while it was being read.
	versionMu sync.Mutex
	versions  map[string]uint64

	limiter   *ratelimit.Limiter
	feed      *feed
	engine    *gin.Engine
}

// New wires a hub over store. publisher may be nil for a single replica.
func New(store remote.Store, keys *KeyManager, config Config, publisher Publisher, logger *log.Logger) *Server {
	def := DefaultConfig()
	if config.CacheTTL <= 0 {
		config.CacheTTL = def.CacheTTL
	}
	if config.CacheSize <= 0 {
		config.CacheSize = def.CacheSize
	}
	if config.RateLimit <= 0 {
		config.RateLimit = def.RateLimit
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHub)

	s := &Server{
		store:     store,
		keys:      keys,
		config:    config,
		publisher: publisher,
		logger:    logger,
		snapshots: cache.NewLRUCache[[]core.Expense](config.CacheSize, config.CacheTTL),
		versions:  map[string]uint64{},
		caches:    cache.NewManager(logger),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: config.RateLimit}),
		feed:      newFeed(config.AllowedOrigins, logger),
	}
	s.caches.Register(s.snapshots)
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.UseRawPath = true
	r.Use(gin.Recovery())
	r.Use(log.GinMiddleware(s.logger))
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(cors.New(s.corsConfig()))
	r.Use(requestMetrics())

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1/households/:household")
	api.Use(s.limiter.Middleware(), s.authenticate(), s.authorizeHousehold())
	api.GET("/expenses", s.handleList)
	api.PUT("/expenses", s.handleUpsert)
	api.DELETE("/expenses/:id", s.handleDelete)
	api.GET("/changes", s.handleChanges)
	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", log.RequestIDHeader},
		ExposeHeaders: []string{log.RequestIDHeader, "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	origins := s.config.AllowedOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HubRequests.WithLabelValues(route, strconv.Itoa(c.Writer.Status()/100)+"xx").Inc()
	}
}

// Handler returns the HTTP handler of the hub.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Sessions returns the number of open change feed sessions.
func (s *Server) Sessions() int {
	return s.feed.sessions()
}

// Changed invalidates the cached snapshot of household and signals its
// change feed sessions.
func (s *Server) Changed(household, source string) {
	s.versionMu.Lock()
	s.versions[household]++
	s.snapshots.Delete(household)
	s.versionMu.Unlock()
	s.feed.broadcast(household, source)
}

func (s *Server) version(household string) uint64 {
	s.versionMu.Lock()
	defer s.versionMu.Unlock()
	return s.versions[household]
}

// cacheSnapshot stores records read at version unless household changed since.
func (s *Server) cacheSnapshot(household string, version uint64, records []core.Expense) bool {
	s.versionMu.Lock()
	defer s.versionMu.Unlock()
	if s.versions[household] != version {
		return false
	}
	s.snapshots.Set(household, records)
	return true
}

// HandleRelay applies a change announced by another replica.
func (s *Server) HandleRelay(ctx context.Context, msg *amqp.ChangeMessage) error {
	s.logger.DebugContext(ctx, "Relaying change from replica",
		log.FieldHousehold, msg.Household,
		"source", msg.Source)
	s.Changed(msg.Household, SourceRelay)
	return nil
}

// written runs after every successful write to household.
func (s *Server) written(ctx context.Context, household string) {
	s.Changed(household, SourceLocal)
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishChange(ctx, household); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish change to replicas",
			log.FieldHousehold, household,
			log.FieldError, err)
	}
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
// Background sweeps of the rate limiter and snapshot cache run alongside.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB
	}

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	go s.limiter.Run(bgCtx)
	go s.caches.Run(bgCtx, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "Hub listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	// Websocket sessions are hijacked and not tracked by Shutdown.
	if err := s.feed.close(); err != nil {
		s.logger.WarnContext(shutdownCtx, "Failed to close change feed", log.FieldError, err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.InfoContext(shutdownCtx, "Hub stopped gracefully")
	return nil
}

// Close disconnects every change feed session.
func (s *Server) Close() error {
	return s.feed.close()
}
