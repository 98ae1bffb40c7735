// Package server exposes the engine's local control surface: status and
// risk endpoints for a UI, monitor start/stop, metrics, and the event
// stream. It binds to a local port and serves a single workstation.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zerotrust-labs/sentinel/internal/config"
	"github.com/zerotrust-labs/sentinel/internal/coordinator"
	"github.com/zerotrust-labs/sentinel/internal/credentials"
	"github.com/zerotrust-labs/sentinel/internal/logging"
	"github.com/zerotrust-labs/sentinel/internal/metrics"
	"github.com/zerotrust-labs/sentinel/internal/monitor"
	"github.com/zerotrust-labs/sentinel/internal/realtime"
)

// Backend is the slice of the API gateway the server calls directly.
type Backend interface {
	HealthCheck(ctx context.Context) bool
	Logout(ctx context.Context) error
}

// Server wraps the gin engine and the components it fronts.
type Server struct {
	cfg     *config.Config
	coord   *coordinator.Coordinator
	mon     *monitor.Monitor
	hub     *realtime.Hub
	backend Backend
	creds   *credentials.Manager
	router  *gin.Engine
	httpSrv *http.Server
	logger  *slog.Logger

	ready atomic.Bool
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logging.Component(logger, "server") }
}

// New assembles the control server. The hub may be nil when streaming
// is disabled.
func New(cfg *config.Config, coord *coordinator.Coordinator, mon *monitor.Monitor, hub *realtime.Hub, backend Backend, creds *credentials.Manager, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		coord:   coord,
		mon:     mon,
		hub:     hub,
		backend: backend,
		creds:   creds,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method, "path", path,
				"status", status, "latency_ms", latency.Milliseconds())
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method, "path", path,
				"status", status, "latency_ms", latency.Milliseconds())
		default:
			logger.Info("request completed",
				"method", c.Request.Method, "path", path,
				"status", status, "latency_ms", latency.Milliseconds())
		}
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.healthHandler)
	s.router.GET("/metrics", metrics.Handler())

	api := s.router.Group("/api")
	{
		api.GET("/status", s.statusHandler)
		api.GET("/risk", s.riskHandler)
		api.GET("/history", s.historyHandler)
		api.POST("/risk/calculate", s.calculateHandler)
		api.POST("/train", s.trainHandler)
		api.POST("/monitor/start", s.monitorStartHandler)
		api.POST("/monitor/stop", s.monitorStopHandler)
		api.POST("/logout", s.logoutHandler)
	}

	if s.hub != nil {
		s.router.GET("/ws", gin.WrapF(s.hub.HandleWebSocket))
	}
}

func (s *Server) healthHandler(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	if !s.ready.Load() {
		status = "starting"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":  status,
		"backend": s.backend.HealthCheck(c.Request.Context()),
	})
}

func (s *Server) statusHandler(c *gin.Context) {
	_, authenticated := s.creds.Token()
	resp := gin.H{
		"authenticated": authenticated,
		"monitoring":    s.mon.Running(),
		"snapshot":      s.coord.Snapshot(),
	}
	if s.hub != nil {
		resp["stream"] = s.hub.Stats()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) riskHandler(c *gin.Context) {
	latest := s.coord.LatestRisk()
	if latest == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no assessment yet"})
		return
	}
	c.JSON(http.StatusOK, latest)
}

func (s *Server) historyHandler(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be 1-100"})
			return
		}
		limit = n
	}

	items, err := s.coord.History(c.Request.Context(), limit)
	if err != nil {
		s.writeGatewayError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"risks": items, "count": len(items)})
}

func (s *Server) calculateHandler(c *gin.Context) {
	assessment, err := s.coord.CalculateRisk(c.Request.Context())
	if err != nil {
		s.writeGatewayError(c, err)
		return
	}
	if assessment == nil {
		c.JSON(http.StatusAccepted, gin.H{"message": "submitted, no score returned"})
		return
	}
	c.JSON(http.StatusOK, assessment)
}

// trainHandler triggers backend model training and refreshes the
// dashboard so the response reflects the new trained state.
func (s *Server) trainHandler(c *gin.Context) {
	if err := s.coord.TrainModel(c.Request.Context()); err != nil {
		s.writeGatewayError(c, err)
		return
	}
	snap, err := s.coord.RefreshDashboard(c.Request.Context())
	if err != nil {
		s.writeGatewayError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"modelTrained": snap.ModelTrained})
}

func (s *Server) monitorStartHandler(c *gin.Context) {
	if _, ok := s.creds.Token(); !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "not authenticated"})
		return
	}
	s.mon.Start()
	c.JSON(http.StatusOK, gin.H{"monitoring": true})
}

func (s *Server) monitorStopHandler(c *gin.Context) {
	s.mon.Stop()
	c.JSON(http.StatusOK, gin.H{"monitoring": false})
}

// logoutHandler stops monitoring, revokes the server session, clears the
// stored token, and drops local risk state.
func (s *Server) logoutHandler(c *gin.Context) {
	s.mon.Stop()

	if err := s.backend.Logout(c.Request.Context()); err != nil {
		// Revocation is best effort; the local session ends regardless.
		logging.L(c.Request.Context()).Warn("server-side logout failed", "error", err)
	}
	if err := s.creds.Clear(); err != nil {
		logging.L(c.Request.Context()).Warn("credential clear failed", "error", err)
	}
	s.coord.Reset()

	c.JSON(http.StatusOK, gin.H{"authenticated": false})
}

// writeGatewayError maps an upstream failure onto a local status code.
func (s *Server) writeGatewayError(c *gin.Context, err error) {
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("control server listening", "port", s.cfg.Port)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	s.ready.Store(true)

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	return s.Shutdown()
}

// Shutdown stops accepting requests and drains in-flight ones.
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("control server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}
