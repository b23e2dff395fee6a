// Package api serves the gateway's read surface over HTTP: deposit
// admissibility previews, oracle and breaker status, and statistics. All
// endpoints are pure reads; nothing here mutates admission or oracle state.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"cosmossdk.io/math"

	"github.com/palisade-fi/zapgate/config"
	"github.com/palisade-fi/zapgate/internal/deposit"
	"github.com/palisade-fi/zapgate/internal/metrics"
	"github.com/palisade-fi/zapgate/pkg/logger"
)

// Server is the read-surface HTTP API.
type Server struct {
	cfg     config.APIConfig
	orch    *deposit.Orchestrator
	log     *logger.Logger
	router  *gin.Engine
	server  *http.Server
	limiter *clientLimiter
}

// NewServer wires routes and middleware.
func NewServer(cfg config.APIConfig, orch *deposit.Orchestrator, log *logger.Logger) *Server {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 100
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:     cfg,
		orch:    orch,
		log:     log,
		router:  router,
		limiter: newClientLimiter(cfg.RateLimit, cfg.RateLimit*2),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	// CORS.
	s.router.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		allowed := false
		for _, o := range s.cfg.CORSOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}
		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	// Per-client rate limiting.
	s.router.Use(func(c *gin.Context) {
		if !s.limiter.allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Too many requests, please try again later",
			})
			c.Abort()
			return
		}
		c.Next()
	})

	// Logging and metrics.
	s.router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		took := time.Since(start)
		status := c.Writer.Status()
		s.log.Debug("API request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", took.Milliseconds(),
			"ip", c.ClientIP(),
		)
		metrics.HTTPRequests.WithLabelValues(path, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(path).Observe(took.Seconds())
	})

	// Request timeout.
	s.router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.Timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/deposit/can", s.handleCanDeposit)
		v1.GET("/oracle/status", s.handleOracleStatus)
		v1.GET("/breaker/status", s.handleBreakerStatus)
		v1.GET("/stats/user/:address", s.handleUserStats)
		v1.GET("/stats/protocol", s.handleProtocolStats)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"paused": s.orch.Paused(),
	})
}

// handleCanDeposit previews admission for ?caller=...&amount=....
func (s *Server) handleCanDeposit(c *gin.Context) {
	caller := c.Query("caller")
	if caller == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "caller is required"})
		return
	}
	amount, ok := math.NewIntFromString(c.Query("amount"))
	if !ok || !amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a positive integer"})
		return
	}
	allowed, reason := s.orch.CanDeposit(c.Request.Context(), caller, amount)
	c.JSON(http.StatusOK, gin.H{
		"allowed": allowed,
		"reason":  reason,
	})
}

func (s *Server) handleOracleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.orch.OracleStatus(c.Request.Context()))
}

func (s *Server) handleBreakerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.orch.BreakerStatus())
}

func (s *Server) handleUserStats(c *gin.Context) {
	st, err := s.orch.UserStatistics(c.Request.Context(), c.Param("address"))
	if err != nil {
		s.log.Error("user statistics query failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "statistics unavailable"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleProtocolStats(c *gin.Context) {
	st, err := s.orch.ProtocolStatistics(c.Request.Context())
	if err != nil {
		s.log.Error("protocol statistics query failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "statistics unavailable"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// Start serves until shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler: s.router,
	}
	s.log.Info("API server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine { return s.router }
