package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/andrescamacho/taskstream-go/internal/adapters/broadcast"
	"github.com/andrescamacho/taskstream-go/internal/infrastructure/config"
)

// Server is the HTTP and WebSocket gateway in front of the task service.
type Server struct {
	cfg    *config.Server
	logger *logrus.Logger
	engine *gin.Engine
	http   *http.Server
}

// NewServer builds the gin engine with all routes registered.
func NewServer(cfg *config.Server, service TaskService, hub *broadcast.Hub, logger *logrus.Logger) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))

	if cfg.EnableCORS {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "X-User-ID")
		engine.Use(cors.New(corsCfg))
	}

	handler := NewTaskHandler(service, logger)
	ws := NewWebSocketHandler(hub, cfg.SessionBuffer, logger)

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit.Requests), cfg.RateLimit.Burst)

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	tasks := engine.Group("/tasks")
	{
		tasks.POST("", submitLimit(limiter), handler.CreateTask)
		tasks.GET("", handler.ListTasks)
		tasks.GET("/:id/status", handler.GetStatus)
		tasks.GET("/:id/result", handler.GetResult)
		tasks.DELETE("/:id", handler.DeleteTask)
	}

	engine.GET("/ws/tasks/:id", ws.Subscribe)

	return &Server{
		cfg:    cfg,
		logger: logger,
		engine: engine,
	}
}

// Engine exposes the router, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start runs the HTTP server until it fails or Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.logger.WithField("addr", addr).Info("Starting HTTP server")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// submitLimit rejects task submissions beyond the configured token bucket.
func submitLimit(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many task submissions"})
			return
		}
		c.Next()
	}
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}).Debug("Request handled")
	}
}
