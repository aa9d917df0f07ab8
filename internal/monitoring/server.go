package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/radioforge/iqbridge/internal/logging"
)

// Server exposes metrics and health over HTTP for debugging. It is
// optional; sessions run without it.
type Server struct {
	httpServer *http.Server
	logger     *logging.Logger
}

// NewServer builds the debug server for the given metrics collector.
func NewServer(addr string, metrics *Metrics, logger *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		metrics.Registry(),
		promhttp.HandlerOpts{},
	)))

	return &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: router,
		},
		logger: logger,
	}
}

// Start serves in a background goroutine until Stop is called.
func (s *Server) Start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	s.logger.Info("metrics server listening", zap.String("addr", s.httpServer.Addr))
}

// Stop shuts the server down, waiting briefly for in-flight scrapes.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
