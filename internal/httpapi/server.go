package httpapi

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/astrikos/mapstream/internal/gateway"
	"github.com/astrikos/mapstream/internal/redisstore"
)

// Server hosts the websocket gateway plus health and metrics endpoints.
type Server struct {
	engine *gin.Engine
	store  *redisstore.Store
	ws     *gateway.Handler
	http   *http.Server
}

func NewServer(addr string, store *redisstore.Store, ws *gateway.Handler) *Server {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine: engine,
		store:  store,
		ws:     ws,
		http: &http.Server{
			Addr:    addr,
			Handler: engine,
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/ws", func(c *gin.Context) {
		s.ws.ServeWS(c.Writer, c.Request)
	})

	s.engine.GET("/healthz", s.healthHandler)
	s.engine.GET("/readyz", s.readinessHandler)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

func (s *Server) Run() error {
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}
