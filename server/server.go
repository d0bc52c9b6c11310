// Package server exposes the chat pipeline over HTTP.
//
// Design decisions:
//   - One POST endpoint plus a health check. The handler only binds,
//     delegates and maps errors; every decision about the question
//     itself lives in the chat pipeline.
//   - Error mapping is by type: validation faults are 400 with the
//     violation list, quota faults are 429 with a Retry-After header,
//     AI faults are 502 with a generic message. Internal detail is
//     logged, never returned.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/storeql/storeql/chat"
	"github.com/storeql/storeql/config"
	"github.com/storeql/storeql/logger"
	"github.com/storeql/storeql/ratelimit"
)

// askTimeout bounds one whole question, AI round-trip included.
const askTimeout = 30 * time.Second

// Asker answers one question for one store.
type Asker interface {
	Ask(ctx context.Context, storeID string, question string) (*chat.ChatResponse, error)
}

// Server is the HTTP front end over the chat pipeline.
type Server struct {
	engine *gin.Engine
	asker  Asker
	log    *logger.Logger
	addr   string
}

type chatRequest struct {
	StoreID  string `json:"store_id" binding:"required"`
	Question string `json:"question"`
}

type errorResponse struct {
	Error      string   `json:"error"`
	Violations []string `json:"violations,omitempty"`
}

// New builds the HTTP server and registers its routes.
func New(cfg config.ServerConfig, asker Asker, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine: engine,
		asker:  asker,
		log:    log.With("component", "server"),
		addr:   cfg.Addr,
	}

	engine.GET("/healthz", s.handleHealth)
	engine.POST("/api/chat", s.handleChat)
	return s
}

// Run blocks serving HTTP until the listener fails.
func (s *Server) Run() error {
	s.log.Info("HTTP server listening", "addr", s.addr)
	return s.engine.Run(s.addr)
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "store_id is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), askTimeout)
	defer cancel()

	resp, err := s.asker.Ask(ctx, req.StoreID, req.Question)
	if err != nil {
		s.writeError(c, req.StoreID, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) writeError(c *gin.Context, storeID string, err error) {
	var verr *chat.ValidationError
	var rerr *ratelimit.RateLimitError
	var aerr *chat.AIError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:      verr.Message,
			Violations: verr.Violations,
		})
	case errors.As(err, &rerr):
		c.Header("Retry-After", strconv.Itoa(rerr.RetryAfterSeconds()))
		c.JSON(http.StatusTooManyRequests, errorResponse{Error: rerr.Error()})
	case errors.As(err, &aerr):
		c.JSON(http.StatusBadGateway, errorResponse{Error: aerr.Error()})
	default:
		s.log.Error("chat request failed", "store_id", storeID, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
