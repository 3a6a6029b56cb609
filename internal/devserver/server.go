// Package devserver is a local stand-in for the remote todo API, used for
// development and end-to-end tests of the client.
package devserver

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const apiKeyHeader = "X-API-Key"

type createRequest struct {
	Title string `json:"title" binding:"required,max=200"`
}

type patchRequest struct {
	Title     *string `json:"title" binding:"omitempty,max=200"`
	Completed *bool   `json:"completed"`
}

type Server struct {
	store  *Store
	apiKey string
	log    *slog.Logger
}

// NewRouter wires the todo routes. When apiKey is empty every request is
// accepted.
func NewRouter(store *Store, apiKey string, log *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{store: store, apiKey: apiKey, log: log}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	api := r.Group("/api")
	api.GET("/todos/", s.list)
	api.GET("/todos/:id", s.get)
	api.GET("/settings/validate-key", s.requireKey(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"valid": true})
	})

	w := api.Group("/todos", s.requireKey())
	w.POST("/", s.create)
	w.PATCH("/:id", s.update)
	w.DELETE("/:id", s.remove)
	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"request_id", c.GetHeader("X-Request-ID"),
			"took", time.Since(start),
		)
	}
}

func (s *Server) requireKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.apiKey == "" {
			c.Next()
			return
		}
		got := c.GetHeader(apiKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "invalid api key"})
			return
		}
		c.Next()
	}
}

func (s *Server) list(c *gin.Context) {
	todos, err := s.store.List(c.Request.Context())
	if err != nil {
		s.internal(c, err)
		return
	}
	c.JSON(http.StatusOK, todos)
}

func (s *Server) get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	t, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "title is required"})
		return
	}
	t, err := s.store.Create(c.Request.Context(), title)
	if err != nil {
		s.internal(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		if trimmed == "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "title must not be empty"})
			return
		}
		req.Title = &trimmed
	}
	t, err := s.store.Update(c.Request.Context(), id, req.Title, req.Completed)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) remove(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.store.Delete(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid id"})
		return 0, false
	}
	return id, true
}

func (s *Server) fail(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "todo not found"})
		return
	}
	s.internal(c, err)
}

func (s *Server) internal(c *gin.Context, err error) {
	s.log.Error("request failed", "path", c.Request.URL.Path, "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
}
