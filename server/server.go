// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package server exposes a docqa library over HTTP with gin.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/poiesic/docqa/core"
)

// DefaultMaxUploadBytes bounds the size of an upload request body.
const DefaultMaxUploadBytes int64 = 32 << 20

const shutdownTimeout = 10 * time.Second

// ErrServiceRequired is returned when no service is provided.
var ErrServiceRequired = errors.New("service required")

// Service is the document question-answering surface served over HTTP.
// *docqa.Library implements it.
type Service interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*core.Document, error)
	Documents(ctx context.Context) ([]*core.Document, error)
	Delete(ctx context.Context, documentID string) error
	Ask(ctx context.Context, documentID, question string, topK int) (*core.Answer, error)
}

// Server routes HTTP requests to a Service.
type Server struct {
	svc            Service
	engine         *gin.Engine
	maxUploadBytes int64
	logger         *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMaxUploadBytes limits upload request bodies to n bytes.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) error {
		if n < 1 {
			return errors.New("max upload size must be positive")
		}
		s.maxUploadBytes = n
		return nil
	}
}

// New creates a server for svc.
func New(svc Service, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, ErrServiceRequired
	}
	s := &Server{
		svc:            svc,
		maxUploadBytes: DefaultMaxUploadBytes,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "server")

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.MaxMultipartMemory = 8 << 20
	engine.Use(s.recovery(), s.requestLogger())
	s.routes(engine)
	s.engine = engine
	return s, nil
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/", s.handleRoot)

	docs := r.Group("/api/documents")
	docs.POST("/upload", s.handleUpload)
	docs.GET("", s.handleList)
	docs.DELETE("/:id", s.handleDelete)
	docs.POST("/query", s.handleQuery)
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).Round(time.Microsecond))
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		s.logger.Error("panic serving request", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Kind:    core.KindInternal,
			Message: "internal server error",
		})
	})
}
