package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"marketplace-chat/config"
	"marketplace-chat/internal/auth"
	"marketplace-chat/internal/handler"
	"marketplace-chat/internal/middleware"
	"marketplace-chat/internal/transport/httpdto"
	"marketplace-chat/internal/websocket"
	"marketplace-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Conversation *handler.ConversationHandler
	Message      *handler.MessageHandler
	Composer     *handler.ComposerHandler
	Presence     *handler.PresenceHandler
	Stream       *websocket.Handler
}

// HealthCheck reports one dependency; a non-nil error marks the engine unhealthy.
type HealthCheck func(ctx context.Context) error

type Options struct {
	Verifier     *auth.Verifier
	Recorder     middleware.RequestRecorder
	Metrics      http.Handler
	HealthChecks map[string]HealthCheck
	CORSOrigins  []string
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(handlers *Handlers, opts Options) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware(opts.CORSOrigins...))
	s.engine.Use(middleware.LoggingMiddleware(s.logger, opts.Recorder))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := gin.H{}
		healthy := true
		for name, check := range opts.HealthChecks {
			if err := check(ctx); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, httpdto.Response[gin.H]{Data: status, Error: "unhealthy", Code: "UNHEALTHY"})
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(status))
	})

	if opts.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	v1 := s.engine.Group("/v1", middleware.AuthMiddleware(opts.Verifier))
	{
		v1.GET("/stream", handlers.Stream.Connect)

		conversations := v1.Group("/conversations")
		conversations.GET("", handlers.Conversation.List)
		conversations.POST("", handlers.Conversation.Create)
		conversations.GET("/:id", handlers.Conversation.Get)
		conversations.PATCH("/:id", handlers.Conversation.Update)
		conversations.POST("/:id/open", handlers.Conversation.Open)
		conversations.POST("/:id/close", handlers.Conversation.Close)
		conversations.POST("/:id/read", handlers.Conversation.MarkRead)

		conversations.GET("/:id/messages", handlers.Message.List)
		conversations.POST("/:id/messages", handlers.Message.Send)
		conversations.PATCH("/:id/messages/:messageId", handlers.Message.Update)
		conversations.DELETE("/:id/messages/:messageId", handlers.Message.Cancel)
		conversations.POST("/:id/messages/:messageId/retry", handlers.Message.Retry)
		conversations.POST("/:id/messages/:messageId/reactions", handlers.Message.React)

		conversations.GET("/:id/draft", handlers.Composer.Get)
		conversations.PUT("/:id/draft/content", handlers.Composer.SetContent)
		conversations.PUT("/:id/draft/reply", handlers.Composer.SetReplyTo)
		conversations.POST("/:id/draft/attachments", handlers.Composer.AddAttachment)
		conversations.DELETE("/:id/draft/attachments/:attachmentId", handlers.Composer.RemoveAttachment)
		conversations.POST("/:id/draft/attachments/:attachmentId/retry", handlers.Composer.RetryAttachment)
		conversations.POST("/:id/draft/send", handlers.Composer.Send)
		conversations.POST("/:id/draft/leave", handlers.Composer.Leave)

		v1.GET("/presence", handlers.Presence.List)
		v1.GET("/presence/:userId", handlers.Presence.Get)
	}
}

// Start serves until ctx is cancelled, then shuts down within five seconds.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		if s.logger != nil {
			s.logger.Errorf("Error in starting the server: %s", err)
		}
		return err
	case <-ctx.Done():
	}

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}
