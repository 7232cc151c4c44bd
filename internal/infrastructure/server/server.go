package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/deskrelay/widget/internal/api/http"
	"github.com/deskrelay/widget/internal/api/middleware"
	"github.com/deskrelay/widget/internal/api/ws"
	"github.com/deskrelay/widget/internal/chat"
	"github.com/deskrelay/widget/internal/events"
	"github.com/deskrelay/widget/internal/gateway"
	"github.com/deskrelay/widget/internal/infrastructure/config"
	"github.com/deskrelay/widget/internal/infrastructure/logging"
	"github.com/deskrelay/widget/internal/infrastructure/monitoring"
	"github.com/deskrelay/widget/internal/session"
	"github.com/deskrelay/widget/internal/state"
	"github.com/deskrelay/widget/internal/transport"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	router    *gin.Engine
	http      *http.Server
	orch      *chat.Orchestrator
	transport *transport.Client
	logger    *logging.Logger
	config    *config.Config
	metrics   *monitoring.Metrics
	cancel    context.CancelFunc
}

// NewServer wires the full widget backend: stores, gateway, transport,
// orchestrator, and the HTTP/WebSocket surface.
func NewServer(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	if cfg.App.ID == "" {
		return nil, fmt.Errorf("APP_ID is required")
	}

	logger.Info("Initializing widget backend",
		zap.String("port", cfg.Server.Port),
		zap.String("app_id", cfg.App.ID),
		zap.String("backend_url", cfg.Backend.BaseURL),
	)

	metrics := monitoring.NewMetrics()

	sessions, err := session.NewStore(cfg.Storage.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	backend := gateway.New(gateway.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
	}, logger)

	tr := transport.NewClient(transport.Config{
		BaseURL:   cfg.Transport.BaseURL,
		StreamURL: cfg.Transport.StreamURL,
		Timeout:   cfg.Transport.Timeout,
	}, logger)

	stateStore := state.NewStore()
	emitter := events.New()

	orch := chat.New(chat.Config{
		ApplicationID: cfg.App.ID,
		ChannelID:     cfg.App.ChannelID,
		ReadyTimeout:  cfg.Transport.ReadyTimeout,
	}, backend, tr, sessions, stateStore, emitter, metrics, logger)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(orch, logger)
	wsHandler := ws.NewHandler(orch, emitter, metrics, logger)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	router.POST("/chat/initiate", handlers.InitiateChat)
	router.GET("/chat/state", handlers.GetState)
	router.POST("/chat/messages", handlers.SendMessage)
	router.POST("/chat/open", handlers.Open)
	router.POST("/chat/close", handlers.Close)
	router.POST("/chat/clear", handlers.ClearSession)

	router.GET("/stream", wsHandler.HandleConnection)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("Widget backend initialized")

	return &Server{
		router:    router,
		orch:      orch,
		transport: tr,
		logger:    logger,
		config:    cfg,
		metrics:   metrics,
	}, nil
}

// Run starts the HTTP server and the transport event pump, blocking until
// the server stops.
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.orch.Listen(ctx)
	go s.uptimeLoop(ctx)

	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.http = &http.Server{Addr: addr, Handler: s.router}

	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// uptimeLoop refreshes the uptime gauge until shutdown.
func (s *Server) uptimeLoop(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.metrics.UpdateUptime()
		}
	}
}

// Close gracefully shuts down the server and the transport session.
func (s *Server) Close() error {
	s.logger.Info("Shutting down...")

	if s.cancel != nil {
		s.cancel()
	}

	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP shutdown failed", zap.Error(err))
		}
	}

	if err := s.transport.Close(); err != nil {
		s.logger.Warn("Transport close failed", zap.Error(err))
	}

	s.logger.Sync()
	return nil
}
