// Package server initializes and runs the chat server. It opens the
// configured storage backend, applies migrations and starts the gRPC query
// service next to the HTTP endpoint carrying the websocket, metrics and
// health routes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timn835/crypto-chat/internal/logging"
	"github.com/timn835/crypto-chat/internal/server/config"
	"github.com/timn835/crypto-chat/internal/server/metrics"
	"github.com/timn835/crypto-chat/internal/server/presence"
	"github.com/timn835/crypto-chat/internal/server/repositories/repomanager"
	"github.com/timn835/crypto-chat/internal/server/services"
	"github.com/timn835/crypto-chat/internal/server/ws"

	gs "github.com/timn835/crypto-chat/internal/server/grpc"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config      *config.Config
	logger      logging.Logger
	repos       repomanager.RepositoryManager
	metrics     *metrics.Metrics
	userService *services.UserService
	chatService *services.ChatService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger, err := logging.New(c.LogFormat)
	if err != nil {
		return nil, err
	}

	rm, err := repomanager.New(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	m := metrics.New()
	registry := presence.NewRegistry(m.LiveConnections, m.OnlineUsers)

	us := services.NewUserService(rm, c)
	cs := services.NewChatService(rm, registry, m, logger)

	return &App{config: c, logger: logger, repos: rm, metrics: m, userService: us, chatService: cs}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s, err := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService, app.chatService, app.config.SecretKey)

	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	} else {

		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}
}

// router builds the HTTP routes: the realtime websocket, Prometheus metrics
// and a health probe.
func (app *App) router(ctx context.Context) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	h := ws.NewHandler(ctx, app.chatService, ws.Options{
		SecretKey:      app.config.SecretKey,
		EventTimeout:   app.config.EventTimeout,
		EventRateLimit: app.config.EventRateLimit,
		EventBurst:     app.config.EventBurst,
	}, app.logger)

	r.GET("/ws", h.Handle())
	r.GET("/metrics", gin.WrapH(app.metrics.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	srv := &http.Server{Addr: app.config.EndpointAddrHTTP, Handler: app.router(ctx)}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.EndpointAddrHTTP)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.StorageBackend)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.repos.Close(); err != nil {
		app.logger.Error(context.Background(), "storage close error", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
