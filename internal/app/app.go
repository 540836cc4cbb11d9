package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/finlearn/finlearn-backend/internal/middleware"
	"github.com/finlearn/finlearn-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Clients  Clients
	Services Services
	Router   *gin.Engine

	srv *http.Server
}

func New() (*App, error) {
	cfg := LoadConfig()
	gin.SetMode(cfg.GinMode)

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	clients, err := wireClients(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	services, err := wireServices(cfg, clients, log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(cfg, clients, services, log)
	auth := middleware.NewAuthMiddleware(cfg.APIKey, log)
	router := wireRouter(cfg, handlerset, auth)

	return &App{
		Log:      log,
		Cfg:      cfg,
		Clients:  clients,
		Services: services,
		Router:   router,
	}, nil
}

// Run serves until the listener fails or Shutdown is called.
func (a *App) Run() error {
	a.srv = &http.Server{
		Addr:    ":" + a.Cfg.Port,
		Handler: a.Router,
	}
	a.Log.Info("Server listening", "port", a.Cfg.Port)
	if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases client connections.
func (a *App) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var firstErr error
	if a.srv != nil {
		if err := a.srv.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if err := a.Clients.Memory.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	a.Log.Sync()
	return firstErr
}
