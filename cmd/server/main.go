package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/campus-connect/backend/internal/metrics"
	"github.com/anonto42/campus-connect/backend/internal/middleware"
	"github.com/anonto42/campus-connect/backend/internal/router"
	"github.com/anonto42/campus-connect/backend/pkg/config"
	"github.com/anonto42/campus-connect/backend/pkg/firebase"
	"github.com/anonto42/campus-connect/backend/pkg/logger"
	"github.com/anonto42/campus-connect/backend/pkg/validators"
	"github.com/labstack/echo/v4"
)

func main() {
	logger.Init()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", err)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize databases", err)
	}
	defer db.CloseDB()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var verifier middleware.TokenVerifier
	if cfg.UseFirebase() {
		firebaseVerifier, err := firebase.NewVerifier(ctx, firebase.Settings{
			CredentialsPath: cfg.FirebaseCredentialsPath,
			ProjectID:       cfg.FirebaseProjectID,
			CheckRevoked:    cfg.FirebaseCheckRevoked,
		})
		if err != nil {
			logger.Fatal("Failed to initialize Firebase", err)
		}
		verifier = firebaseVerifier
	}

	svc, err := router.NewServices(ctx, cfg, db)
	if err != nil {
		logger.Fatal("Failed to wire services", err)
	}

	janitor, err := svc.Presence.StartJanitor(cfg.TypingJanitorSpec, cfg.TypingRetention)
	if err != nil {
		logger.Fatal("Failed to schedule typing janitor", err)
	}
	defer janitor.Stop()

	go metrics.Serve(ctx, cfg.MetricsPort)

	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	config.SetupMiddleware(e)
	live := router.SetupRoutes(ctx, e, cfg, db, svc, verifier)

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server stopped unexpectedly", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
	// hijacked websockets outlive e.Shutdown; they close on ctx and must finish before CloseDB
	if err := live.Drain(shutdownCtx); err != nil {
		logger.Error("Live sessions did not close in time", "error", err)
	}
}
