package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hinan-bknd/internal/auth"
	"hinan-bknd/internal/config"
	"hinan-bknd/internal/database"
	"hinan-bknd/internal/importer"
	"hinan-bknd/internal/logger"
	"hinan-bknd/internal/models"
	"hinan-bknd/internal/observability"
	"hinan-bknd/internal/routes"
	"hinan-bknd/internal/services"
	"hinan-bknd/internal/source"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logr := logger.New(cfg)
	defer logr.Sync()

	if err := cfg.Validate(); err != nil {
		logr.Fatal("invalid configuration", zap.Error(err))
	}

	db, err := database.New(cfg)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()
	if err := database.Migrate(ctx, db); err != nil {
		logr.Fatal("failed to migrate database", zap.Error(err))
	}

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTIssuer)
	if err != nil {
		logr.Fatal("failed to init jwt manager", zap.Error(err))
	}

	opener, err := source.NewRouterWithS3(ctx, source.S3Config{
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		PathStyle: cfg.S3PathStyle,
	})
	if err != nil {
		logr.Fatal("failed to init input sources", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	placeSvc := services.NewPlaceService(db)
	authSvc := services.NewAuthService(db, jwtMgr, cfg, logr.Named("auth"))
	imp := importer.New(placeSvc, opener, logr.Named("importer"),
		importer.WithMetrics(metrics),
		importer.WithEncoding(cfg.ImportEncoding),
	)

	if cfg.BootstrapAdminEmail != "" && cfg.BootstrapAdminPassword != "" {
		if _, err := authSvc.EnsureOperator(ctx, cfg.BootstrapAdminEmail, "admin", cfg.BootstrapAdminPassword, []string{models.RoleAdmin}); err != nil {
			logr.Fatal("failed to create bootstrap operator", zap.Error(err))
		}
	}

	if n, err := placeSvc.Count(ctx); err == nil {
		metrics.PlaceRecords.Set(float64(n))
	}

	r := routes.NewRouter(routes.Deps{
		Config:   cfg,
		Logger:   logr,
		Metrics:  metrics,
		JWT:      jwtMgr,
		Places:   placeSvc,
		Auth:     authSvc,
		Importer: imp,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute, // admin imports run inside the request
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Info("server started", zap.String("port", cfg.Port), zap.String("driver", cfg.DatabaseDriver))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Fatal("server forced to shutdown", zap.Error(err))
	}

	logr.Info("server exited gracefully")
}
