package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"soulfetch/internal/acquire"
	"soulfetch/internal/config"
	"soulfetch/internal/headscale"
	apphttp "soulfetch/internal/http"
	"soulfetch/internal/repository/sqlite"
	"soulfetch/internal/search"
	"soulfetch/internal/service"
	"soulfetch/internal/slskd"
	"soulfetch/internal/stats"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	requestRepo := sqlite.NewRequestRepository(db)
	if err := requestRepo.Init(ctx); err != nil {
		logger.Fatalf("init request repository: %v", err)
	}

	slskdClient := slskd.NewClient(slskd.Config{
		BaseURL:           cfg.Slskd.Host,
		APIKey:            cfg.Slskd.APIKey,
		Username:          cfg.Slskd.Username,
		Password:          cfg.Slskd.Password,
		SearchesPerSecond: cfg.Slskd.SearchesPerSecond,
		Logger:            logger,
	})
	logger.Infof("using slskd at %s", cfg.Slskd.Host)

	coordinator := search.NewCoordinator(search.Config{
		FileLimit:     cfg.Search.FileLimit,
		ResponseLimit: cfg.Search.ResponseLimit,
		Deadline:      cfg.SearchDeadline(),
		PollInterval:  cfg.SearchPollInterval(),
		Logger:        logger,
	}, slskdClient)

	resolver := headscale.NewClient(headscale.Config{
		URL:    cfg.Headscale.URL,
		APIKey: cfg.Headscale.APIKey,
		Logger: logger,
	})

	requestService := service.NewRequestService(requestRepo, resolver)
	statsService := stats.NewService(slskdClient)

	manager := acquire.NewManager(acquire.Config{
		MaxConcurrent: cfg.Acquire.MaxConcurrent,
		Logger:        logger,
	}, requestRepo, coordinator, slskdClient)
	manager.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(requestService, manager, coordinator, statsService)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	manager.Shutdown()

	logger.Info("bye")
}
