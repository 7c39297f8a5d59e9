package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"wc-salesforce-sync/internal/api"
	"wc-salesforce-sync/internal/app"
	"wc-salesforce-sync/internal/config"
	"wc-salesforce-sync/internal/logger"
	"wc-salesforce-sync/internal/sync"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	// Load Config
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Init Logger
	if err := logger.InitLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Log.Info("Starting WooCommerce Salesforce sync service")

	ctx := context.Background()
	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Log.Fatal("Failed to init application", zap.Error(err))
	}
	defer application.Close()

	// Start dispatch queue
	if err := application.Manager.Start(); err != nil {
		logger.Log.Fatal("Failed to start sync manager", zap.Error(err))
	}

	// Checkout trigger
	var listener *sync.CheckoutListener
	if cfg.Sync.Automatic && cfg.Trigger.Binlog {
		listener, err = sync.NewCheckoutListener(cfg.Database, cfg.Trigger, application.Manager)
		if err != nil {
			logger.Log.Fatal("Failed to init checkout listener", zap.Error(err))
		}
		if err := listener.Start(); err != nil {
			logger.Log.Fatal("Failed to start checkout listener", zap.Error(err))
		}
	} else {
		logger.Log.Info("Automatic checkout sync is disabled")
	}

	// Missed-order sweep
	scheduler := sync.NewScheduler(cfg.Scheduler, cfg.Trigger.OrderStatuses, application.Store, application.Manager)
	if err := scheduler.Start(); err != nil {
		logger.Log.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// Init API
	if err := cfg.Server.CheckExposure(); err != nil {
		logger.Log.Fatal("Refusing to expose the API", zap.Error(err))
	}
	handler := api.NewHandler(application.Manager, application.Store, application.Tokens, application.Objects, cfg.Server.AuthToken)
	router := handler.Routes()

	// Start Server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.GetReadTimeout(),
		WriteTimeout: cfg.Server.GetWriteTimeout(),
	}

	go func() {
		logger.Log.Info("Server listening", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warn("Server shutdown failed", zap.Error(err))
	}

	if listener != nil {
		listener.Stop()
	}
	scheduler.Stop()
	// queued syncs run to completion in application.Close
}
