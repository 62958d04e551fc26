package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/tcgsim/tcgsim-go/internal/config"
	"github.com/tcgsim/tcgsim-go/internal/logging"
	"github.com/tcgsim/tcgsim-go/internal/repository"
	"github.com/tcgsim/tcgsim-go/internal/server"
	"github.com/tcgsim/tcgsim-go/internal/tournament"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting tcgsim server",
		zap.String("version", version),
		zap.String("config", *configPath),
		zap.String("verbosity", cfg.Logging.Verbosity),
	)

	if cfg.Server.AdminPasswordHash == "" {
		logger.Warn("admin password hash not configured; shutdown endpoint disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize store
	store, err := repository.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close()

	session := server.NewSession(cfg, store, logger)
	defer session.Close()

	hub := server.NewHub(session, logger)
	go hub.Run()
	defer hub.Stop()

	// Background optimizer runs save their trials to the same store.
	tournaments := tournament.NewManager(store, logger)
	defer tournaments.Close()

	// Admin shutdown requests land on the same path as signals.
	adminStop := make(chan struct{})
	var stopOnce sync.Once
	requestStop := func() { stopOnce.Do(func() { close(adminStop) }) }

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddress,
		Handler:           server.NewHTTPServer(session, hub, tournaments, cfg, requestStop, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := server.NewGRPCServer(session, logger)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddress)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	// Start gRPC server
	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPCAddress))
		if serveErr := grpcServer.Serve(lis); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	// Start HTTP server
	go func() {
		logger.Info("starting HTTP server", zap.String("address", cfg.Server.HTTPAddress))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(serveErr))
		}
	}()

	logger.Info("tcgsim server initialized",
		zap.String("version", version),
		zap.String("http_address", cfg.Server.HTTPAddress),
		zap.String("grpc_address", cfg.Server.GRPCAddress),
		zap.String("database_driver", cfg.Database.Driver),
		zap.Int("lands", cfg.Simulation.Lands),
		zap.Int("nonlands", cfg.Simulation.Nonlands),
	)

	// Wait for termination signal
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-adminStop:
		logger.Info("received admin shutdown request")
	}

	// Graceful shutdown
	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown error", zap.Error(err))
	}

	grpcServer.GracefulStop()

	logger.Info("tcgsim server stopped")
}
