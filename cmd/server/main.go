package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cardroom/uno-server-go/internal/config"
	"github.com/cardroom/uno-server-go/internal/game"
	"github.com/cardroom/uno-server-go/internal/replication"
	"github.com/cardroom/uno-server-go/internal/room"
	"github.com/cardroom/uno-server-go/internal/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting card room server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var store replication.Store
	if cfg.Database.URL != "" {
		pgStore, err := replication.NewPostgresStore(ctx, cfg.Database.URL, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pgStore.Close()
		store = pgStore
		logger.Info("using postgres document store")
	} else {
		store = replication.NewMemoryStore()
		logger.Info("using in-memory document store")
	}

	rooms := room.NewManager(store, room.Config{
		BotDelay:     cfg.Game.BotDelay,
		DeclareGrace: cfg.Game.DeclareGrace,
		DefaultRules: game.HouseRules{
			SwapOnSeven:  cfg.Game.SwapOnSeven,
			RotateOnZero: cfg.Game.RotateOnZero,
		},
		Replication: replication.Options{
			MaxRetries:   cfg.Replication.MaxRetries,
			RetryBackoff: cfg.Replication.RetryBackoff,
		},
	}, logger, rand.New(rand.NewSource(time.Now().UnixNano())))
	logger.Info("room manager initialized",
		zap.Duration("bot_delay", cfg.Game.BotDelay),
		zap.Duration("declare_grace", cfg.Game.DeclareGrace),
	)

	gateway := server.NewGateway(cfg.Server, rooms, logger)

	go func() {
		if serveErr := gateway.Run(); serveErr != nil {
			logger.Error("http server error", zap.Error(serveErr))
		}
	}()

	logger.Info("card room server initialized",
		zap.String("address", cfg.Server.Address),
	)

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := gateway.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown failed", zap.Error(err))
	}
	rooms.Close()

	logger.Info("card room server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
