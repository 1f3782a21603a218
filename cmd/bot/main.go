package main

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/RikaiDev/mimamori/internal/analyzer"
	"github.com/RikaiDev/mimamori/internal/bot"
	"github.com/RikaiDev/mimamori/internal/conversation"
	sig "github.com/RikaiDev/mimamori/internal/signal"
	"github.com/RikaiDev/mimamori/internal/storage"
	"github.com/RikaiDev/mimamori/internal/trigger"
	"github.com/RikaiDev/mimamori/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Core components
	engine := trigger.NewEngine(logger)
	builder := conversation.NewBuilder(store, cfg.Monitor.WindowHours, cfg.Monitor.MaxContextMessages, logger)
	aggregator := sig.NewAggregator(store, logger)
	az := analyzer.NewOpenAIAnalyzer(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.MaxTokens,
		cfg.OpenAI.Temperature,
		logger,
	)

	// Initialize bot
	b, err := bot.New(cfg.Discord.Token, store, engine, builder, az, aggregator, cfg.Monitor, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	if err := b.Start(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	if err := b.Stop(); err != nil {
		logger.Error("Failed to stop bot cleanly", zap.Error(err))
	}
}
