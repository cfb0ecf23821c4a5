package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/astrikos/mapstream/internal/catalog"
	"github.com/astrikos/mapstream/internal/config"
	"github.com/astrikos/mapstream/internal/events"
	"github.com/astrikos/mapstream/internal/gateway"
	"github.com/astrikos/mapstream/internal/httpapi"
	"github.com/astrikos/mapstream/internal/metrics"
	"github.com/astrikos/mapstream/internal/redisstore"
	"github.com/astrikos/mapstream/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	rootCmd := &cobra.Command{
		Use:   "mapstreamd",
		Short: "Real-time map project and data source server",
		Long:  "Serves the websocket gateway for map projects, data sources and per-session polling subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	return rootCmd.Execute()
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := setupLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	store, err := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
	}
	defer store.Close()
	logger.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))

	metrics.Register(prometheus.DefaultRegisterer)

	ctx, cancel := setupSignalHandler()
	defer cancel()

	cat := catalog.New(logger)
	cat.LoadAll(ctx, store)

	broker := events.NewBroker()
	svc := service.NewMapService(store, cat, broker, logger)
	ws := gateway.NewHandler(svc, broker, cfg.PollInterval, cfg.FetchTimeout, logger)
	srv := httpapi.NewServer(cfg.HTTPAddr, store, ws)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.Run(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	return srv.Shutdown()
}

func setupLogger(level string) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	config.Level = zap.NewAtomicLevelAt(parsed)

	return config.Build()
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
	}()

	return ctx, cancel
}
