package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"assistant/internal/app"
	"assistant/internal/config"
	internalhttp "assistant/internal/http"
	"assistant/internal/logging"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/shop-assistant/config.yaml if not provided)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, cfgPath, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}
	slog.SetDefault(logger)
	logger.Info("starting assistant",
		slog.String("config", cfgPath),
		slog.String("addr", cfg.Server.Addr),
		slog.String("generator", cfg.Generator.Type))

	a, err := app.New(cfg, logger)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hubDone := make(chan struct{})
	go func() {
		a.Hub.Run(ctx)
		close(hubDone)
	}()

	stopWatch, err := a.WatchCorpus(ctx)
	if err != nil {
		logger.Warn("corpus watcher disabled", slog.Any("error", err))
		stopWatch = func() {}
	}

	server := internalhttp.NewServer(internalhttp.Deps{
		Chat:      a.Orchestrator,
		Knowledge: a.Knowledge,
		Sessions:  a.Sessions,
		Hub:       a.Hub,
		Summary:   a.Summary,
		TopK:      cfg.Knowledge.TopK,
		WS: internalhttp.WSConfig{
			PingInterval:    config.Seconds(cfg.Server.WSPingSecs),
			ReadTimeout:     config.Seconds(cfg.Server.WSReadTimeoutSecs),
			WriteTimeout:    config.Seconds(cfg.Server.WSWriteTimeoutSecs),
			MaxMessageBytes: cfg.Server.MaxMessageBytes,
		},
		Logger: logger,
	})

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			logger.Error("server failed", slog.Any("error", err))
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.Server.ShutdownTimeoutSecs))
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", slog.Any("error", err))
	}
	<-hubDone
	stopWatch()
	a.Close()
	logger.Info("assistant stopped")
}
