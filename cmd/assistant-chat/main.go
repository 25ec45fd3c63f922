package main

import (
	"flag"
	"io"
	"log"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"assistant/internal/app"
	"assistant/internal/config"
	internalhttp "assistant/internal/http"
	"assistant/internal/logging"
	"assistant/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, sessionID, logPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/shop-assistant/config.yaml if not provided)")
	flag.StringVar(&sessionID, "session", "", "Session id to resume (a new one is generated if empty)")
	flag.StringVar(&logPath, "log", "", "Write logs to this file (discarded if empty)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// The console owns the terminal, so the watcher has nowhere to warn.
	cfg.Knowledge.Watch = false

	var out io.Writer = io.Discard
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("failed to open log file: %v", err)
		}
		defer f.Close()
		out = f
	}
	logger, err := logging.New(out, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}
	slog.SetDefault(logger)

	a, err := app.New(cfg, logger)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer a.Close()

	if sessionID == "" {
		sessionID = internalhttp.NewSessionID()
	}
	m := tui.New(a.Orchestrator, sessionID, a.Summary)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
