package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xiaot623/gogo/workdesk/internal/adapter/llm"
	"github.com/xiaot623/gogo/workdesk/internal/config"
	"github.com/xiaot623/gogo/workdesk/internal/hub"
	"github.com/xiaot623/gogo/workdesk/internal/logging"
	"github.com/xiaot623/gogo/workdesk/internal/metrics"
	"github.com/xiaot623/gogo/workdesk/internal/policy"
	"github.com/xiaot623/gogo/workdesk/internal/records"
	"github.com/xiaot623/gogo/workdesk/internal/repository"
	"github.com/xiaot623/gogo/workdesk/internal/service"
	"github.com/xiaot623/gogo/workdesk/internal/session"
	"github.com/xiaot623/gogo/workdesk/internal/stream"
	"github.com/xiaot623/gogo/workdesk/internal/suggest"
	"github.com/xiaot623/gogo/workdesk/internal/tools"
	server "github.com/xiaot623/gogo/workdesk/internal/transport/http"
	"github.com/xiaot623/gogo/workdesk/internal/transport/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	logger.Info().
		Int("http_port", cfg.HTTPPort).
		Str("database", cfg.DatabaseURL).
		Str("llm_provider", cfg.LLMProvider).
		Str("llm_model", cfg.LLMModel).
		Msg("starting workdesk")

	// Initialize store
	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer db.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	provider := llm.NewProvider(cfg, logging.Component(logger, "llm"))

	// Initialize policy engine
	policyEngine, err := policy.NewDefaultEngine(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize policy engine")
	}

	// Records and the tools that write to them
	reminders := records.NewReminderBook(db)
	meetings := records.NewMeetingBook(db)
	predictions := records.NewPredictionBook(db, provider, cfg.ChatTemperature, logging.Component(logger, "predictions"))
	registry := tools.NewBuiltinRegistry(records.NewPlanner(reminders, meetings))

	h := hub.NewHub(logging.Component(logger, "hub"))
	go h.Run(ctx)

	svc, err := service.New(service.Options{
		Store: db,
		Sessions: session.NewManager(session.Options{
			Provider:    provider,
			Tools:       registry,
			Authorizer:  policyEngine,
			Recorder:    db,
			Metrics:     m,
			Logger:      logging.Component(logger, "session"),
			Temperature: cfg.ChatTemperature,
		}),
		Reducer:            stream.NewReducer(registry, policyEngine, m, logging.Component(logger, "stream")),
		Suggester:          suggest.NewGenerator(provider, cfg.SuggestionTemperature, cfg.SuggestionTimeout, m, logging.Component(logger, "suggest")),
		Publisher:          h,
		Metrics:            m,
		Logger:             logging.Component(logger, "service"),
		MaxWorkspaces:      cfg.MaxWorkspaces,
		MaxAttachmentBytes: cfg.MaxAttachmentBytes,
		TurnTimeout:        cfg.TurnTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize service")
	}

	e := server.NewServer(server.Deps{
		Service:     svc,
		Reminders:   reminders,
		Meetings:    meetings,
		Predictions: predictions,
		Hub:         h,
		WS: ws.Config{
			ReadTimeout:    cfg.WSReadTimeout,
			WriteTimeout:   cfg.WSWriteTimeout,
			PingInterval:   cfg.WSPingInterval,
			MaxMessageSize: cfg.WSMaxMessageSize,
		},
		Gatherer: prometheus.DefaultGatherer,
		Logger:   logging.Component(logger, "http"),
	})

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	logger.Info().Int("port", cfg.HTTPPort).Msg("workdesk started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down workdesk")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server gracefully")
	}
	stop()
	svc.Close()

	logger.Info().Msg("workdesk stopped")
}
