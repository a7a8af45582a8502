package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	slacklib "github.com/slack-go/slack"

	"github.com/gosuda/daksha/internal/agent"
	"github.com/gosuda/daksha/internal/agent/backends"
	"github.com/gosuda/daksha/internal/archive"
	"github.com/gosuda/daksha/internal/browser"
	"github.com/gosuda/daksha/internal/config"
	"github.com/gosuda/daksha/internal/domain"
	"github.com/gosuda/daksha/internal/events"
	"github.com/gosuda/daksha/internal/metrics"
	"github.com/gosuda/daksha/internal/notify"
	"github.com/gosuda/daksha/internal/search"
	"github.com/gosuda/daksha/internal/server"
	"github.com/gosuda/daksha/internal/store/postgres"
	redisstore "github.com/gosuda/daksha/internal/store/redis"
	"github.com/gosuda/daksha/internal/store/sqlite"
	"github.com/gosuda/daksha/internal/tokenizer"
	"github.com/gosuda/daksha/web"
)

const shutdownTimeout = 10 * time.Second

// appStore hands the API the event-publishing views of the repositories.
type appStore struct {
	conversations domain.ConversationRepository
	states        domain.StateRepository
}

func (s appStore) Conversations() domain.ConversationRepository { return s.conversations }
func (s appStore) States() domain.StateRepository               { return s.states }

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("DAKSHA_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := cfg.Storage.EnsureDirs(); err != nil {
		return err
	}

	// Logs go to stdout and to the file the /logs endpoint tails.
	logFile, err := os.OpenFile(cfg.Storage.LogFile(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	var console io.Writer = os.Stdout
	if os.Getenv("DAKSHA_LOG_FORMAT") == "text" {
		console = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, logFile)).With().Timestamp().Logger()

	// Open the log store.
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Event broker: Redis when configured, in-process otherwise.
	broker, closeBroker, err := openBroker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBroker()

	m := metrics.New()

	// Repository views that publish change events for WebSocket clients.
	states := events.NewStateStream(store.States(), broker, m)
	messages := events.NewMessageStream(store.Conversations(), broker, m)

	tokens := tokenizer.New()

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Slack.BotToken != "" {
		notifier = notify.NewSlack(slacklib.New(cfg.Slack.BotToken), cfg.Slack.Channel)
		log.Info().Str("channel", cfg.Slack.Channel).Msg("slack notifications enabled")
	}

	var searcher search.Client
	if cfg.Search.BingKey != "" {
		searcher = search.NewBingClient(cfg.Search.BingKey, cfg.Search.BingEndpoint)
	}

	// Browser pool. Playwright needs its driver installed; runs that never
	// touch the web work fine without it.
	var pool *browser.Pool
	launcher, err := browser.Launch(cfg.Agent.Headless)
	if err != nil {
		log.Warn().Err(err).Msg("browser unavailable, runs proceed without one")
	} else {
		defer launcher.Close()
		pool = browser.NewPool(launcher.Factory(), cfg.Agent.BrowserPool, browser.Config{
			ScreenshotsDir: cfg.Storage.ScreenshotsDir,
			PDFsDir:        cfg.Storage.PDFsDir,
			States:         states,
			Metrics:        m,
		})
		defer pool.Close()
	}

	toolkit := agent.Toolkit{
		States:   states,
		Messages: messages,
		Browser:  pool,
		Search:   searcher,
		Tokens:   tokens,
	}

	// Agent registry and model catalog.
	registry := agent.NewRegistry()
	registry.Register("openai", backends.OpenAIFactory(cfg.Agent.OpenAIKey, cfg.Agent.OpenAIBaseURL))

	catalog, err := agent.LoadCatalog(cfg.Agent.CatalogPath)
	if err != nil {
		return err
	}

	coordinator := agent.NewCoordinator(registry, catalog, toolkit, broker, m, notifier, cfg.Agent.RunTimeout)

	archiver := archive.New(cfg.Storage.ProjectsDir, cfg.Storage.PDFsDir, messages)

	// Prepare embedded dashboard assets (strip "build/" prefix from fs paths).
	webAssets, err := fs.Sub(web.Assets, "build")
	if err != nil {
		return fmt.Errorf("web assets: %w", err)
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg,
		appStore{conversations: messages, states: states},
		broker, coordinator, archiver, catalog, tokens, m, webAssets)

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	coordinator.Shutdown(shutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}

// dataStore is the repository accessor both storage drivers satisfy.
type dataStore interface {
	Conversations() domain.ConversationRepository
	States() domain.StateRepository
}

func openStore(ctx context.Context, cfg *config.Config) (dataStore, func(), error) {
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
			return nil, nil, fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
		}
		store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		store, err := sqlite.New(cfg.Database.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
}

func openBroker(ctx context.Context, cfg *config.Config) (events.Broker, func(), error) {
	if cfg.Redis.Addr == "" {
		broker := events.NewMemoryBroker()
		return broker, func() { _ = broker.Close() }, nil
	}
	pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	return pubsub, func() { _ = pubsub.Close() }, nil
}
