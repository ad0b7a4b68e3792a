package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/kaiwa-bot/kaiwa/internal/agent"
	"github.com/kaiwa-bot/kaiwa/internal/config"
	"github.com/kaiwa-bot/kaiwa/internal/db"
	"github.com/kaiwa-bot/kaiwa/internal/dispatch"
	"github.com/kaiwa-bot/kaiwa/internal/embeddings"
	"github.com/kaiwa-bot/kaiwa/internal/handlers"
	"github.com/kaiwa-bot/kaiwa/internal/line"
	"github.com/kaiwa-bot/kaiwa/internal/logger"
	"github.com/kaiwa-bot/kaiwa/internal/memory"
	"github.com/kaiwa-bot/kaiwa/internal/server"
	"github.com/kaiwa-bot/kaiwa/internal/session"
	"github.com/kaiwa-bot/kaiwa/internal/transcript"
	"github.com/kaiwa-bot/kaiwa/internal/vision"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideSessionStore,
			provideSessionManager,
			provideTurnStore,
			provideTranscriptService,
			provideRetriever,
			provideOrchestrator,
			provideAnalyzer,
			provideLineClient,
			provideDispatcher,
			providePingHandler,
			provideAuthHandler,
			provideSessionsHandler,
			provideWebhookHandler,
			provideServer,
		),
		fx.Invoke(
			startSweeper,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideSessionStore(conn *pgxpool.Pool) *session.PostgresStore {
	return session.NewPostgresStore(conn)
}

func provideSessionManager(log *slog.Logger, cfg config.Config, store *session.PostgresStore) *session.Manager {
	return session.NewManager(log, store, cfg.Memory.SessionTTL())
}

func provideTurnStore(conn *pgxpool.Pool) *transcript.PostgresStore {
	return transcript.NewPostgresStore(conn)
}

func provideTranscriptService(log *slog.Logger, store *transcript.PostgresStore) *transcript.Service {
	return transcript.NewService(log, store)
}

// provideRetriever assembles short-term plus optional long-term retrieval.
// With Qdrant disabled the retriever runs on the turn log alone.
func provideRetriever(log *slog.Logger, cfg config.Config, turns *transcript.Service) (*memory.Retriever, error) {
	var facts memory.FactStore
	var embedder embeddings.Embedder
	if cfg.Qdrant.Enabled {
		store, err := memory.NewQdrantStore(log, cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.APIKey, cfg.Qdrant.UseTLS, cfg.Qdrant.Collection)
		if err != nil {
			return nil, fmt.Errorf("qdrant init: %w", err)
		}
		facts = store
		embedder = embeddings.NewHTTPEmbedder(
			cfg.Embeddings.BaseURL,
			cfg.Embeddings.APIKey,
			cfg.Embeddings.Model,
			cfg.Embeddings.Dimensions,
			10*time.Second,
		)
	}
	return memory.NewRetriever(log, turns, facts, embedder, cfg.Memory.Namespaces, cfg.Memory.ShortTermLimit, cfg.Memory.FactTopK), nil
}

func provideOrchestrator(log *slog.Logger, cfg config.Config) *agent.Orchestrator {
	timeout := time.Duration(cfg.Agent.TimeoutSeconds) * time.Second
	return agent.NewOrchestrator(log, cfg.Agent.BaseURL, timeout)
}

func provideAnalyzer(log *slog.Logger, cfg config.Config) *vision.Analyzer {
	return vision.NewAnalyzer(log, cfg.Vision.BaseURL, cfg.Vision.APIKey, cfg.Vision.Model, cfg.Vision.MaxTokens, 60*time.Second)
}

func provideLineClient(log *slog.Logger, cfg config.Config) *line.Client {
	return line.NewClient(log, cfg.Line.APIBase, cfg.Line.BlobBase, cfg.Line.AccessToken, 30*time.Second)
}

func provideDispatcher(log *slog.Logger, cfg config.Config, sessions *session.Manager, retriever *memory.Retriever, orchestrator *agent.Orchestrator, turns *transcript.Service, client *line.Client, analyzer *vision.Analyzer) *dispatch.Dispatcher {
	var window time.Duration
	if cfg.Dedup.Enabled {
		window = cfg.Dedup.Window()
	}
	return dispatch.NewDispatcher(log, sessions, retriever, orchestrator, turns, client, analyzer, window)
}

func providePingHandler(log *slog.Logger) *handlers.PingHandler {
	return handlers.NewPingHandler(log)
}

func provideAuthHandler(log *slog.Logger, cfg config.Config) (*handlers.AuthHandler, error) {
	expiresIn, err := time.ParseDuration(cfg.Auth.JWTExpiresIn)
	if err != nil {
		return nil, fmt.Errorf("parse jwt expiry: %w", err)
	}
	return handlers.NewAuthHandler(log, cfg.Admin.Username, cfg.Admin.PasswordHash, cfg.Auth.JWTSecret, expiresIn), nil
}

func provideSessionsHandler(log *slog.Logger, sessions *session.PostgresStore, turns *transcript.PostgresStore) *handlers.SessionsHandler {
	return handlers.NewSessionsHandler(log, sessions, turns)
}

func provideWebhookHandler(log *slog.Logger, cfg config.Config, dispatcher *dispatch.Dispatcher) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, dispatcher, cfg.Line.ChannelSecret)
}

func provideServer(log *slog.Logger, cfg config.Config, ping *handlers.PingHandler, authHandler *handlers.AuthHandler, sessionsHandler *handlers.SessionsHandler, webhookHandler *handlers.WebhookHandler) *server.Server {
	return server.NewServer(log, cfg.Server.Addr, cfg.Auth.JWTSecret, ping, authHandler, sessionsHandler, webhookHandler)
}

func startSweeper(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, store *session.PostgresStore) {
	sweeper := session.NewSweeper(log, store, cfg.Memory.SweepSchedule)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return sweeper.Start() },
		OnStop:  func(ctx context.Context) error { return sweeper.Stop(ctx) },
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server exited", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
