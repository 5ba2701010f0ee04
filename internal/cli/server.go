package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"boardquiz-service/internal/app"
	"boardquiz-service/internal/config"
	"boardquiz-service/internal/domain"
	"boardquiz-service/internal/infra/gemini"
	"boardquiz-service/internal/infra/memory"
	pgstore "boardquiz-service/internal/infra/postgres"
	redisstore "boardquiz-service/internal/infra/redis"
	"boardquiz-service/internal/infra/secret"
	transport "boardquiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the board game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer func() { _ = log.Sync() }()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	service, cleanup, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	server := &http.Server{
		Addr: ":" + finalPort,
		Handler: transport.NewRouter(transport.RouterConfig{
			Service:     service,
			Logger:      log,
			CORSOrigins: cfg.Server.CORSOrigins,
		}),
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting board game service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildService wires stores and the completer from config. Without Redis and Postgres
// everything lives in memory.
func buildService(ctx context.Context, cfg config.Config, log *zap.Logger) (*app.GameService, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = redisClient.Close() })
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)

	var backing memory.DeckStore = memory.NewStaticDeckStore(map[string]domain.Deck{})
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, pool.Close)
		backing = pgstore.NewDeckStore(pool)
	}

	deckTTL := config.TTLDuration(cfg.DeckCache.TTL, 10*time.Minute)
	var library app.DeckLibrary
	var sessions app.SessionRepository
	var state app.StateStore
	if redisClient != nil {
		library = redisstore.NewDeckRepository(redisClient, backing, deckTTL)
		sessions = redisstore.NewSessionStore(redisClient, redisTTL)
		state = redisstore.NewStateStore(redisClient, secret.NewSealer(cfg.Secret.Passphrase), redisTTL)
	} else {
		library = memory.NewDeckRepository(backing, deckTTL)
		sessions = memory.NewSessionStore()
		state = memory.NewStateStore()
	}
	if redisClient != nil && cfg.Secret.Passphrase == "" {
		log.Warn("secret passphrase not set, API keys are stored in plain text")
	}

	service := app.NewGameService(app.Options{
		Sessions:   sessions,
		State:      state,
		Library:    library,
		Completers: gemini.Source(log, geminiTimeout(cfg)),
		Logger:     log,
		Session:    sessionConfig(cfg),
		Generator:  generatorConfig(cfg),
		DefaultKey: cfg.Gemini.APIKey,
	})
	return service, cleanup, nil
}
