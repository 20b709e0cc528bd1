package main

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"
	"github.com/krshsl/skillcards/backend/assessment"
	"github.com/krshsl/skillcards/backend/cards"
	"github.com/krshsl/skillcards/backend/evaluator"
	"github.com/krshsl/skillcards/backend/llm"
	"github.com/krshsl/skillcards/backend/locks"
	"github.com/krshsl/skillcards/backend/planner"
	"github.com/krshsl/skillcards/backend/repository"
	"github.com/krshsl/skillcards/backend/services"
	ws "github.com/krshsl/skillcards/backend/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (overrides SERVER_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	config := services.LoadConfig()
	if servePort != "" {
		config.Server.Port = servePort
	}

	db, closeDB, err := repository.Open(ctx, databaseOptions(config))
	if err != nil {
		return err
	}
	defer closeDB()

	repo := repository.NewGORMRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	deps, err := buildDependencies(ctx, config, repo)
	if err != nil {
		return err
	}
	defer deps.close()

	hub := ws.NewHub()
	go hub.Run()

	service := assessment.NewService(repo, assessment.Options{
		Planner:                  deps.planner,
		Evaluator:                deps.evaluator,
		Cards:                    deps.cards,
		Locker:                   deps.locker,
		Publisher:                hub,
		DefaultQuestionsPerSkill: config.Planner.DefaultQuestionsPerSkill,
	})

	server := services.NewServer(config, db, service, hub, deps.capabilities)
	return server.Start(ctx)
}

func databaseOptions(config *services.Config) repository.DatabaseOptions {
	return repository.DatabaseOptions{
		URL:          config.Database.URL,
		LogLevel:     config.Database.LogLevel,
		MaxIdleConns: config.Database.MaxIdleConns,
		MaxOpenConns: config.Database.MaxOpenConns,
	}
}

type dependencies struct {
	planner      *planner.Planner
	evaluator    *evaluator.Evaluator
	cards        assessment.CardService
	locker       locks.Locker
	capabilities services.Capabilities
	closers      []func()
}

func (d *dependencies) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// buildDependencies resolves every optional collaborator once. A missing
// Gemini key leaves the workflow on templates and heuristic scoring.
func buildDependencies(ctx context.Context, config *services.Config, repo *repository.GORMRepository) (*dependencies, error) {
	deps := &dependencies{}

	var gemini *llm.GeminiService
	if config.AI.GeminiAPIKey != "" {
		prompts, err := llm.NewPromptManager()
		if err != nil {
			return nil, err
		}
		gemini, err = llm.NewGeminiService(ctx, llm.GeminiConfig{
			APIKey:     config.AI.GeminiAPIKey,
			TextModel:  config.AI.TextModel,
			ImageModel: config.AI.ImageModel,
			Timeout:    config.AI.Timeout,
		}, prompts)
		if err != nil {
			slog.Error("Failed to initialize Gemini service", "error", err)
			gemini = nil
		} else {
			slog.Info("Gemini service initialized", "text_model", config.AI.TextModel)
		}
	} else {
		slog.Warn("GEMINI_API_KEY not set, using template questions and heuristic scoring")
	}

	// Typed nils must not leak into the collaborator interfaces
	if gemini != nil {
		deps.planner = planner.NewPlanner(gemini, config.Planner.Concurrency)
		deps.evaluator = evaluator.New(gemini)
		deps.capabilities.QuestionGeneration = true
		deps.capabilities.Evaluation = true
	} else {
		deps.planner = planner.NewPlanner(nil, config.Planner.Concurrency)
		deps.evaluator = evaluator.New(nil)
	}

	locker, err := buildLocker(ctx, config.Locks, deps)
	if err != nil {
		deps.close()
		return nil, err
	}
	deps.locker = locker
	deps.capabilities.LockBackend = config.Locks.Backend

	if !config.Cards.Enabled {
		deps.capabilities.CardStore = "disabled"
		return deps, nil
	}

	store, err := buildCardStore(ctx, config.Cards, deps)
	if err != nil {
		deps.close()
		return nil, err
	}
	deps.capabilities.CardStore = config.Cards.Store

	var generator cards.ImageGenerator
	if gemini != nil {
		generator = gemini
		deps.capabilities.CardImages = true
	}
	deps.cards = cards.NewCoordinator(repo, generator, store, locker, config.Cards.Concurrency)
	return deps, nil
}

func buildLocker(ctx context.Context, config services.LockConfig, deps *dependencies) (locks.Locker, error) {
	switch config.Backend {
	case "", "memory":
		return locks.NewMemoryLocker(), nil
	case "redis":
		opts, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		deps.closers = append(deps.closers, func() { rdb.Close() })
		slog.Info("Connected to redis", "addr", opts.Addr)
		return locks.NewRedisLocker(rdb, config.TTL), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", config.Backend)
	}
}

func buildCardStore(ctx context.Context, config services.CardsConfig, deps *dependencies) (cards.ArtifactStore, error) {
	switch config.Store {
	case "", "local":
		return cards.NewLocalStore(config.Dir), nil
	case "gcs":
		if config.Bucket == "" {
			return nil, fmt.Errorf("GCS_BUCKET_NAME is required for the gcs card store")
		}
		client, err := storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		deps.closers = append(deps.closers, func() { client.Close() })
		slog.Info("Using GCS card store", "bucket", config.Bucket)
		return cards.NewGCSStore(client, config.Bucket), nil
	default:
		return nil, fmt.Errorf("unknown card store %q", config.Store)
	}
}
