package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ollama "github.com/jmorganca/ollama/api"
	"github.com/kiraleos/assignment-helper/internal/api"
	"github.com/kiraleos/assignment-helper/internal/config"
	"github.com/kiraleos/assignment-helper/internal/core"
	"github.com/kiraleos/assignment-helper/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadConfig(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		l, err := newLogger(config.AppConfig.LogLevel)
		if err != nil {
			return err
		}
		_ = logger.Sync()
		logger = l
		return runServer(cmd.Context(), config.AppConfig)
	},
}

func runServer(ctx context.Context, cfg config.Config) error {
	historyStore, err := openHistoryStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer historyStore.Close()

	chatLLM, queryLLM, closeLLM, err := newCompletionProviders(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLLM()

	policy, err := core.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return fmt.Errorf("failed to load prompt policy: %w", err)
	}

	var videos core.VideoSearcher
	if cfg.YouTubeAPIKey != "" {
		videoService, err := core.NewVideoService(ctx, logger, option.WithAPIKey(cfg.YouTubeAPIKey))
		if err != nil {
			return fmt.Errorf("failed to initialize video search: %w", err)
		}
		videos = videoService
	} else {
		logger.Warn("YOUTUBE_API_KEY not set, video suggestions disabled")
	}

	assignments := core.NewAssignmentService(cfg.AssignmentAPIURL, cfg.ExternalCallTimeout, logger)
	chatService := core.NewChatService(historyStore, assignments, chatLLM, videos, policy, logger,
		core.WithQueryProvider(queryLLM),
		core.WithHistoryWindow(cfg.ChatHistoryWindow),
		core.WithCallTimeout(cfg.ExternalCallTimeout),
	)

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, chat routes are unauthenticated")
	}
	apiHandler := api.NewAPIHandler(chatService, assignments, cfg.JWTSecret, logger)
	router := api.NewRouter(apiHandler, logger)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ExternalCallTimeout*3 + 15*time.Second, // up to three sequential external calls
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("addr", serverAddr),
			zap.String("llm_provider", cfg.LLMProvider),
			zap.String("history_backend", cfg.HistoryBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
		return nil
	case <-quit:
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited gracefully")
	return nil
}

func openHistoryStore(ctx context.Context, cfg config.Config) (store.HistoryStore, error) {
	switch cfg.HistoryBackend {
	case config.BackendMongo:
		connectCtx, cancel := context.WithTimeout(ctx, cfg.ExternalCallTimeout)
		defer cancel()
		s, err := store.NewMongoStore(connectCtx, cfg.MongoURI, cfg.DatabaseName, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mongo store: %w", err)
		}
		return s, nil
	default:
		s, err := store.NewSQLiteStore(cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return s, nil
	}
}

// newCompletionProviders returns the answer provider, the search-query
// provider and a cleanup func.
func newCompletionProviders(ctx context.Context, cfg config.Config) (core.CompletionProvider, core.CompletionProvider, func(), error) {
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		client, err := ollama.ClientFromEnvironment()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		svc := core.NewOllamaService(client, cfg.OllamaModel, logger)
		return svc, svc, func() {}, nil
	default:
		llm, err := core.NewLLMService(ctx, cfg.GeminiAPIKey, cfg.ChatModel, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return llm, llm.WithModel(cfg.QueryModel), llm.Close, nil
	}
}
