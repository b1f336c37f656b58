package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"parley/internal/api"
	"parley/internal/auth"
	"parley/internal/chat"
	"parley/internal/llm"
	"parley/internal/observability"
)

func main() {
	logCfg := observability.ConfigFromEnv()
	logger := observability.NewLogger(logCfg)

	configPath := flag.String("config", "", "path to YAML config file")
	addrFlag := flag.String("addr", "", "listen address (host:port), overrides config")
	migrate := flag.String("migrate", "", "run migrations: 'up' to apply, 'status' to show status")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}
	if *addrFlag != "" {
		cfg.Addr = *addrFlag
	}

	sentryEnabled := false
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			Environment:      envOr("SENTRY_ENVIRONMENT", "production"),
			Release:          envOr("APP_VERSION", "dev"),
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			logger.Warn("sentry initialization failed", "error", err)
		} else {
			logger.Info("sentry initialized",
				"environment", envOr("SENTRY_ENVIRONMENT", "production"),
				"release", envOr("APP_VERSION", "dev"),
			)
			sentryEnabled = true
		}
	}

	if *migrate != "" {
		runMigrationsCLI(logger, cfg, *migrate)
		return
	}

	store := selectStore(logger, cfg)
	userStore := selectUserStore(logger, cfg)
	sessionStore := selectSessionStore(logger, cfg)

	// Bootstrap admin user from environment variables (idempotent).
	if adminUser := os.Getenv("PARLEY_ADMIN_USERNAME"); adminUser != "" {
		adminPass := os.Getenv("PARLEY_ADMIN_PASSWORD")
		if adminPass == "" {
			logger.Error("PARLEY_ADMIN_USERNAME set but PARLEY_ADMIN_PASSWORD is empty")
		} else {
			bootstrapAdmin(logger, userStore, adminUser, adminPass)
		}
	}

	llmCfg := llm.ConfigFromEnv()
	if cfg.LLM.APIKey != "" {
		llmCfg.APIKey = cfg.LLM.APIKey
	}
	if cfg.LLM.Model != "" {
		llmCfg.Model = cfg.LLM.Model
	}
	if cfg.LLM.Endpoint != "" {
		llmCfg.Endpoint = cfg.LLM.Endpoint
	}
	if cfg.LLM.MaxTokens > 0 {
		llmCfg.MaxTokens = cfg.LLM.MaxTokens
	}
	if cfg.LLM.Temperature > 0 {
		llmCfg.Temperature = cfg.LLM.Temperature
	}
	provider := llm.NewOpenAIProvider(llmCfg)
	if provider.Available() {
		logger.Info("generation backend configured", "provider", provider.Name(), "model", llmCfg.Model)
	} else {
		logger.Warn("generation backend not configured (set PARLEY_LLM_API_KEY)")
	}

	convs := chat.NewConversationService(store, logger)
	coord := chat.NewGenerationCoordinator(provider, logger)
	orch := chat.NewMessageOrchestrator(convs, store, coord, cfg.SystemPrompt, logger)

	mux := http.NewServeMux()
	srv := api.NewServer(mux, store, convs, orch, userStore, sessionStore, logger)
	loginRL := api.LoginRateLimitMiddleware(api.DefaultLoginRateLimitConfig(), logger)
	srv.RegisterRoutes(loginRL)

	// Background session cleanup.
	go func() {
		ticker := time.NewTicker(cfg.SessionCleanup)
		defer ticker.Stop()
		for range ticker.C {
			n, err := sessionStore.Cleanup(context.Background())
			if err != nil {
				logger.Warn("session cleanup error", "error", err)
			} else if n > 0 {
				logger.Info("cleaned up expired sessions", "count", n)
			}
		}
	}()

	handler := api.ApplyMiddlewares(
		mux,
		api.RequestIDMiddleware(),
		api.LoggingMiddleware(logger),
		api.RateLimitMiddleware(api.DefaultRateLimitConfig(), logger),
	)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second, // generations can take a while
		IdleTimeout:       60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("parley listening", "addr", cfg.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	}

	logger.Info("shutting down server", "timeout", cfg.ShutdownTimeout.String())
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	} else {
		logger.Info("server stopped gracefully")
	}

	if err := store.Close(); err != nil {
		logger.Error("error closing store", "error", err)
	}

	if sentryEnabled {
		sentry.Flush(2 * time.Second)
	}

	logger.Info("shutdown complete")
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// bootstrapAdmin creates the initial admin user if it doesn't already exist.
func bootstrapAdmin(logger observability.Logger, userStore auth.UserStore, username, password string) {
	existing, _ := userStore.GetByUsername(context.Background(), username)
	if existing != nil {
		logger.Info("bootstrap admin already exists", "username", username)
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		logger.Error("failed to hash admin password", "error", err)
		return
	}

	now := time.Now().UTC()
	user := &auth.User{
		ID:           uuid.New().String(),
		Username:     username,
		DisplayName:  username,
		Role:         auth.RoleAdmin,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := userStore.Create(context.Background(), user); err != nil {
		logger.Error("failed to create bootstrap admin", "error", err)
		return
	}
	logger.Info("bootstrap admin user created", "username", username)
}

// runMigrationsCLI executes migration commands.
func runMigrationsCLI(logger observability.Logger, cfg *Config, cmd string) {
	switch cmd {
	case "up":
		st := selectStore(logger, cfg)
		_ = st.Close()
		runMigrationsCLI(logger, cfg, "status")
	case "status":
		status := migrationStatus(cfg)
		if status == "" {
			status = "migrations status not available in this build"
		}
		logger.Info("migrations status", "status", status)
	default:
		logger.Warn("unknown migrate command", "command", cmd)
	}
}
