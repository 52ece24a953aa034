package app

import (
	"context"
	"fmt"

	"github.com/upb/voice-agent/config"
	"github.com/upb/voice-agent/handlers"
	"github.com/upb/voice-agent/internal/observability"
	"github.com/upb/voice-agent/middleware"
	"github.com/upb/voice-agent/repositories"
	"github.com/upb/voice-agent/repositories/postgres"
	"github.com/upb/voice-agent/repositories/supabase"
	"github.com/upb/voice-agent/services/auth"
	"github.com/upb/voice-agent/services/interactions"
	"github.com/upb/voice-agent/services/pipeline"
	"github.com/upb/voice-agent/services/providers"
	"github.com/upb/voice-agent/services/providers/azure"
	"github.com/upb/voice-agent/services/speech"
	"github.com/upb/voice-agent/services/summarizer"
	"github.com/upb/voice-agent/services/translator"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Logger  *zap.Logger
	Metrics observability.Metrics

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Executor     repositories.QueryExecutor
	Identities   repositories.IdentityStore
	Interactions repositories.InteractionRepository

	// Azure OpenAI (chat, transcription and speech)
	Provider *azure.Adapter

	// Services
	Authorizer *auth.Authorizer
	Pipeline   *pipeline.Pipeline

	// HTTP
	AuthMiddleware *middleware.AuthMiddleware
	HealthHandler  *handlers.HealthHandler
	QueryHandler   *handlers.QueryHandler
}

// NewDependencies opens the databases and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := factory.InitInteractionSchema(ctx); err != nil {
		_ = factory.Close()
		return nil, fmt.Errorf("failed to initialize interaction schema: %w", err)
	}

	deps := newDependencies(cfg, factory.GetDB(), factory.QueryExecutor(), factory.InteractionRepository(), logger)
	deps.RepoFactory = factory

	logger.Info("all dependencies initialized successfully",
		zap.String("interaction_store", cfg.Pipeline.InteractionStore))
	return deps, nil
}

// newDependencies wires everything above the database. A nil interactionRepo
// falls back to the Supabase log table.
func newDependencies(
	cfg *config.Config,
	db *postgres.DB,
	executor repositories.QueryExecutor,
	interactionRepo repositories.InteractionRepository,
	logger *zap.Logger,
) *Dependencies {
	deps := &Dependencies{
		Config:   cfg,
		DB:       db,
		Logger:   logger,
		Executor: executor,
		Metrics:  observability.NopMetrics{},
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = observability.NewMetrics()
	}

	deps.initRepositories(interactionRepo)
	deps.initProvider()
	deps.initServices()
	deps.initHTTP()

	return deps
}

// initRepositories wires the identity store and the interaction log
func (d *Dependencies) initRepositories(interactionRepo repositories.InteractionRepository) {
	client := supabase.NewClient(d.Config.Supabase, d.Logger)
	d.Identities = supabase.NewProfileRepository(client, d.Config.Supabase.ProfilesTable)

	d.Interactions = interactionRepo
	if d.Interactions == nil {
		d.Interactions = supabase.NewInteractionRepository(client, d.Config.Supabase.LogsTable)
	}

	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initProvider() {
	cfg := d.Config.AzureOpenAI
	d.Provider = azure.NewAdapter(providers.ProviderConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.Endpoint,
		APIVersion: cfg.APIVersion,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	}, azure.Deployments{
		Chat:          cfg.ChatDeployment,
		Transcription: cfg.WhisperDeployment,
		Speech:        cfg.TTSDeployment,
	}, d.Logger)

	d.Logger.Info("azure openai provider configured",
		zap.String("chat_deployment", cfg.ChatDeployment),
		zap.String("whisper_deployment", cfg.WhisperDeployment),
		zap.String("tts_deployment", cfg.TTSDeployment))
}

func (d *Dependencies) initServices() {
	pc := d.Config.Pipeline

	d.Authorizer = auth.NewAuthorizer(d.Config.Auth.JWTSecret, d.Config.Auth.AdminRole, d.Identities, pc.AuthTimeout, d.Logger)

	d.Pipeline = pipeline.New(
		speech.NewTranscriber(d.Provider, pc.TempDir, d.Logger),
		translator.NewTranslator(d.Provider, d.Executor, pc.MaxAgentSteps, d.Logger),
		summarizer.NewSummarizer(d.Provider, d.Logger),
		speech.NewSpeaker(d.Provider, d.Config.AzureOpenAI.TTSVoice, d.Logger),
		interactions.NewLogger(d.Interactions, pc.LogTimeout, d.Metrics, d.Logger),
		pipeline.Options{
			Timeouts: pipeline.Timeouts{
				Transcription: pc.TranscriptionTimeout,
				Translation:   pc.TranslationTimeout,
				Summarization: pc.SummarizationTimeout,
				Synthesis:     pc.SynthesisTimeout,
			},
			Schema:               translator.DefaultSchema(),
			LogVoiceInteractions: pc.LogVoiceInteractions,
			LogTextInteractions:  pc.LogTextInteractions,
		},
		d.Metrics,
		d.Logger,
	)
}

func (d *Dependencies) initHTTP() {
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Authorizer, d.Logger)
	d.QueryHandler = handlers.NewQueryHandler(d.Pipeline, d.Config.Server.MaxUploadBytes, d.Logger)

	if d.DB != nil {
		d.HealthHandler = handlers.NewHealthHandler(d.DB.DB, d.Config, d.Logger)
	} else {
		d.HealthHandler = handlers.NewHealthHandler(nil, d.Config, d.Logger)
	}
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Close database connection(s)
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
