package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// RequiredVariables lists the environment variables the service refuses to start without.
var RequiredVariables = []string{
	"SUPABASE_URL",
	"SUPABASE_SERVICE_ROLE_KEY",
	"AZURE_OPENAI_API_KEY",
	"AZURE_OPENAI_ENDPOINT",
	"AZURE_OPENAI_CHAT_DEPLOYMENT",
	"AZURE_OPENAI_WHISPER_DEPLOYMENT",
	"AZURE_OPENAI_TTS_DEPLOYMENT",
	"DATABASE_URL",
	"JWT_SECRET",
}

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	LogDatabase   *DatabaseConfig // Optional: writable DB for interaction logs when INTERACTION_STORE=postgres
	Supabase      SupabaseConfig
	AzureOpenAI   AzureOpenAIConfig
	Auth          AuthConfig
	Pipeline      PipelineConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host               string
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	MaxUploadBytes     int64
	CORSAllowedOrigins []string
}

// DatabaseConfig holds configuration for the read-only query database.
// Driver selects the database/sql driver: "postgres" (lib/pq) or "pgx".
type DatabaseConfig struct {
	ConnectionString string
	Driver           string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// SupabaseConfig holds the identity store and interaction log endpoint
type SupabaseConfig struct {
	URL            string
	ServiceRoleKey string
	ProfilesTable  string
	LogsTable      string
	Timeout        time.Duration
}

// AzureOpenAIConfig holds Azure OpenAI deployment configuration
type AzureOpenAIConfig struct {
	APIKey            string
	Endpoint          string
	APIVersion        string
	ChatDeployment    string
	WhisperDeployment string
	TTSDeployment     string
	TTSVoice          string
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTSecret string
	AdminRole string
}

// PipelineConfig holds per-stage budgets and behaviour toggles
type PipelineConfig struct {
	AuthTimeout          time.Duration
	TranscriptionTimeout time.Duration
	TranslationTimeout   time.Duration
	SummarizationTimeout time.Duration
	SynthesisTimeout     time.Duration
	LogTimeout           time.Duration
	StatementTimeout     time.Duration
	MaxAgentSteps        int
	MaxResultRows        int
	LogVoiceInteractions bool
	LogTextInteractions  bool
	InteractionStore     string // supabase or postgres
	TempDir              string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
	MetricsPort    int
}

// MissingConfigError lists every required variable that was not set
type MissingConfigError struct {
	Missing []string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Missing, ", "))
}

// IsMissingConfig reports whether err carries a list of missing variables
func IsMissingConfig(err error) bool {
	var missing *MissingConfigError
	return errors.As(err, &missing)
}

// New loads the configuration from the environment and validates it
func New(ctx context.Context) (*Config, error) {
	cfg := Load()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Load reads the environment (and .env when present) without validating
func Load() *Config {
	_ = godotenv.Load(".env")

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "0.0.0.0"),
			Port:               getPort(),
			ReadTimeout:        getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:       getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:    getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxUploadBytes:     int64(getEnvAsInt("MAX_UPLOAD_BYTES", 25<<20)),
			CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		},
		Database:    loadDatabaseConfig(),
		LogDatabase: loadLogDatabaseConfig(),
		Supabase: SupabaseConfig{
			URL:            strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
			ServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
			ProfilesTable:  getEnv("SUPABASE_PROFILES_TABLE", "user_profiles"),
			LogsTable:      getEnv("SUPABASE_LOGS_TABLE", "voice_agent_logs"),
			Timeout:        getEnvAsDuration("SUPABASE_TIMEOUT", 10*time.Second),
		},
		AzureOpenAI: AzureOpenAIConfig{
			APIKey:            getEnv("AZURE_OPENAI_API_KEY", ""),
			Endpoint:          strings.TrimRight(getEnv("AZURE_OPENAI_ENDPOINT", ""), "/"),
			APIVersion:        getEnv("AZURE_OPENAI_API_VERSION", "2024-02-15-preview"),
			ChatDeployment:    getEnv("AZURE_OPENAI_CHAT_DEPLOYMENT", ""),
			WhisperDeployment: getEnv("AZURE_OPENAI_WHISPER_DEPLOYMENT", ""),
			TTSDeployment:     getEnv("AZURE_OPENAI_TTS_DEPLOYMENT", ""),
			TTSVoice:          getEnv("AZURE_OPENAI_TTS_VOICE", "alloy"),
			Timeout:           getEnvAsDuration("AZURE_OPENAI_TIMEOUT", 60*time.Second),
			MaxRetries:        getEnvAsInt("AZURE_OPENAI_MAX_RETRIES", 2),
			RetryDelay:        getEnvAsDuration("AZURE_OPENAI_RETRY_DELAY", 500*time.Millisecond),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			AdminRole: getEnv("ADMIN_ROLE", "admin"),
		},
		Pipeline: PipelineConfig{
			AuthTimeout:          getEnvAsDuration("AUTH_TIMEOUT", 5*time.Second),
			TranscriptionTimeout: getEnvAsDuration("TRANSCRIPTION_TIMEOUT", 30*time.Second),
			TranslationTimeout:   getEnvAsDuration("TRANSLATION_TIMEOUT", 60*time.Second),
			SummarizationTimeout: getEnvAsDuration("SUMMARIZATION_TIMEOUT", 20*time.Second),
			SynthesisTimeout:     getEnvAsDuration("SYNTHESIS_TIMEOUT", 30*time.Second),
			LogTimeout:           getEnvAsDuration("LOG_TIMEOUT", 5*time.Second),
			StatementTimeout:     getEnvAsDuration("STATEMENT_TIMEOUT", 10*time.Second),
			MaxAgentSteps:        getEnvAsInt("MAX_AGENT_STEPS", 15),
			MaxResultRows:        getEnvAsInt("MAX_RESULT_ROWS", 100),
			LogVoiceInteractions: getEnvAsBool("LOG_VOICE_INTERACTIONS", true),
			LogTextInteractions:  getEnvAsBool("LOG_TEXT_INTERACTIONS", false),
			InteractionStore:     getEnv("INTERACTION_STORE", "supabase"),
			TempDir:              getEnv("AUDIO_TEMP_DIR", os.TempDir()),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
	}
}

// MissingVariables returns the required variables that are unset, in declaration order
func (c *Config) MissingVariables() []string {
	values := map[string]string{
		"SUPABASE_URL":                    c.Supabase.URL,
		"SUPABASE_SERVICE_ROLE_KEY":       c.Supabase.ServiceRoleKey,
		"AZURE_OPENAI_API_KEY":            c.AzureOpenAI.APIKey,
		"AZURE_OPENAI_ENDPOINT":           c.AzureOpenAI.Endpoint,
		"AZURE_OPENAI_CHAT_DEPLOYMENT":    c.AzureOpenAI.ChatDeployment,
		"AZURE_OPENAI_WHISPER_DEPLOYMENT": c.AzureOpenAI.WhisperDeployment,
		"AZURE_OPENAI_TTS_DEPLOYMENT":     c.AzureOpenAI.TTSDeployment,
		"DATABASE_URL":                    c.Database.ConnectionString,
		"JWT_SECRET":                      c.Auth.JWTSecret,
	}

	var missing []string
	for _, name := range RequiredVariables {
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if missing := c.MissingVariables(); len(missing) > 0 {
		return &MissingConfigError{Missing: missing}
	}

	switch c.Database.Driver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("unsupported database driver %q: use postgres or pgx", c.Database.Driver)
	}

	switch c.Pipeline.InteractionStore {
	case "supabase":
	case "postgres":
		if c.LogDatabase == nil {
			return fmt.Errorf("DATABASE_LOG_URL is required when INTERACTION_STORE=postgres")
		}
	default:
		return fmt.Errorf("unsupported interaction store %q: use supabase or postgres", c.Pipeline.InteractionStore)
	}

	if c.Pipeline.MaxAgentSteps <= 0 {
		return fmt.Errorf("MAX_AGENT_STEPS must be positive")
	}
	if c.Pipeline.MaxResultRows <= 0 {
		return fmt.Errorf("MAX_RESULT_ROWS must be positive")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the connection string
func (c *DatabaseConfig) DSN() string {
	return c.ConnectionString
}

// LogString returns a safe string for logging (no password)
func (c *DatabaseConfig) LogString() string {
	u, err := url.Parse(c.ConnectionString)
	if err != nil || u.Host == "" {
		return "host=<from DATABASE_URL>"
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	db := strings.TrimPrefix(u.Path, "/")
	return fmt.Sprintf("host=%s port=%s database=%s driver=%s", u.Hostname(), port, db, c.Driver)
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		ConnectionString: getEnv("DATABASE_URL", ""),
		Driver:           getEnv("DATABASE_DRIVER", "postgres"),
		MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// loadLogDatabaseConfig returns nil when DATABASE_LOG_URL is not set
func loadLogDatabaseConfig() *DatabaseConfig {
	dbURL := getEnv("DATABASE_LOG_URL", "")
	if dbURL == "" {
		return nil
	}
	return &DatabaseConfig{
		ConnectionString: dbURL,
		Driver:           getEnv("DATABASE_DRIVER", "postgres"),
		MaxOpenConns:     getEnvAsInt("DB_LOG_MAX_OPEN_CONNS", 4),
		MaxIdleConns:     getEnvAsInt("DB_LOG_MAX_IDLE_CONNS", 1),
		ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8000)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
