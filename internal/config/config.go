package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"

	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

type Config struct {
	LLMProvider  string
	GeminiAPIKey string
	ChatModel    string
	QueryModel   string
	OllamaModel  string

	YouTubeAPIKey    string
	AssignmentAPIURL string

	HistoryBackend string
	DatabaseURL    string
	MongoURI       string
	DatabaseName   string

	HTTPPort string
	LogLevel string

	// JWTSecret enables bearer-token checks on the chat routes when set.
	JWTSecret string

	ChatHistoryWindow   int
	PolicyFile          string
	ExternalCallTimeout time.Duration
}

var AppConfig Config

// LoadConfig reads .env (if any) and the process environment into AppConfig.
func LoadConfig() error {
	LoadEnvFile()

	cfg, err := FromEnv()
	if err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

// LoadEnvFile loads .env into the environment when the file exists.
// Variables already set in the environment win.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// FromEnv builds and validates a Config from the current environment.
func FromEnv() (Config, error) {
	cfg := Config{
		LLMProvider:  strings.ToLower(getEnv("LLM_PROVIDER", ProviderGemini)),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		ChatModel:    getEnv("CHAT_MODEL", "gemini-1.5-flash-latest"),
		QueryModel:   getEnv("QUERY_MODEL", "gemini-1.5-flash-8b-latest"),
		OllamaModel:  getEnv("OLLAMA_MODEL", "llama3.1"),

		YouTubeAPIKey:    getEnv("YOUTUBE_API_KEY", ""),
		AssignmentAPIURL: getEnv("ASSIGNMENT_API_URL", ""),

		HistoryBackend: strings.ToLower(getEnv("HISTORY_BACKEND", BackendSQLite)),
		DatabaseURL:    getEnv("DATABASE_URL", "assignment_helper.db"),
		MongoURI:       getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DatabaseName:   getEnv("DATABASE_NAME", "assignment_helper"),

		HTTPPort: getEnv("HTTP_PORT", "8080"),
		LogLevel: strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),

		JWTSecret: getEnv("JWT_SECRET", ""),

		ChatHistoryWindow:   getEnvAsInt("CHAT_HISTORY_WINDOW", 10),
		PolicyFile:          getEnv("POLICY_FILE", ""),
		ExternalCallTimeout: getEnvAsDuration("EXTERNAL_CALL_TIMEOUT", 60*time.Second),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error

	switch c.LLMProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY environment variable is required"))
		}
	case ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider))
	}

	switch c.HistoryBackend {
	case BackendSQLite:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the sqlite backend"))
		}
	case BackendMongo:
		if c.MongoURI == "" || c.DatabaseName == "" {
			errs = append(errs, errors.New("MONGODB_URI and DATABASE_NAME are required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported HISTORY_BACKEND %q", c.HistoryBackend))
	}

	if c.AssignmentAPIURL == "" {
		errs = append(errs, errors.New("ASSIGNMENT_API_URL environment variable is required"))
	}
	if c.ChatHistoryWindow < 0 {
		errs = append(errs, errors.New("CHAT_HISTORY_WINDOW cannot be negative"))
	}
	if c.ExternalCallTimeout <= 0 {
		errs = append(errs, errors.New("EXTERNAL_CALL_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("45s") or a plain number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
