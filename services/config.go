package services

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	AI        AIConfig
	Cards     CardsConfig
	Planner   PlannerConfig
	Locks     LockConfig
	JWT       JWTConfig
	WebSocket WebSocketConfig
}

type ServerConfig struct {
	Port        string
	CORSOrigins string
}

type DatabaseConfig struct {
	URL          string
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

type AIConfig struct {
	GeminiAPIKey string
	TextModel    string
	ImageModel   string
	Timeout      time.Duration
}

type CardsConfig struct {
	Enabled     bool
	Store       string // local or gcs
	Dir         string
	Bucket      string
	Concurrency int
}

type PlannerConfig struct {
	Concurrency              int
	DefaultQuestionsPerSkill int
}

type LockConfig struct {
	Backend  string // memory or redis
	RedisURL string
	TTL      time.Duration
}

type JWTConfig struct {
	Secret string
}

type WebSocketConfig struct {
	AllowedOrigins string
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.cors_origins", "")
	viper.SetDefault("websocket.allowed_origins", "")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.text_model", "gemini-2.5-flash")
	viper.SetDefault("gemini.image_model", "gemini-2.5-flash-image")
	viper.SetDefault("llm.timeout", "30s")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("database.url", "sqlite:skillcards.db")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("cards.enabled", "true")
	viper.SetDefault("cards.store", "local")
	viper.SetDefault("cards.dir", "card_images")
	viper.SetDefault("cards.bucket", "")
	viper.SetDefault("cards.concurrency", "3")
	viper.SetDefault("planner.concurrency", "4")
	viper.SetDefault("planner.questions_per_skill", "3")
	viper.SetDefault("locks.backend", "memory")
	viper.SetDefault("locks.redis_url", "")
	viper.SetDefault("locks.ttl", "2m")

	// Map environment variables to config keys
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.cors_origins", "CORS_ALLOWED_ORIGINS")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("gemini.text_model", "GEMINI_TEXT_MODEL")
	viper.BindEnv("gemini.image_model", "GEMINI_IMAGE_MODEL")
	viper.BindEnv("llm.timeout", "LLM_TIMEOUT")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("cards.enabled", "CARDS_ENABLED")
	viper.BindEnv("cards.store", "CARD_STORE")
	viper.BindEnv("cards.dir", "CARD_DIR")
	viper.BindEnv("cards.bucket", "GCS_BUCKET_NAME")
	viper.BindEnv("cards.concurrency", "CARD_CONCURRENCY")
	viper.BindEnv("planner.concurrency", "PLANNER_CONCURRENCY")
	viper.BindEnv("planner.questions_per_skill", "DEFAULT_QUESTIONS_PER_SKILL")
	viper.BindEnv("locks.backend", "LOCK_BACKEND")
	viper.BindEnv("locks.redis_url", "REDIS_URL")
	viper.BindEnv("locks.ttl", "LOCK_TTL")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:        viper.GetString("server.port"),
			CORSOrigins: viper.GetString("server.cors_origins"),
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("database.url"),
			LogLevel:     viper.GetString("database.log_level"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		AI: AIConfig{
			GeminiAPIKey: viper.GetString("gemini.api_key"),
			TextModel:    viper.GetString("gemini.text_model"),
			ImageModel:   viper.GetString("gemini.image_model"),
			Timeout:      viper.GetDuration("llm.timeout"),
		},
		Cards: CardsConfig{
			Enabled:     viper.GetBool("cards.enabled"),
			Store:       viper.GetString("cards.store"),
			Dir:         viper.GetString("cards.dir"),
			Bucket:      viper.GetString("cards.bucket"),
			Concurrency: viper.GetInt("cards.concurrency"),
		},
		Planner: PlannerConfig{
			Concurrency:              viper.GetInt("planner.concurrency"),
			DefaultQuestionsPerSkill: viper.GetInt("planner.questions_per_skill"),
		},
		Locks: LockConfig{
			Backend:  viper.GetString("locks.backend"),
			RedisURL: viper.GetString("locks.redis_url"),
			TTL:      viper.GetDuration("locks.ttl"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
	}
}
