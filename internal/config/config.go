package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr string

	// DB_DSN is a MySQL DSN, or "sqlite:<path>" for local development.
	DBDSN           string
	DBMaxOpenConns  int
	DBMaxIdleConns  int
	DBConnMaxIdle   time.Duration
	DBConnLifetime  time.Duration
	StorageTimeout  time.Duration
	AutoMigrate     bool
	LogLevel        string
	LogFormat       string
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	CursorSecret    string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	PromptRateLimit int
	PromptRateBurst int

	ChatContextWindowSize int
	CompletionTimeout     time.Duration
	MaxTokens             int
	Temperature           float64
	SystemPrompt          string

	// AI provider
	AIProvider    string
	OllamaBaseURL string
	OllamaModel   string
	OpenAIBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string

	// rabbitMQ
	RabbitURL         string
	RabbitQueue       string
	WorkerConcurrency int
	PurgeInterval     time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")

	// DSN demo：
	// app:apppass@tcp(127.0.0.1:3306)/hugg_chat?charset=utf8mb4&parseTime=true&loc=Local
	v.SetDefault("db_dsn", fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=Local",
		"app", "apppass", "127.0.0.1", "3306", "hugg_chat",
	))
	v.SetDefault("db_max_open_conns", 50)
	v.SetDefault("db_max_idle_conns", 10)
	v.SetDefault("db_conn_max_idle", 5*time.Minute)
	v.SetDefault("db_conn_lifetime", time.Hour)
	v.SetDefault("storage_timeout", 5*time.Second)
	v.SetDefault("auto_migrate", true)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("jwt_secret", "dev-secret-change-me")
	v.SetDefault("cursor_secret", "dev-cursor-secret-change-me")

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("prompt_rate_limit", 20)
	v.SetDefault("prompt_rate_burst", 5)

	v.SetDefault("chat_context_window_size", 50)
	v.SetDefault("completion_timeout", 60*time.Second)
	v.SetDefault("max_tokens", 512)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("system_prompt", "") // empty selects chat.DefaultSystemPrompt

	v.SetDefault("ai_provider", "openai")
	v.SetDefault("ollama_base_url", "http://localhost:11434")
	v.SetDefault("ollama_model", "llama3:latest")
	v.SetDefault("openai_base_url", "https://router.huggingface.co/v1/")
	v.SetDefault("openai_model", "meta-llama/Meta-Llama-3-8B-Instruct")

	v.SetDefault("rabbit_url", "")
	v.SetDefault("rabbit_queue", "chat_title_jobs")
	v.SetDefault("worker_concurrency", 2)
	v.SetDefault("purge_interval", 10*time.Minute)
}

// Load reads configuration from the environment, optionally layered over the
// YAML file named by CONFIG_FILE. Keys are the lower-case env names.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		HTTPAddr:        v.GetString("http_addr"),
		DBDSN:           v.GetString("db_dsn"),
		DBMaxOpenConns:  v.GetInt("db_max_open_conns"),
		DBMaxIdleConns:  v.GetInt("db_max_idle_conns"),
		DBConnMaxIdle:   v.GetDuration("db_conn_max_idle"),
		DBConnLifetime:  v.GetDuration("db_conn_lifetime"),
		StorageTimeout:  v.GetDuration("storage_timeout"),
		AutoMigrate:     v.GetBool("auto_migrate"),
		LogLevel:        v.GetString("log_level"),
		LogFormat:       v.GetString("log_format"),
		JWTSecret:       v.GetString("jwt_secret"),
		JWTIssuer:       v.GetString("jwt_issuer"),
		JWTAudience:     v.GetString("jwt_audience"),
		CursorSecret:    v.GetString("cursor_secret"),
		RedisAddr:       v.GetString("redis_addr"),
		RedisPassword:   v.GetString("redis_password"),
		RedisDB:         v.GetInt("redis_db"),
		PromptRateLimit: v.GetInt("prompt_rate_limit"),
		PromptRateBurst: v.GetInt("prompt_rate_burst"),

		ChatContextWindowSize: v.GetInt("chat_context_window_size"),
		CompletionTimeout:     v.GetDuration("completion_timeout"),
		MaxTokens:             v.GetInt("max_tokens"),
		Temperature:           v.GetFloat64("temperature"),
		SystemPrompt:          v.GetString("system_prompt"),

		AIProvider:    v.GetString("ai_provider"),
		OllamaBaseURL: v.GetString("ollama_base_url"),
		OllamaModel:   v.GetString("ollama_model"),
		OpenAIBaseURL: v.GetString("openai_base_url"),
		OpenAIAPIKey:  v.GetString("openai_api_key"),
		OpenAIModel:   v.GetString("openai_model"),

		RabbitURL:         v.GetString("rabbit_url"),
		RabbitQueue:       v.GetString("rabbit_queue"),
		WorkerConcurrency: v.GetInt("worker_concurrency"),
		PurgeInterval:     v.GetDuration("purge_interval"),
	}

	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 2
	}
	if cfg.WorkerConcurrency > 50 {
		cfg.WorkerConcurrency = 50
	}
	return cfg, nil
}
