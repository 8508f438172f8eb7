package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/usecase"
	"github.com/DevRickLin/inbox-autopilot/internal/service"
)

// Config represents application configuration
type Config struct {
	// Feishu configuration
	Feishu FeishuConfig

	// AI provider configuration
	AI AIConfig

	// Store configuration
	Store StoreConfig

	// History loader pacing
	Loader LoaderConfig

	// Action executor tuning
	Executor ExecutorConfig

	// Knowledge merge tuning
	Knowledge KnowledgeConfig

	// Style configuration (loaded from YAML)
	Style *StyleConfig

	// Debug mode
	Debug bool
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
	// SelfID is the bot's open_id, used to tag its own messages when
	// walking history.
	SelfID string
}

// AIConfig contains AI provider configuration
type AIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// StoreConfig contains persistent store configuration
type StoreConfig struct {
	DBPath string
}

// LoaderConfig contains history loader pacing values
type LoaderConfig struct {
	BatchSize       int
	ThrottleSeconds int
	BackoffSeconds  int
	MaxRetries      int
}

// ExecutorConfig contains action executor tuning values
type ExecutorConfig struct {
	PollSeconds             int
	MaxActionAttempts       int
	GoalConfidenceThreshold int
}

// KnowledgeConfig contains knowledge merge tuning values
type KnowledgeConfig struct {
	ConfidenceBoost int
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	dbPath := os.Getenv("AUTOPILOT_DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".inbox-autopilot", "autopilot.db")
	}

	styleConfigPath := os.Getenv("STYLE_CONFIG_PATH")
	styleConfig, _ := LoadStyleConfig(styleConfigPath)

	return &Config{
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
			SelfID:    os.Getenv("FEISHU_SELF_ID"),
		},
		AI: AIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   os.Getenv("OPENAI_MODEL"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		Store: StoreConfig{
			DBPath: dbPath,
		},
		Loader: LoaderConfig{
			BatchSize:       envInt("LOADER_BATCH_SIZE", 200),
			ThrottleSeconds: envInt("LOADER_THROTTLE_SECONDS", 2),
			BackoffSeconds:  envInt("LOADER_BACKOFF_SECONDS", 30),
			MaxRetries:      envInt("LOADER_MAX_RETRIES", 3),
		},
		Executor: ExecutorConfig{
			PollSeconds:             envInt("EXECUTOR_POLL_SECONDS", 15),
			MaxActionAttempts:       envInt("MAX_ACTION_ATTEMPTS", 5),
			GoalConfidenceThreshold: envInt("GOAL_CONFIDENCE_THRESHOLD", 80),
		},
		Knowledge: KnowledgeConfig{
			ConfidenceBoost: envInt("KNOWLEDGE_CONFIDENCE_BOOST", 5),
		},
		Style: styleConfig,
		Debug: os.Getenv("DEBUG") == "true",
	}
}

func envInt(name string, def int) int {
	if val := os.Getenv(name); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// ToLoaderConfig converts to service loader configuration
func (c *LoaderConfig) ToLoaderConfig() service.LoaderConfig {
	return service.LoaderConfig{
		BatchSize:    c.BatchSize,
		Throttle:     time.Duration(c.ThrottleSeconds) * time.Second,
		RetryBackoff: time.Duration(c.BackoffSeconds) * time.Second,
		MaxRetries:   c.MaxRetries,
	}
}

// ToExecutorConfig converts to service executor configuration
func (c *ExecutorConfig) ToExecutorConfig() service.ExecutorConfig {
	return service.ExecutorConfig{
		PollInterval:            time.Duration(c.PollSeconds) * time.Second,
		MaxActionAttempts:       c.MaxActionAttempts,
		GoalConfidenceThreshold: c.GoalConfidenceThreshold,
	}
}

// ToKnowledgeConfig converts to usecase knowledge configuration
func (c *KnowledgeConfig) ToKnowledgeConfig() usecase.KnowledgeConfig {
	return usecase.KnowledgeConfig{ConfidenceBoost: c.ConfidenceBoost}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	if c.AI.APIKey == "" {
		return &ConfigError{Field: "OPENAI_API_KEY", Message: "required"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
