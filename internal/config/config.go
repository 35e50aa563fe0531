package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Copilot    CopilotConfig    `yaml:"copilot" mapstructure:"copilot"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Usage      UsageConfig      `yaml:"usage" mapstructure:"usage"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// MonitoringConfig tunes the background health checker and its alerts.
type MonitoringConfig struct {
	// WebhookURL receives alert payloads; empty disables delivery.
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`

	// CheckIntervalSecs is how often the checker collects a snapshot.
	CheckIntervalSecs int `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`

	// LookbackDays is the usage window each snapshot covers.
	LookbackDays int `yaml:"lookback_days" mapstructure:"lookback_days"`

	// CostThresholdUSD alerts when window cost exceeds it. Zero disables.
	CostThresholdUSD float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
}

// StoreConfig configures the usage store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// CopilotConfig configures decision routing and response generation.
type CopilotConfig struct {
	// DefaultProvider picks which provider handles classification when
	// the caller does not specify one.
	DefaultProvider string `yaml:"default_provider" mapstructure:"default_provider"`

	// ObjectionConfidenceThreshold gates automatic objection handling:
	// below this confidence, objections escalate to manual review.
	ObjectionConfidenceThreshold float64 `yaml:"objection_confidence_threshold" mapstructure:"objection_confidence_threshold"`

	// BookingLink is appended to generated replies when set.
	BookingLink string `yaml:"booking_link" mapstructure:"booking_link"`

	// SMSMaxLen caps generated replies for the SMS channel.
	SMSMaxLen int `yaml:"sms_max_len" mapstructure:"sms_max_len"`

	// MaxAutoReplies caps automated replies per lead before forcing
	// manual review.
	MaxAutoReplies int `yaml:"max_auto_replies" mapstructure:"max_auto_replies"`

	// BatchConcurrency bounds concurrent classifications per batch group.
	BatchConcurrency int `yaml:"batch_concurrency" mapstructure:"batch_concurrency"`

	// Temperature for classification calls; low values favor determinism.
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// ResilienceConfig configures retry and circuit breaker behavior.
type ResilienceConfig struct {
	MaxRetries         int     `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoffMs   int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs       int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	BackoffMultiplier  float64 `yaml:"backoff_multiplier" mapstructure:"backoff_multiplier"`
	JitterFraction     float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	FailureThreshold   int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	RecoveryTimeoutMs  int     `yaml:"recovery_timeout_ms" mapstructure:"recovery_timeout_ms"`
	SuccessThreshold   int     `yaml:"success_threshold" mapstructure:"success_threshold"`
	RequestTimeoutSecs int     `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	ProviderRatePerSec float64 `yaml:"provider_rate_per_sec" mapstructure:"provider_rate_per_sec"`
	ProviderRateBurst  int     `yaml:"provider_rate_burst" mapstructure:"provider_rate_burst"`
}

// UsageConfig configures usage tracking.
type UsageConfig struct {
	// QueueSize bounds the fire-and-forget usage write queue.
	QueueSize int `yaml:"queue_size" mapstructure:"queue_size"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NEXTIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "copilot.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("openai.key", "")
	v.SetDefault("perplexity.key", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("copilot.booking_link", "")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "llama-3.1-sonar-small-128k-online")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("copilot.default_provider", "openai")
	v.SetDefault("copilot.objection_confidence_threshold", 0.8)
	v.SetDefault("copilot.sms_max_len", 160)
	v.SetDefault("copilot.max_auto_replies", 5)
	v.SetDefault("copilot.batch_concurrency", 5)
	v.SetDefault("copilot.temperature", 0.3)
	v.SetDefault("resilience.max_retries", 3)
	v.SetDefault("resilience.initial_backoff_ms", 1000)
	v.SetDefault("resilience.max_backoff_ms", 30000)
	v.SetDefault("resilience.backoff_multiplier", 2.0)
	v.SetDefault("resilience.jitter_fraction", 0.0)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.recovery_timeout_ms", 30000)
	v.SetDefault("resilience.success_threshold", 2)
	v.SetDefault("resilience.request_timeout_secs", 30)
	v.SetDefault("resilience.provider_rate_per_sec", 10)
	v.SetDefault("resilience.provider_rate_burst", 10)
	v.SetDefault("usage.queue_size", 1024)

	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_days", 1)
	v.SetDefault("monitoring.cost_threshold_usd", 0.0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
