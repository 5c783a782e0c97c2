package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"commentreview/internal/domain"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 90 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

const (
	ProviderAzure     = "azure"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	AzureEndpoint            string `yaml:"azure_openai_endpoint"`
	AzureAPIKey              string `yaml:"azure_openai_api_key"`
	AzureAPIVersion          string `yaml:"azure_openai_api_version"`
	AzureChatDeployment      string `yaml:"azure_openai_chat_deployment"`
	AzureEmbeddingDeployment string `yaml:"azure_openai_embedding_deployment"`

	LLMProvider        string  `yaml:"llm_provider"`
	AnthropicAPIKey    string  `yaml:"anthropic_api_key"`
	AnthropicModel     string  `yaml:"anthropic_model"`
	LLMMaxAttempts     int     `yaml:"llm_max_attempts"`
	LLMMaxBackoffSecs  int     `yaml:"llm_max_backoff_seconds"`
	LLMMaxTokens       int     `yaml:"llm_max_tokens"`
	LLMTemperature     float64 `yaml:"llm_temperature"`
	EmbeddingBatchSize int     `yaml:"embedding_batch_size"`

	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds"`
	PromptsDir                 string `yaml:"prompts_dir"`
	MaxWorkers                 int    `yaml:"max_workers"`
	TextColumn                 string `yaml:"text_column"`

	DBPath               string `yaml:"db_path"`
	ResponseCacheEnabled bool   `yaml:"response_cache_enabled"`

	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`

	MetricsTextfile string `yaml:"metrics_textfile"`
	LogMode         string `yaml:"log_mode"`

	WatchSchedule  string `yaml:"watch_schedule"`
	WatchInboxDir  string `yaml:"watch_inbox_dir"`
	WatchOutputDir string `yaml:"watch_output_dir"`
}

// LoadConfig reads config.yaml (or CONFIG_PATH), applies environment
// overrides and defaults, and validates the result. Every problem found is
// reported in a single error wrapping domain.ErrConfig.
func LoadConfig() (Config, error) {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parsing %s: %v", domain.ErrConfig, configPath, err)
		}
	}

	var problems []string
	envOverride(&cfg.AzureEndpoint, "AZURE_OPENAI_ENDPOINT")
	envOverride(&cfg.AzureAPIKey, "AZURE_OPENAI_API_KEY")
	envOverride(&cfg.AzureAPIVersion, "AZURE_OPENAI_API_VERSION")
	envOverride(&cfg.AzureChatDeployment, "AZURE_OPENAI_CHAT_DEPLOYMENT")
	envOverride(&cfg.AzureEmbeddingDeployment, "AZURE_OPENAI_EMBEDDING_DEPLOYMENT")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.AnthropicModel, "ANTHROPIC_MODEL")
	envOverrideInt(&cfg.LLMMaxAttempts, "LLM_MAX_ATTEMPTS", &problems)
	envOverrideInt(&cfg.LLMMaxBackoffSecs, "LLM_MAX_BACKOFF_SECONDS", &problems)
	envOverrideInt(&cfg.LLMMaxTokens, "LLM_MAX_TOKENS", &problems)
	envOverrideFloat(&cfg.LLMTemperature, "LLM_TEMPERATURE", &problems)
	envOverrideInt(&cfg.EmbeddingBatchSize, "EMBEDDING_BATCH_SIZE", &problems)
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS", &problems)
	envOverride(&cfg.PromptsDir, "PROMPTS_DIR")
	envOverrideInt(&cfg.MaxWorkers, "MAX_WORKERS", &problems)
	envOverride(&cfg.TextColumn, "TEXT_COLUMN")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverrideBool(&cfg.ResponseCacheEnabled, "RESPONSE_CACHE_ENABLED")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverride(&cfg.MetricsTextfile, "METRICS_TEXTFILE")
	envOverride(&cfg.LogMode, "LOG_MODE")
	envOverride(&cfg.WatchSchedule, "WATCH_SCHEDULE")
	envOverride(&cfg.WatchInboxDir, "WATCH_INBOX_DIR")
	envOverride(&cfg.WatchOutputDir, "WATCH_OUTPUT_DIR")

	cfg.applyDefaults()
	problems = append(problems, cfg.validate()...)
	if len(problems) > 0 {
		return Config{}, fmt.Errorf("%w: %s", domain.ErrConfig, strings.Join(problems, "; "))
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.AzureEndpoint = strings.TrimRight(strings.TrimSpace(c.AzureEndpoint), "/")
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	if c.LLMProvider == "" {
		c.LLMProvider = ProviderAzure
	}
	if c.AzureAPIVersion == "" {
		c.AzureAPIVersion = "2024-02-01"
	}
	if c.AnthropicModel == "" {
		c.AnthropicModel = "claude-sonnet-4-5-20250929"
	}
	if c.LLMMaxAttempts == 0 {
		c.LLMMaxAttempts = 6
	}
	if c.LLMMaxBackoffSecs == 0 {
		c.LLMMaxBackoffSecs = 30
	}
	if c.LLMMaxTokens == 0 {
		c.LLMMaxTokens = 700
	}
	if c.EmbeddingBatchSize == 0 {
		c.EmbeddingBatchSize = 100
	}
	if c.ExternalHTTPTimeoutSeconds == 0 {
		c.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if c.TextColumn == "" {
		c.TextColumn = "comment"
	}
	if c.DBPath == "" {
		c.DBPath = "./commentreview.db"
	}
	if c.LogMode == "" {
		c.LogMode = "dev"
	}
	if c.WatchSchedule == "" {
		c.WatchSchedule = "@every 15m"
	}
	if c.WatchInboxDir == "" {
		c.WatchInboxDir = "./inbox"
	}
	if c.WatchOutputDir == "" {
		c.WatchOutputDir = "./outbox"
	}
}

func (c Config) validate() []string {
	var problems []string
	required := []struct{ name, val string }{
		{"azure_openai_endpoint", c.AzureEndpoint},
		{"azure_openai_api_key", c.AzureAPIKey},
		{"azure_openai_embedding_deployment", c.AzureEmbeddingDeployment},
	}
	switch c.LLMProvider {
	case ProviderAzure:
		required = append(required, struct{ name, val string }{"azure_openai_chat_deployment", c.AzureChatDeployment})
	case ProviderAnthropic:
		required = append(required, struct{ name, val string }{"anthropic_api_key", c.AnthropicAPIKey})
	default:
		problems = append(problems, fmt.Sprintf("llm_provider must be 'azure' or 'anthropic', got '%s'", c.LLMProvider))
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			problems = append(problems, fmt.Sprintf("required config '%s' is not set (via config.yaml or env var)", r.name))
		}
	}

	if c.SlackBotToken != "" && c.SlackChannelID == "" {
		problems = append(problems, "slack_bot_token is set but slack_channel_id is not")
	}
	if c.LLMMaxAttempts < 1 {
		problems = append(problems, fmt.Sprintf("invalid llm_max_attempts '%d': must be >= 1", c.LLMMaxAttempts))
	}
	if c.LLMMaxBackoffSecs < 1 {
		problems = append(problems, fmt.Sprintf("invalid llm_max_backoff_seconds '%d': must be >= 1", c.LLMMaxBackoffSecs))
	}
	if c.LLMMaxTokens < 1 {
		problems = append(problems, fmt.Sprintf("invalid llm_max_tokens '%d': must be >= 1", c.LLMMaxTokens))
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		problems = append(problems, fmt.Sprintf("invalid llm_temperature '%g': must be between 0 and 2", c.LLMTemperature))
	}
	if c.EmbeddingBatchSize < 1 {
		problems = append(problems, fmt.Sprintf("invalid embedding_batch_size '%d': must be >= 1", c.EmbeddingBatchSize))
	}
	if c.ExternalHTTPTimeoutSeconds < 5 {
		problems = append(problems, fmt.Sprintf("invalid external_http_timeout_seconds '%d': must be >= 5", c.ExternalHTTPTimeoutSeconds))
	}
	if c.MaxWorkers < 0 {
		problems = append(problems, fmt.Sprintf("invalid max_workers '%d': must be >= 0", c.MaxWorkers))
	}
	if _, err := cron.ParseStandard(c.WatchSchedule); err != nil {
		problems = append(problems, fmt.Sprintf("invalid watch_schedule '%s': %v", c.WatchSchedule, err))
	}
	return problems
}

// LLMMaxBackoff is the per-wait retry cap.
func (c Config) LLMMaxBackoff() time.Duration {
	return time.Duration(c.LLMMaxBackoffSecs) * time.Second
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string, problems *[]string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			*problems = append(*problems, fmt.Sprintf("invalid %s '%s': %v", envKey, val, err))
			return
		}
		*field = parsed
	}
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}

func envOverrideFloat(field *float64, envKey string, problems *[]string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			*problems = append(*problems, fmt.Sprintf("invalid %s '%s': %v", envKey, val, err))
			return
		}
		*field = parsed
	}
}
