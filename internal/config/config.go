// Package config handles configuration loading and management for Quorum.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Quorum.
type Config struct {
	Inference    InferenceConfig    `mapstructure:"inference"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Tools        ToolsConfig        `mapstructure:"tools"`
	Registry     RegistryConfig     `mapstructure:"registry"`
}

// InferenceConfig holds model provider settings.
type InferenceConfig struct {
	// Provider selects the inference backend: anthropic, openai, keyword,
	// or auto to pick from the available credentials.
	Provider string `mapstructure:"provider"`
	// Model overrides the provider's default model.
	Model string `mapstructure:"model"`
	// AnthropicAPIKey authenticates against the Anthropic API.
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	// OpenAIAPIKey authenticates against the OpenAI API.
	OpenAIAPIKey string `mapstructure:"openai_api_key"`
	// UseAWSBedrock routes Anthropic calls through AWS Bedrock.
	UseAWSBedrock bool `mapstructure:"use_aws_bedrock"`
	// AWSRegion is the Bedrock region.
	AWSRegion string `mapstructure:"aws_region"`
	// AWSProfile is the AWS credentials profile for Bedrock.
	AWSProfile string `mapstructure:"aws_profile"`
}

// OrchestratorConfig holds retry and deadline policy.
type OrchestratorConfig struct {
	// MaxRetries bounds re-dispatches after transient worker failures.
	MaxRetries int `mapstructure:"max_retries"`
	// Backoff is the first retry delay; each retry doubles it.
	Backoff time.Duration `mapstructure:"backoff"`
	// WorkerTimeout bounds a single worker call.
	WorkerTimeout time.Duration `mapstructure:"worker_timeout"`
	// GlobalDeadline bounds one whole request.
	GlobalDeadline time.Duration `mapstructure:"global_deadline"`
}

// ToolsConfig holds tool-execution service settings.
type ToolsConfig struct {
	// DBPath is the SQLite database path; empty uses the XDG data dir.
	DBPath string `mapstructure:"db_path"`
	// Addr is the listen address for the tool server.
	Addr string `mapstructure:"addr"`
	// RemoteURL, when set, makes workers call a remote tool server instead
	// of opening the database in process.
	RemoteURL string `mapstructure:"remote_url"`
}

// RegistryConfig holds worker roster settings.
type RegistryConfig struct {
	// Path is the workers YAML file; empty uses the built-in roster.
	Path string `mapstructure:"path"`
	// Watch reloads the roster when the file changes.
	Watch bool `mapstructure:"watch"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, OPENAI_API_KEY)
// 2. Project config (.quorum.yaml in current directory or parent)
// 3. User config (~/.config/quorum/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("inference.anthropic_api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("inference.openai_api_key", "OPENAI_API_KEY")
	v.BindEnv("inference.aws_region", "AWS_REGION")
	v.BindEnv("inference.aws_profile", "AWS_PROFILE")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Inference.AnthropicAPIKey = expandEnv(cfg.Inference.AnthropicAPIKey)
	cfg.Inference.OpenAIAPIKey = expandEnv(cfg.Inference.OpenAIAPIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Inference.AnthropicAPIKey = expandEnv(cfg.Inference.AnthropicAPIKey)
	cfg.Inference.OpenAIAPIKey = expandEnv(cfg.Inference.OpenAIAPIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("inference.provider", cfg.Inference.Provider)
	v.Set("inference.model", cfg.Inference.Model)
	v.Set("inference.anthropic_api_key", cfg.Inference.AnthropicAPIKey)
	v.Set("inference.openai_api_key", cfg.Inference.OpenAIAPIKey)
	v.Set("inference.use_aws_bedrock", cfg.Inference.UseAWSBedrock)
	v.Set("orchestrator.max_retries", cfg.Orchestrator.MaxRetries)
	v.Set("orchestrator.backoff", cfg.Orchestrator.Backoff.String())
	v.Set("orchestrator.worker_timeout", cfg.Orchestrator.WorkerTimeout.String())
	v.Set("orchestrator.global_deadline", cfg.Orchestrator.GlobalDeadline.String())
	v.Set("tools.db_path", cfg.Tools.DBPath)
	v.Set("tools.addr", cfg.Tools.Addr)
	v.Set("tools.remote_url", cfg.Tools.RemoteURL)
	v.Set("registry.path", cfg.Registry.Path)
	v.Set("registry.watch", cfg.Registry.Watch)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("inference.provider", "auto")
	v.SetDefault("inference.model", "")
	v.SetDefault("inference.anthropic_api_key", "")
	v.SetDefault("inference.openai_api_key", "")
	v.SetDefault("inference.use_aws_bedrock", false)

	v.SetDefault("orchestrator.max_retries", 2)
	v.SetDefault("orchestrator.backoff", "500ms")
	v.SetDefault("orchestrator.worker_timeout", "30s")
	v.SetDefault("orchestrator.global_deadline", "2m")

	v.SetDefault("tools.db_path", "")
	v.SetDefault("tools.addr", "localhost:8311")
	v.SetDefault("tools.remote_url", "")

	v.SetDefault("registry.path", "")
	v.SetDefault("registry.watch", false)
}

// getUserConfigDir returns the XDG config directory for Quorum.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "quorum")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "quorum")
	}
	return filepath.Join(home, ".config", "quorum")
}

// findProjectConfig searches for .quorum.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".quorum.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Inference: InferenceConfig{
			Provider: "auto",
		},
		Orchestrator: OrchestratorConfig{
			MaxRetries:     2,
			Backoff:        500 * time.Millisecond,
			WorkerTimeout:  30 * time.Second,
			GlobalDeadline: 2 * time.Minute,
		},
		Tools: ToolsConfig{
			Addr: "localhost:8311",
		},
	}
}
