package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned when no completion-service key is configured.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is required")

// Config defines host configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	MCP      MCPConfig      `yaml:"mcp"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Chat     ChatConfig     `yaml:"chat"`
	Activity ActivityConfig `yaml:"activity"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type MCPConfig struct {
	URL             string        `yaml:"url"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	SamplingTimeout time.Duration `yaml:"sampling_timeout"`
}

type OpenAIConfig struct {
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	Model         string `yaml:"model"`
	SamplingModel string `yaml:"sampling_model"`
}

type ChatConfig struct {
	MaxToolRounds int `yaml:"max_tool_rounds"`
}

type ActivityConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		MCP: MCPConfig{
			URL:          "http://localhost:8080",
			RetryBackoff: time.Second,
			PingInterval: 30 * time.Second,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4.1-nano",
		},
		Activity: ActivityConfig{
			Path: ":memory:",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadDotEnv loads variables from .env files into the environment without
// overriding ones already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("WRANGLER_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.OpenAI.SamplingModel == "" {
		cfg.OpenAI.SamplingModel = cfg.OpenAI.Model
	}
	return cfg, nil
}

// Validate reports settings the host cannot start without.
func (c Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.MCP.URL == "" {
		return errors.New("MCP_SERVER_URL is required")
	}
	if c.Chat.MaxToolRounds < 0 {
		return fmt.Errorf("invalid max tool rounds %d", c.Chat.MaxToolRounds)
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Host, "WRANGLER_SERVER_HOST")
	if err := setInt(&cfg.Server.Port, "PORT"); err != nil {
		return err
	}
	if err := setInt(&cfg.Server.Port, "WRANGLER_SERVER_PORT"); err != nil {
		return err
	}

	setString(&cfg.MCP.URL, "MCP_SERVER_URL")
	if err := setDuration(&cfg.MCP.RetryBackoff, "WRANGLER_MCP_RETRY_BACKOFF"); err != nil {
		return err
	}
	if err := setDuration(&cfg.MCP.PingInterval, "WRANGLER_MCP_PING_INTERVAL"); err != nil {
		return err
	}
	if err := setDuration(&cfg.MCP.SamplingTimeout, "WRANGLER_SAMPLING_TIMEOUT"); err != nil {
		return err
	}

	setString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.OpenAI.Model, "MODEL")
	setString(&cfg.OpenAI.SamplingModel, "SAMPLING_MODEL")

	if err := setInt(&cfg.Chat.MaxToolRounds, "WRANGLER_MAX_TOOL_ROUNDS"); err != nil {
		return err
	}
	setString(&cfg.Activity.Path, "WRANGLER_ACTIVITY_DB")
	setString(&cfg.Log.Level, "WRANGLER_LOG_LEVEL")
	setString(&cfg.Log.Path, "WRANGLER_LOG_PATH")
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
