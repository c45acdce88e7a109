// Package config assembles runtime settings from the environment and the
// optional YAML model/policy file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"docsamajh/pkg/core/agent"
	"docsamajh/pkg/core/reconcile"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

const (
	DefaultADEBaseURL  = "https://api.va.landing.ai"
	DefaultListenAddr  = ":8080"
	DefaultConfigFile  = "config/models.yaml"
	DefaultGeminiModel = "gemini-2.0-flash"
)

// FileConfig is the shape of config/models.yaml.
type FileConfig struct {
	Agents         agent.Config      `yaml:",inline"`
	Reconciliation *reconcile.Policy `yaml:"reconciliation"`
}

// Policy returns the reconciliation policy from the file. Keys absent from
// the file keep their DefaultPolicy value; an explicit 0 is honored.
func (fc *FileConfig) Policy() reconcile.Policy {
	if fc == nil || fc.Reconciliation == nil {
		return reconcile.DefaultPolicy()
	}
	return *fc.Reconciliation
}

// Config holds everything the entrypoints need to wire the service.
type Config struct {
	GeminiAPIKey string
	GeminiModel  string `validate:"required"`
	BaseURL      string

	ADEAPIKey  string
	ADEBaseURL string `validate:"required,url"`

	DatabaseURL  string
	RedisAddress string
	CacheTTL     time.Duration `validate:"gte=0"`

	ListenAddr       string `validate:"required"`
	BatchConcurrency int    `validate:"gte=1,lte=64"`
	LogLevel         string `validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`

	Agents agent.Config
	Policy reconcile.Policy
}

// Load reads the environment and the YAML file at path (CONFIG_FILE or the
// default when empty). A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = GetEnv("CONFIG_FILE", DefaultConfigFile)
	}

	cfg := &Config{
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      GetEnv("GEMINI_MODEL", DefaultGeminiModel),
		BaseURL:          strings.TrimRight(os.Getenv("BASE_URL"), "/"),
		ADEAPIKey:        os.Getenv("ADE_API_KEY"),
		ADEBaseURL:       strings.TrimRight(GetEnv("ADE_BASE_URL", DefaultADEBaseURL), "/"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisAddress:     os.Getenv("REDIS_ADDRESS"),
		CacheTTL:         time.Duration(GetEnvInt("CACHE_TTL_HOURS", 24)) * time.Hour,
		ListenAddr:       GetEnv("LISTEN_ADDR", DefaultListenAddr),
		BatchConcurrency: GetEnvInt("BATCH_CONCURRENCY", 4),
		LogLevel:         strings.ToLower(GetEnv("LOG_LEVEL", "info")),
		Agents:           agent.Config{ActiveProvider: "openai_compat"},
		Policy:           reconcile.DefaultPolicy(),
	}

	file, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if file != nil {
		if file.Agents.ActiveProvider != "" {
			cfg.Agents.ActiveProvider = file.Agents.ActiveProvider
		}
		cfg.Agents.Agents = file.Agents.Agents
		cfg.Policy = file.Policy()
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ReadFile parses the YAML config file. It returns (nil, nil) when the file
// does not exist.
func ReadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	// Decoding onto the defaults leaves keys the file omits untouched.
	policy := reconcile.DefaultPolicy()
	fc := FileConfig{Reconciliation: &policy}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &fc, nil
}

func GetEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists && val != "" {
		return val
	}
	return defaultVal
}

func GetEnvInt(key string, defaultVal int) int {
	if val, exists := os.LookupEnv(key); exists {
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return i
		}
	}
	return defaultVal
}
