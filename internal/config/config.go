package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	// Environment tags which deployment this worker classifies for
	// ("dev", "prd"). Overridable via DATABASE_ENV.
	Environment string `yaml:"environment"`

	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`

	Classifier struct {
		GroqAPIKey          string `yaml:"groq_api_key"`
		ModelName           string `yaml:"model_name"`
		MaxRetries          int    `yaml:"max_retries"`
		PollIntervalSeconds int64  `yaml:"poll_interval_seconds"`
		BatchSize           int    `yaml:"batch_size"`
	} `yaml:"classifier"`

	Redis struct {
		Addr   string `yaml:"addr"`
		Stream string `yaml:"stream"`
	} `yaml:"redis"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

// LoadConfig reads configuration from the specified YAML file. Secret
// fields support ${VAR} env expansion so keys never live in the file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.Database.URL = os.ExpandEnv(config.Database.URL)
	config.Classifier.GroqAPIKey = os.ExpandEnv(config.Classifier.GroqAPIKey)

	if env := os.Getenv("DATABASE_ENV"); env != "" {
		config.Environment = env
	}

	// Defaults
	if config.Environment == "" {
		config.Environment = "dev"
	}
	if config.Classifier.ModelName == "" {
		config.Classifier.ModelName = "llama-3.3-70b-versatile"
	}
	if config.Classifier.MaxRetries == 0 {
		config.Classifier.MaxRetries = 3
	}
	if config.Classifier.PollIntervalSeconds == 0 {
		config.Classifier.PollIntervalSeconds = 30
	}
	if config.Classifier.BatchSize == 0 {
		config.Classifier.BatchSize = 50
	}
	if config.Redis.Addr == "" {
		config.Redis.Addr = "redis:6379"
	}
	if config.Redis.Stream == "" {
		config.Redis.Stream = "whatsapp_messages"
	}
	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}

	return config, nil
}
