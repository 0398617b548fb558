package application

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// SelectionConfig configures recipient padding selection.
type SelectionConfig struct {
	Strategy string `yaml:"strategy"`
	Seed     int64  `yaml:"seed"`
}

// Config defines escalation engine configuration.
type Config struct {
	SweepInterval    time.Duration   `yaml:"sweep_interval"`
	DeliveryInterval time.Duration   `yaml:"delivery_interval"`
	Workers          int             `yaml:"workers"`
	RepeatPolicy     string          `yaml:"repeat_policy"`
	Selection        SelectionConfig `yaml:"selection"`
	WebhookURL       string          `yaml:"webhook_url"`
	NotifyTemplate   string          `yaml:"notify_template"`
	RedisURL         string          `yaml:"redis_url"`
	LeaseTTL         time.Duration   `yaml:"lease_ttl"`
}

// LoadConfig loads engine config from env, optionally merged with a YAML file
// pointed at by ESCALATION_CONFIG.
func LoadConfig() (Config, error) {
	cfg := Config{
		SweepInterval:    getenvDuration("ESCALATION_SWEEP_INTERVAL", 5*time.Minute),
		DeliveryInterval: getenvDuration("ESCALATION_DELIVERY_INTERVAL", time.Minute),
		Workers:          getenvIntDefault("ESCALATION_WORKERS", 4),
		RepeatPolicy:     getenvDefault("ESCALATION_REPEAT_POLICY", string(RepeatPolicyIntervalBoundary)),
		Selection: SelectionConfig{
			Strategy: getenvDefault("ESCALATION_SELECTION_STRATEGY", "random"),
		},
		WebhookURL:     os.Getenv("ESCALATION_WEBHOOK_URL"),
		NotifyTemplate: os.Getenv("ESCALATION_NOTIFY_TEMPLATE"),
		RedisURL:       os.Getenv("ESCALATION_REDIS_URL"),
		LeaseTTL:       getenvDuration("ESCALATION_LEASE_TTL", 30*time.Second),
	}

	if path := os.Getenv("ESCALATION_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.SweepInterval <= 0 {
		return cfg, errors.New("escalation config: sweep interval must be positive")
	}
	if cfg.Workers <= 0 {
		return cfg, errors.New("escalation config: workers must be positive")
	}
	if !RepeatPolicy(cfg.RepeatPolicy).Valid() {
		return cfg, errors.New("escalation config: invalid repeat policy")
	}
	switch cfg.Selection.Strategy {
	case "random", "round_robin":
	default:
		return cfg, errors.New("escalation config: invalid selection strategy")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
