package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"caseline/internal/domain"
	"caseline/internal/rules"
)

// Config is the on-disk configuration, read from caseline.yml in the
// workspace. Everything has a working default; the file is optional.
type Config struct {
	Workspace string       `yaml:"workspace,omitempty"`
	Server    ServerConfig `yaml:"server"`
	Intake    IntakeConfig `yaml:"intake"`

	// Reasons replaces the built-in escalation reason catalog when set.
	Reasons []domain.EscalationReason `yaml:"escalation_reasons,omitempty"`

	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	JWTSecret string `yaml:"jwt_secret,omitempty"`
}

type IntakeConfig struct {
	DefaultPriority domain.Priority `yaml:"default_priority"`
	DefaultDueDays  int             `yaml:"default_due_days"`
}

type WebhookConfig struct {
	URL    string   `yaml:"url"`
	Events []string `yaml:"events,omitempty"`
	Secret string   `yaml:"secret,omitempty"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8484"},
		Intake: IntakeConfig{
			DefaultPriority: domain.PriorityMedium,
			DefaultDueDays:  30,
		},
	}
}

// Load reads path if it exists, layering it over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	switch c.Intake.DefaultPriority {
	case domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh, domain.PriorityCritical:
	default:
		return fmt.Errorf("intake.default_priority %q is not a priority", c.Intake.DefaultPriority)
	}
	if c.Intake.DefaultDueDays < 0 {
		return fmt.Errorf("intake.default_due_days must not be negative")
	}
	if len(c.Reasons) > 0 {
		if _, err := rules.NewCatalog(c.Reasons); err != nil {
			return fmt.Errorf("escalation_reasons: %w", err)
		}
	}
	for i, w := range c.Webhooks {
		if w.URL == "" {
			return fmt.Errorf("webhooks[%d].url must not be empty", i)
		}
	}
	return nil
}

// Catalog builds the effective escalation reason catalog.
func (c Config) Catalog() (*rules.Catalog, error) {
	if len(c.Reasons) == 0 {
		return rules.DefaultCatalog(), nil
	}
	return rules.NewCatalog(c.Reasons)
}

// Write marshals the config to path, used by `cl config init`.
func (c Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
