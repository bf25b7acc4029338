package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// SenderConfig carries transport credentials. These are secrets, so they
// come from the environment rather than the config file.
type SenderConfig struct {
	SMTPHost     string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"SMTP_USER"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:"no-reply@herald.local"`

	BotToken  string `envconfig:"BOT_TOKEN"`
	BotAPIURL string `envconfig:"BOT_API_URL" default:"https://api.telegram.org"`
}

func LoadSenderConfig() (*SenderConfig, error) {
	var cfg SenderConfig
	if err := envconfig.Process("HERALD", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load sender config: %w", err)
	}
	return &cfg, nil
}
