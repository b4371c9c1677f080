package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"

	"github.com/recruitflow/inbox-server-go/internal/sla"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                   int    `env:"PORT" envDefault:"8080"`
	DatabaseURL            string `env:"DATABASE_URL,required"`
	RedisURL               string `env:"REDIS_URL,required"`
	WebhookSignatureSecret string `env:"WEBHOOK_SIGNATURE_SECRET"`
	APIToken               string `env:"API_TOKEN"`
	AiAPIToken             string `env:"AI_API_TOKEN"`
	OutboundTTLSeconds     int    `env:"OUTBOUND_TTL_SECONDS" envDefault:"300"`
	SweepIntervalSeconds   int    `env:"SWEEP_INTERVAL_SECONDS" envDefault:"60"`
	SlaUrgentMinutes       int    `env:"SLA_URGENT_MINUTES" envDefault:"15"`
	SlaHighMinutes         int    `env:"SLA_HIGH_MINUTES" envDefault:"60"`
	SlaNormalMinutes       int    `env:"SLA_NORMAL_MINUTES" envDefault:"240"`
	SlaLowMinutes          int    `env:"SLA_LOW_MINUTES" envDefault:"1440"`
	RateLimitPerMin        int    `env:"RATE_LIMIT_PER_MIN" envDefault:"120"`
	LogLevel               string `env:"LOG_LEVEL" envDefault:"info"`
}

// OutboundTTL is how long a pending outbound message may wait for a delivery
// acknowledgment before the sweep fails it.
func (c *Config) OutboundTTL() time.Duration {
	return time.Duration(c.OutboundTTLSeconds) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// SlaPolicy builds the first-response policy from the per-priority windows.
func (c *Config) SlaPolicy() sla.Policy {
	return sla.FirstResponsePolicy{
		Urgent: time.Duration(c.SlaUrgentMinutes) * time.Minute,
		High:   time.Duration(c.SlaHighMinutes) * time.Minute,
		Normal: time.Duration(c.SlaNormalMinutes) * time.Minute,
		Low:    time.Duration(c.SlaLowMinutes) * time.Minute,
	}
}

func (c *Config) Validate(isProduction bool) error {
	if isProduction {
		if err := validateSecret("API_TOKEN", c.APIToken); err != nil {
			return err
		}
		if c.AiAPIToken != "" {
			if err := validateSecret("AI_API_TOKEN", c.AiAPIToken); err != nil {
				return err
			}
		}

		if c.WebhookSignatureSecret == "" {
			log.Warn().Msg("WEBHOOK_SIGNATURE_SECRET is empty in production: webhook signature verification disabled")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	if c.OutboundTTLSeconds <= 0 {
		return fmt.Errorf("OUTBOUND_TTL_SECONDS must be positive")
	}
	if c.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_SECONDS must be positive")
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
