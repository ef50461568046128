package config

import (
	"fmt"
	"os"

	"github.com/cosmix/deskbridge/pkg/constants"
	"github.com/joho/godotenv"
)

type Config struct {
	// OfferingReference identifies this deployment's app offering in the
	// ticketing system. App instances with a different reference are never
	// accepted during the installation handshake.
	OfferingReference string

	// ProviderAccount is the account the bridge authenticates as when it
	// talks to the ticketing system with provider-level credentials.
	ProviderAccount string

	// TicketingAPIURL is the base URL of the ticketing system's REST API.
	TicketingAPIURL string

	// TicketingDomain is used to build user-facing ticket URLs of the form
	// https://<account>.<domain>/requests/<id>.
	TicketingDomain string

	// CallbackURL is this deployment's publicly reachable events endpoint,
	// used as the OAuth redirect URI during the installation handshake.
	CallbackURL string

	// SecretsNamespace prefixes every key in the secrets store so multiple
	// deployments can share one Redis.
	SecretsNamespace string

	// SlashCommand is the slash command name (without the leading slash)
	// this deployment is registered under, used in usage text.
	SlashCommand string

	RedisURL     string
	NATSURL      string
	QueueSubject string
	SlackAPIURL  string
	Port         string
}

func Load() (*Config, error) {
	// Local development convenience; a missing .env file is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		OfferingReference: os.Getenv("OFFERING_REFERENCE"),
		ProviderAccount:   os.Getenv("PROVIDER_ACCOUNT"),
		TicketingAPIURL:   os.Getenv("TICKETING_API_URL"),
		TicketingDomain:   os.Getenv("TICKETING_DOMAIN"),
		CallbackURL:       os.Getenv("CALLBACK_URL"),
		SecretsNamespace:  os.Getenv("SECRETS_NAMESPACE"),
		SlashCommand:      os.Getenv("SLASH_COMMAND"),
		RedisURL:          os.Getenv("REDIS_URL"),
		NATSURL:           os.Getenv("NATS_URL"),
		QueueSubject:      os.Getenv("QUEUE_SUBJECT"),
		SlackAPIURL:       os.Getenv("SLACK_API_URL"),
		Port:              os.Getenv("PORT"),
	}

	if cfg.SlashCommand == "" {
		cfg.SlashCommand = "ticket"
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = constants.DefaultRedisURL
	}
	if cfg.QueueSubject == "" {
		cfg.QueueSubject = constants.DefaultQueueSubject
	}
	if cfg.SlackAPIURL == "" {
		cfg.SlackAPIURL = constants.SlackAPIURL
	}
	if cfg.Port == "" {
		cfg.Port = constants.DefaultPort
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.OfferingReference == "" {
		return fmt.Errorf("OFFERING_REFERENCE is required")
	}
	if c.ProviderAccount == "" {
		return fmt.Errorf("PROVIDER_ACCOUNT is required")
	}
	if c.TicketingAPIURL == "" {
		return fmt.Errorf("TICKETING_API_URL is required")
	}
	if c.TicketingDomain == "" {
		return fmt.Errorf("TICKETING_DOMAIN is required")
	}
	if c.CallbackURL == "" {
		return fmt.Errorf("CALLBACK_URL is required")
	}
	if c.SecretsNamespace == "" {
		return fmt.Errorf("SECRETS_NAMESPACE is required")
	}
	if c.NATSURL == "" {
		return fmt.Errorf("NATS_URL is required")
	}
	return nil
}
