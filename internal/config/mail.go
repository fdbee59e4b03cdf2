package config

import (
	"fmt"
	"net"
	"strconv"
)

// MailConfig holds SMTP delivery settings for the digest email.
type MailConfig struct {
	// Host of the SMTP server. Default: smtp.gmail.com
	Host string

	// Port of the SMTP server. Default: 587 (STARTTLS)
	Port int

	// Username for SMTP AUTH. Usually the sending address.
	Username string

	// Password for SMTP AUTH. App passwords for Gmail.
	Password string

	// From address on outgoing mail. Defaults to Username.
	From string

	// Recipient of the digest.
	Recipient string

	// Subject line prefix for digest mail. Default: "AI News Digest"
	Subject string
}

// LoadMailConfig loads SMTP configuration from environment variables.
// Returns a config with defaults if environment variables are not set.
// Validation is deferred to send time so SKIP_EMAIL runs never require
// SMTP credentials.
func LoadMailConfig() *MailConfig {
	config := &MailConfig{
		Host:      getEnvOrDefault("SMTP_HOST", "smtp.gmail.com"),
		Port:      getEnvInt("SMTP_PORT", 587),
		Username:  getEnvOrDefault("SMTP_USERNAME", ""),
		Password:  getEnvOrDefault("SMTP_PASSWORD", ""),
		From:      getEnvOrDefault("SMTP_FROM", ""),
		Recipient: getEnvOrDefault("DIGEST_RECIPIENT", ""),
		Subject:   getEnvOrDefault("DIGEST_SUBJECT", "AI News Digest"),
	}

	if config.From == "" {
		config.From = config.Username
	}

	return config
}

// Validate checks that the configuration is complete enough to send mail.
func (c *MailConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("SMTP_HOST cannot be empty")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("SMTP_PORT must be between 1 and 65535, got %d", c.Port)
	}

	if c.Username == "" {
		return fmt.Errorf("SMTP_USERNAME is required to send mail")
	}

	if c.Password == "" {
		return fmt.Errorf("SMTP_PASSWORD is required to send mail")
	}

	if c.Recipient == "" {
		return fmt.Errorf("DIGEST_RECIPIENT is required to send mail")
	}

	return nil
}

// Addr returns the host:port dial target.
func (c *MailConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
