// Package config содержит логику чтения конфигурации сервисов платформы.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервисов благотворительной платформы.
type Config struct {
	RunAddress        string `env:"RUN_ADDRESS"`
	DatabaseURI       string `env:"DATABASE_URI"`
	AuthSecret        string `env:"AUTH_SECRET"`
	MediaPath         string `env:"MEDIA_PATH"`
	PaymentRunAddress string `env:"PAYMENT_RUN_ADDRESS"`
	ProcessorAddress  string `env:"PROCESSOR_ADDRESS"`
	SMTPAddress       string `env:"SMTP_ADDRESS"`
	SMTPUsername      string `env:"SMTP_USERNAME"`
	SMTPPassword      string `env:"SMTP_PASSWORD"`
	MailFrom          string `env:"MAIL_FROM"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envMediaPath := cfg.MediaPath
	envPaymentRunAddress := cfg.PaymentRunAddress
	envProcessorAddress := cfg.ProcessorAddress

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.MediaPath, "m", "media", "directory for uploaded project images")
	flag.StringVar(&cfg.PaymentRunAddress, "p", "localhost:8081", "address and port for payment collector")
	flag.StringVar(&cfg.ProcessorAddress, "r", "", "payment processor address")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envMediaPath != "" {
		cfg.MediaPath = envMediaPath
	}
	if envPaymentRunAddress != "" {
		cfg.PaymentRunAddress = envPaymentRunAddress
	}
	if envProcessorAddress != "" {
		cfg.ProcessorAddress = envProcessorAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.AuthSecret == "" {
		cfg.AuthSecret = "charityfund-secret"
	}
	if cfg.MailFrom == "" {
		cfg.MailFrom = "noreply@charityfund.local"
	}

	return cfg, nil
}
