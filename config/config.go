package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	pkgconfig "mailservice/pkg/config"
)

type Config struct {
	App     pkgconfig.AppConfig     `yaml:"app"`
	Server  pkgconfig.ServerConfig  `yaml:"server"`
	SMTP    pkgconfig.SMTPConfig    `yaml:"smtp"`
	Relay   pkgconfig.RelayConfig   `yaml:"relay"`
	SES     pkgconfig.SESConfig     `yaml:"ses"`
	Mail    pkgconfig.MailConfig    `yaml:"mail"`
	Auth    pkgconfig.AuthConfig    `yaml:"auth"`
	CORS    pkgconfig.CORSConfig    `yaml:"cors"`
	Logging pkgconfig.LoggingConfig `yaml:"logging"`
	OTel    pkgconfig.OTelConfig    `yaml:"otel"`
}

const (
	ProviderSMTP = "smtp"
	ProviderSES  = "ses"
)

func Default() *Config {
	return &Config{
		App: pkgconfig.AppConfig{Name: "Mail Service", Version: "0.1.0"},
		Server: pkgconfig.ServerConfig{
			Port:            ":8000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		SMTP: pkgconfig.SMTPConfig{
			Host:    "smtp.gmail.com",
			Port:    587,
			UseTLS:  true,
			Timeout: 30 * time.Second,
		},
		Relay: pkgconfig.RelayConfig{
			Provider: ProviderSMTP,
			Breaker: pkgconfig.BreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          30 * time.Second,
			},
		},
		Mail: pkgconfig.MailConfig{
			FromName:     "Mail Service",
			HistoryLimit: 10000,
		},
		Auth: pkgconfig.AuthConfig{
			Enabled:  true,
			Username: "admin",
			TokenTTL: 30 * time.Minute,
		},
		CORS: pkgconfig.CORSConfig{
			Origins: []string{"http://localhost:3000", "http://localhost:8080"},
		},
		Logging: pkgconfig.LoggingConfig{
			Level:                "info",
			Format:               "json",
			Output:               "stdout",
			SlowRequestThreshold: time.Second,
		},
		OTel: pkgconfig.OTelConfig{ServiceName: "mail-service"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// When path is a directory the layered base/<CONFIG_ENV>/secrets loader is
// used instead. A missing file is not an error; env and defaults still apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		info, err := os.Stat(path)
		switch {
		case err == nil && info.IsDir():
			merged, err := pkgconfig.LoadConfig(pkgconfig.GetConfigEnv(), path)
			if err != nil {
				return nil, err
			}
			if err := pkgconfig.Decode(merged, cfg); err != nil {
				return nil, err
			}
		case err == nil:
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}

	overrideFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideFromEnv(cfg *Config) {
	pkgconfig.OverrideServerFromEnv(&cfg.Server)
	pkgconfig.OverrideSMTPFromEnv(&cfg.SMTP)
	pkgconfig.OverrideRelayFromEnv(&cfg.Relay)
	pkgconfig.OverrideSESFromEnv(&cfg.SES)
	pkgconfig.OverrideMailFromEnv(&cfg.Mail)
	pkgconfig.OverrideAuthFromEnv(&cfg.Auth)
	pkgconfig.OverrideCORSFromEnv(&cfg.CORS)
	pkgconfig.OverrideLoggingFromEnv(&cfg.Logging)
	pkgconfig.OverrideOTelFromEnv(&cfg.OTel)
}

const defaultSendTimeout = 30 * time.Second

// SendTimeout is the budget for a single relay send or health check.
func (c *Config) SendTimeout() time.Duration {
	switch {
	case c.Relay.Timeout > 0:
		return c.Relay.Timeout
	case c.Relay.Provider == ProviderSMTP && c.SMTP.Timeout > 0:
		return c.SMTP.Timeout
	default:
		return defaultSendTimeout
	}
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Mail.FromEmail == "" {
		errs = append(errs, errors.New("mail.from_email is required"))
	}
	switch c.Relay.Provider {
	case ProviderSMTP:
		if c.SMTP.Host == "" {
			errs = append(errs, errors.New("smtp.host is required"))
		}
		if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
			errs = append(errs, fmt.Errorf("smtp.port %d is out of range", c.SMTP.Port))
		}
		if c.SMTP.UseTLS && c.SMTP.ImplicitTLS {
			errs = append(errs, errors.New("smtp.use_tls and smtp.implicit_tls are mutually exclusive"))
		}
	case ProviderSES:
		if c.SES.Region == "" {
			errs = append(errs, errors.New("ses.region is required when relay.provider is ses"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown relay.provider %q", c.Relay.Provider))
	}
	if c.Auth.Enabled {
		if c.Auth.SecretKey == "" {
			errs = append(errs, errors.New("auth.secret_key is required when auth is enabled"))
		}
		if c.Auth.Username == "" || c.Auth.Password == "" {
			errs = append(errs, errors.New("auth.username and auth.password are required when auth is enabled"))
		}
		if c.Auth.TokenTTL <= 0 {
			errs = append(errs, errors.New("auth.token_ttl must be positive"))
		}
	}
	if c.Relay.Timeout < 0 {
		errs = append(errs, errors.New("relay.timeout must not be negative"))
	}
	if c.Mail.HistoryLimit < 0 {
		errs = append(errs, errors.New("mail.history_limit must not be negative"))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.format %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}
