package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

const minimal = `
mail:
  from_email: info@example.org
auth:
  password: changeme
  secret_key: test-secret
`

func TestLoad_FileOverDefaults(t *testing.T) {
	p := writeConfig(t, `
smtp:
  host: relay.example.org
  port: 2525
  timeout: 5s
mail:
  from_email: info@example.org
  history_limit: 50
auth:
  password: changeme
  secret_key: test-secret
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SMTP.Host != "relay.example.org" || cfg.SMTP.Port != 2525 || cfg.SMTP.Timeout != 5*time.Second {
		t.Errorf("smtp: got %+v", cfg.SMTP)
	}
	if !cfg.SMTP.UseTLS {
		t.Error("use_tls default lost")
	}
	if cfg.Mail.HistoryLimit != 50 {
		t.Errorf("history_limit: got %d", cfg.Mail.HistoryLimit)
	}
	if cfg.Server.Port != ":8000" || cfg.App.Version != "0.1.0" || cfg.Auth.TokenTTL != 30*time.Minute {
		t.Errorf("defaults lost: %+v %+v %+v", cfg.Server, cfg.App, cfg.Auth)
	}
}

func TestLoad_EnvWins(t *testing.T) {
	p := writeConfig(t, minimal)
	t.Setenv("SMTP_HOST", "env.example.org")
	t.Setenv("FROM_EMAIL", "env@example.org")
	t.Setenv("RELAY_PROVIDER", "SES")
	t.Setenv("SES_REGION", "eu-west-1")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SMTP.Host != "env.example.org" || cfg.Mail.FromEmail != "env@example.org" {
		t.Errorf("env overrides not applied: %+v %+v", cfg.SMTP, cfg.Mail)
	}
	if cfg.Relay.Provider != ProviderSES || cfg.SES.Region != "eu-west-1" {
		t.Errorf("relay: got %+v %+v", cfg.Relay, cfg.SES)
	}
}

func TestLoad_MissingFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("FROM_EMAIL", "info@example.org")
	t.Setenv("AUTH_ENABLED", "false")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.Enabled {
		t.Error("auth should be disabled")
	}
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(minimal), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "staging.yaml"), []byte("smtp:\n  host: staging.example.org\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_ENV", "staging")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SMTP.Host != "staging.example.org" || cfg.SMTP.Port != 587 {
		t.Errorf("smtp: got %+v", cfg.SMTP)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
		want string
	}{
		{"missing from", func(c *Config) { c.Mail.FromEmail = "" }, "from_email"},
		{"ses without region", func(c *Config) { c.Relay.Provider = ProviderSES }, "ses.region"},
		{"unknown provider", func(c *Config) { c.Relay.Provider = "pigeon" }, "relay.provider"},
		{"auth without secret", func(c *Config) { c.Auth.SecretKey = "" }, "secret_key"},
		{"both tls modes", func(c *Config) { c.SMTP.ImplicitTLS = true }, "mutually exclusive"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"negative relay timeout", func(c *Config) { c.Relay.Timeout = -time.Second }, "relay.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Mail.FromEmail = "info@example.org"
			cfg.Auth.Password = "pw"
			cfg.Auth.SecretKey = "k"
			if err := cfg.Validate(); err != nil {
				t.Fatalf("baseline invalid: %v", err)
			}
			tt.mod(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate: got %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestSendTimeout(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
		want time.Duration
	}{
		{"smtp falls back to smtp.timeout", func(c *Config) { c.SMTP.Timeout = 45 * time.Second }, 45 * time.Second},
		{"relay.timeout wins for smtp", func(c *Config) { c.Relay.Timeout = 5 * time.Second }, 5 * time.Second},
		{"ses ignores smtp.timeout", func(c *Config) {
			c.Relay.Provider = ProviderSES
			c.SMTP.Timeout = 45 * time.Second
		}, defaultSendTimeout},
		{"ses uses relay.timeout", func(c *Config) {
			c.Relay.Provider = ProviderSES
			c.Relay.Timeout = 10 * time.Second
		}, 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mod(cfg)
			if got := cfg.SendTimeout(); got != tt.want {
				t.Errorf("SendTimeout: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoad_RelayTimeoutFromEnv(t *testing.T) {
	p := writeConfig(t, minimal)
	t.Setenv("RELAY_TIMEOUT", "12")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Relay.Timeout != 12*time.Second || cfg.SendTimeout() != 12*time.Second {
		t.Errorf("relay timeout: got %v / %v, want 12s", cfg.Relay.Timeout, cfg.SendTimeout())
	}
}
