package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SMTPConfig describes the upstream relay. UseTLS means STARTTLS on a
// plaintext port; ImplicitTLS means TLS from connect (port 465).
type SMTPConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	Username           string        `yaml:"username"`
	Password           string        `yaml:"password"`
	UseTLS             bool          `yaml:"use_tls"`
	ImplicitTLS        bool          `yaml:"implicit_tls"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	Timeout            time.Duration `yaml:"timeout"`
	LocalName          string        `yaml:"local_name"`
}

type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

type RelayConfig struct {
	Provider string        `yaml:"provider"` // smtp | ses
	Breaker  BreakerConfig `yaml:"breaker"`
	// Timeout bounds one send or health check for any provider. Zero falls back
	// to smtp.timeout for the smtp provider.
	Timeout time.Duration `yaml:"timeout"`
}

type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type MailConfig struct {
	FromEmail    string `yaml:"from_email"`
	FromName     string `yaml:"from_name"`
	HistoryLimit int    `yaml:"history_limit"`
}

type AuthConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	SecretKey string        `yaml:"secret_key"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
	Output string `yaml:"output"` // stdout | stderr | file path

	RequestResponse      bool          `yaml:"request_response"`
	EmailContent         bool          `yaml:"email_content"`
	SlowRequestThreshold time.Duration `yaml:"slow_request_threshold"`
}

type OTelConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if !strings.Contains(port, ":") {
			port = ":" + port
		}
		cfg.Port = port
	}
}

func OverrideSMTPFromEnv(cfg *SMTPConfig) {
	if host := os.Getenv("SMTP_HOST"); host != "" {
		cfg.Host = host
	}
	envInt("SMTP_PORT", &cfg.Port)
	if user := os.Getenv("SMTP_USERNAME"); user != "" {
		cfg.Username = user
	}
	if password := os.Getenv("SMTP_PASSWORD"); password != "" {
		cfg.Password = password
	}
	envBool("SMTP_USE_TLS", &cfg.UseTLS)
	envBool("SMTP_IMPLICIT_TLS", &cfg.ImplicitTLS)
	envBool("SMTP_INSECURE_SKIP_VERIFY", &cfg.InsecureSkipVerify)
	envDuration("SMTP_TIMEOUT", time.Second, &cfg.Timeout)
}

func OverrideRelayFromEnv(cfg *RelayConfig) {
	if p := os.Getenv("RELAY_PROVIDER"); p != "" {
		cfg.Provider = strings.ToLower(p)
	}
	envBool("RELAY_BREAKER_ENABLED", &cfg.Breaker.Enabled)
	envDuration("RELAY_TIMEOUT", time.Second, &cfg.Timeout)
}

func OverrideSESFromEnv(cfg *SESConfig) {
	if region := os.Getenv("SES_REGION"); region != "" {
		cfg.Region = region
	}
	if id := os.Getenv("SES_ACCESS_KEY_ID"); id != "" {
		cfg.AccessKeyID = id
	}
	if secret := os.Getenv("SES_SECRET_ACCESS_KEY"); secret != "" {
		cfg.SecretAccessKey = secret
	}
}

func OverrideMailFromEnv(cfg *MailConfig) {
	if from := os.Getenv("FROM_EMAIL"); from != "" {
		cfg.FromEmail = from
	}
	if name := os.Getenv("FROM_NAME"); name != "" {
		cfg.FromName = name
	}
	envInt("HISTORY_LIMIT", &cfg.HistoryLimit)
}

func OverrideAuthFromEnv(cfg *AuthConfig) {
	envBool("AUTH_ENABLED", &cfg.Enabled)
	if user := os.Getenv("AUTH_USERNAME"); user != "" {
		cfg.Username = user
	}
	if password := os.Getenv("AUTH_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if secret := os.Getenv("SECRET_KEY"); secret != "" {
		cfg.SecretKey = secret
	}
	envDuration("ACCESS_TOKEN_EXPIRE_MINUTES", time.Minute, &cfg.TokenTTL)
}

func OverrideCORSFromEnv(cfg *CORSConfig) {
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.Origins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Origins = append(cfg.Origins, o)
			}
		}
	}
}

func OverrideLoggingFromEnv(cfg *LoggingConfig) {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Level = strings.ToLower(level)
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Format = strings.ToLower(format)
	}
	if output := os.Getenv("LOG_OUTPUT"); output != "" {
		cfg.Output = output
	}
	envBool("LOG_REQUEST_RESPONSE", &cfg.RequestResponse)
	envBool("LOG_EMAIL_CONTENT", &cfg.EmailContent)
	envDuration("SLOW_REQUEST_THRESHOLD", time.Millisecond, &cfg.SlowRequestThreshold)
}

func OverrideOTelFromEnv(cfg *OTelConfig) {
	envBool("OTEL_ENABLED", &cfg.Enabled)
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		cfg.ServiceName = name
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// envDuration accepts either a Go duration ("45s") or a bare integer in unit.
func envDuration(key string, unit time.Duration, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * unit
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}
