package relay

import (
	"context"
	"crypto/tls"
	"fmt"

	"go.uber.org/zap"

	"mailservice/config"
)

// FromConfig builds the relay selected by cfg.Relay.Provider.
func FromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Relay, error) {
	switch cfg.Relay.Provider {
	case config.ProviderSES:
		logger.Info("Using SES relay", zap.String("region", cfg.SES.Region))
		r, err := NewSESRelay(ctx, SESConfig{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
		}, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	case config.ProviderSMTP, "":
		var tlsConfig *tls.Config
		if cfg.SMTP.InsecureSkipVerify {
			logger.Warn("SMTP certificate verification disabled")
			tlsConfig = &tls.Config{
				ServerName:         cfg.SMTP.Host,
				MinVersion:         tls.VersionTLS12,
				InsecureSkipVerify: true,
			}
		}
		r := NewSMTPRelay(SMTPConfig{
			Host:        cfg.SMTP.Host,
			Port:        cfg.SMTP.Port,
			Username:    cfg.SMTP.Username,
			Password:    cfg.SMTP.Password,
			StartTLS:    cfg.SMTP.UseTLS,
			ImplicitTLS: cfg.SMTP.ImplicitTLS,
			TLSConfig:   tlsConfig,
			Timeout:     cfg.SendTimeout(),
			LocalName:   cfg.SMTP.LocalName,
		}, logger)
		logger.Info("Using SMTP relay", zap.String("addr", r.Addr()))
		return r, nil
	default:
		return nil, fmt.Errorf("unknown relay provider %q", cfg.Relay.Provider)
	}
}
