package relay

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"mailservice/config"
)

func TestFromConfig(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cfg := config.Default()
	cfg.SMTP.Host = "mail.example.org"
	cfg.SMTP.Port = 2525
	cfg.SMTP.InsecureSkipVerify = true

	r, err := FromConfig(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("FromConfig(smtp): %v", err)
	}
	smtpRelay, ok := r.(*SMTPRelay)
	if !ok {
		t.Fatalf("FromConfig(smtp): got %T, want *SMTPRelay", r)
	}
	if smtpRelay.Addr() != "mail.example.org:2525" {
		t.Errorf("addr: got %q", smtpRelay.Addr())
	}
	if !smtpRelay.cfg.TLSConfig.InsecureSkipVerify {
		t.Error("insecure_skip_verify was not applied")
	}

	cfg.Relay.Provider = config.ProviderSES
	cfg.SES.Region = "eu-west-1"
	cfg.SES.AccessKeyID = "AKIDEXAMPLE"
	cfg.SES.SecretAccessKey = "secret"
	r, err = FromConfig(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("FromConfig(ses): %v", err)
	}
	if r.Name() != "ses" {
		t.Errorf("name: got %q, want ses", r.Name())
	}

	cfg.Relay.Provider = "carrier-pigeon"
	if _, err := FromConfig(ctx, cfg, zap.NewNop()); err == nil {
		t.Error("FromConfig(unknown): want error")
	}
}
