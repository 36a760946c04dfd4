// Package relay hands rendered messages to the upstream mail server.
package relay

import (
	"context"
	"crypto/tls"
	"errors"
	"net"

	"github.com/aws/smithy-go"
	"github.com/emersion/go-smtp"

	"mailservice/pkg/circuitbreaker"
)

// Relay is an outbound delivery backend. Send is a single attempt: no retries,
// no partial-recipient success.
type Relay interface {
	// Send transmits msg from the envelope sender to every recipient.
	Send(ctx context.Context, from string, recipients []string, msg []byte) error

	// Check opens and closes a session without sending anything.
	Check(ctx context.Context) error

	// Name returns the human-readable name of this relay.
	Name() string
}

// Failure reasons used as metric labels.
const (
	ReasonConnection  = "connection"
	ReasonTimeout     = "timeout"
	ReasonTLS         = "tls"
	ReasonAuth        = "auth"
	ReasonRejected    = "rejected"
	ReasonBreakerOpen = "breaker_open"
	ReasonUnknown     = "unknown"
)

// ErrAuthUnsupported is returned when credentials are configured but the
// server does not advertise AUTH.
var ErrAuthUnsupported = errors.New("relay does not support AUTH")

// ErrStartTLSUnsupported is returned when STARTTLS is required but not advertised.
var ErrStartTLSUnsupported = errors.New("relay does not support STARTTLS")

// stageError records which step of the session failed.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// Unavailable reports whether err says the relay itself is unreachable or
// unusable, as opposed to refusing one particular message.
func Unavailable(err error) bool {
	switch Classify(err) {
	case ReasonConnection, ReasonTimeout, ReasonTLS, ReasonAuth:
		return true
	}
	return false
}

// Classify maps a relay error onto a stable reason label.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		return ReasonBreakerOpen
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}

	var stage *stageError
	if errors.As(err, &stage) {
		switch stage.stage {
		case stageTLS:
			return ReasonTLS
		case stageAuth:
			return ReasonAuth
		}
	}

	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return ReasonTLS
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return ReasonTLS
	}

	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		if smtpErr.Code == 530 || smtpErr.Code == 534 || smtpErr.Code == 535 {
			return ReasonAuth
		}
		return ReasonRejected
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return ReasonRejected
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ReasonConnection
	}
	if stage != nil && stage.stage == stageConnect {
		return ReasonConnection
	}
	return ReasonUnknown
}
