package relay

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
)

const (
	stageConnect = "connect"
	stageHello   = "hello"
	stageTLS     = "starttls"
	stageAuth    = "auth"
	stageMail    = "mail"
	stageRcpt    = "rcpt"
	stageData    = "data"
	stageQuit    = "quit"
)

const defaultTimeout = 30 * time.Second

// SMTPConfig configures an SMTPRelay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// StartTLS upgrades the plaintext session before AUTH.
	StartTLS bool
	// ImplicitTLS wraps the connection in TLS from the first byte (port 465 style).
	ImplicitTLS bool

	TLSConfig *tls.Config

	// Timeout bounds the whole session, connect through QUIT.
	Timeout   time.Duration
	LocalName string
}

// SMTPRelay opens a fresh connection per call.
type SMTPRelay struct {
	cfg    SMTPConfig
	dialer *net.Dialer
	logger *zap.Logger
}

func NewSMTPRelay(cfg SMTPConfig, logger *zap.Logger) *SMTPRelay {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.LocalName == "" {
		cfg.LocalName = "localhost"
	}
	if cfg.TLSConfig == nil {
		cfg.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.TLSConfig.ServerName == "" {
		tc := cfg.TLSConfig.Clone()
		tc.ServerName = cfg.Host
		cfg.TLSConfig = tc
	}
	return &SMTPRelay{
		cfg:    cfg,
		dialer: &net.Dialer{},
		logger: logger,
	}
}

func (r *SMTPRelay) Name() string {
	return "smtp"
}

func (r *SMTPRelay) Addr() string {
	return net.JoinHostPort(r.cfg.Host, strconv.Itoa(r.cfg.Port))
}

// Send runs connect, optional TLS, optional AUTH, MAIL/RCPT/DATA and QUIT.
// Any failing step aborts the whole send.
func (r *SMTPRelay) Send(ctx context.Context, from string, recipients []string, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	s, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	c := s.client

	if err := c.Mail(from, nil); err != nil {
		return s.fail(stageMail, err)
	}
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return s.fail(stageRcpt, fmt.Errorf("%s: %w", rcpt, err))
		}
	}
	w, err := c.Data()
	if err != nil {
		return s.fail(stageData, err)
	}
	if _, err := io.Copy(w, bytes.NewReader(msg)); err != nil {
		w.Close()
		return s.fail(stageData, err)
	}
	if err := w.Close(); err != nil {
		return s.fail(stageData, err)
	}
	if err := c.Quit(); err != nil {
		return s.fail(stageQuit, err)
	}

	r.logger.Debug("Message handed to relay",
		zap.String("addr", r.Addr()),
		zap.Int("recipients", len(recipients)),
		zap.Int("bytes", len(msg)),
	)
	return nil
}

// Check performs the same connect/TLS/AUTH sequence as Send, then QUITs.
func (r *SMTPRelay) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	s, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.client.Quit(); err != nil {
		return s.fail(stageQuit, err)
	}
	return nil
}

// session is one relay connection bound to a context. The connection is
// closed as soon as the context ends, whatever command is in flight.
type session struct {
	ctx    context.Context
	conn   net.Conn
	client *smtp.Client
	stop   func() bool
}

func (s *session) close() {
	s.stop()
	if s.client != nil {
		s.client.Close()
		return
	}
	s.conn.Close()
}

// fail tags err with the stage it happened in. When the session context has
// ended, its error is attached so the failure reads as a timeout or
// cancellation rather than a closed connection.
func (s *session) fail(stage string, err error) error {
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	return &stageError{stage: stage, err: err}
}

// setTimeouts caps go-smtp's per-command deadlines at the remaining budget.
func (s *session) setTimeouts() {
	deadline, ok := s.ctx.Deadline()
	if !ok {
		return
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		remaining = time.Millisecond
	}
	s.client.CommandTimeout = remaining
	s.client.SubmissionTimeout = remaining
}

// go-smtp reports a missing STARTTLS extension with an unexported error.
const startTLSUnsupportedMsg = "smtp: server doesn't support STARTTLS"

func (r *SMTPRelay) open(ctx context.Context) (*session, error) {
	conn, err := r.dialer.DialContext(ctx, "tcp", r.Addr())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, &stageError{stage: stageConnect, err: err}
	}
	s := &session{ctx: ctx, conn: conn}
	s.stop = context.AfterFunc(ctx, func() { conn.Close() })
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if r.cfg.ImplicitTLS {
		tlsConn := tls.Client(conn, r.cfg.TLSConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			s.close()
			return nil, s.fail(stageTLS, err)
		}
		s.conn = tlsConn
	}

	if r.cfg.StartTLS && !r.cfg.ImplicitTLS {
		// The pre-TLS EHLO is sent as "localhost"; LocalName is used once encrypted.
		c, err := smtp.NewClientStartTLS(s.conn, r.cfg.TLSConfig)
		if err != nil {
			s.close()
			var smtpErr *smtp.SMTPError
			switch {
			case err.Error() == startTLSUnsupportedMsg:
				err = ErrStartTLSUnsupported
			case errors.As(err, &smtpErr) && smtpErr.Code != 454:
				return nil, s.fail(stageHello, err)
			}
			return nil, s.fail(stageTLS, err)
		}
		s.client = c
		s.setTimeouts()
		if err := c.Hello(r.cfg.LocalName); err != nil {
			s.close()
			return nil, s.fail(stageTLS, err)
		}
	} else {
		s.client = smtp.NewClient(s.conn)
		s.setTimeouts()
		if err := s.client.Hello(r.cfg.LocalName); err != nil {
			s.close()
			return nil, s.fail(stageHello, err)
		}
	}

	if r.cfg.Username != "" {
		if ok, _ := s.client.Extension("AUTH"); !ok {
			s.close()
			return nil, s.fail(stageAuth, ErrAuthUnsupported)
		}
		auth := sasl.NewPlainClient("", r.cfg.Username, r.cfg.Password)
		if err := s.client.Auth(auth); err != nil {
			s.close()
			return nil, s.fail(stageAuth, err)
		}
	}
	return s, nil
}
