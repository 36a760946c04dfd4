package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"mailservice/internal/message"
	"mailservice/internal/model"
	"mailservice/internal/relay"
	"mailservice/internal/validation"
	"mailservice/pkg/circuitbreaker"
	"mailservice/pkg/logger"
	"mailservice/pkg/metrics"
	"mailservice/pkg/otel"
)

// HistoryStore is the send log backing /history.
type HistoryStore interface {
	Append(ctx context.Context, h *model.EmailHistory) error
	Update(ctx context.Context, messageID string, fn func(*model.EmailHistory)) error
	List(ctx context.Context, limit int) ([]*model.EmailHistory, error)
	Get(ctx context.Context, messageID string) (*model.EmailHistory, error)
	Len() int
}

type MailOptions struct {
	// Breaker, when set, guards relay sends. Health probes bypass it.
	Breaker *circuitbreaker.CircuitBreaker
	// Timeout bounds a single relay send or probe.
	Timeout time.Duration
	Version string
	// LogContent logs subject and body at debug level.
	LogContent bool
}

type MailService struct {
	validator *validation.Validator
	builder   *message.Builder
	relay     relay.Relay
	history   HistoryStore
	opts      MailOptions
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
}

func NewMailService(
	validator *validation.Validator,
	builder *message.Builder,
	r relay.Relay,
	history HistoryStore,
	opts MailOptions,
	logger *zap.Logger,
) *MailService {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Breaker != nil {
		name := r.Name()
		opts.Breaker.OnStateChange(func(from, to circuitbreaker.State) {
			metrics.SetCircuitBreakerState(name, int(to))
			logger.Warn("Relay circuit breaker changed state",
				zap.String("relay", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		})
	}
	return &MailService{
		validator: validator,
		builder:   builder,
		relay:     r,
		history:   history,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Send validates, renders and relays req. Invalid requests return a
// *validation.Error and leave no history. Otherwise exactly one history entry
// is created and finalized; a relay failure is reported through the response
// status, not the error.
func (s *MailService) Send(ctx context.Context, req *model.EmailRequest) (*model.EmailResponse, error) {
	log := logger.WithTrace(ctx, s.logger)

	atts, err := s.validator.Validate(req)
	if err != nil {
		metrics.IncrementEmails("invalid")
		log.Info("Email request rejected", zap.Error(err))
		return nil, err
	}

	id := s.newID()
	entry := &model.EmailHistory{
		MessageID: id,
		Status:    model.StatusPending,
		To:        req.To,
		Cc:        req.Cc,
		Bcc:       req.Bcc,
		Subject:   req.Subject,
		Body:      req.Body,
		IsHTML:    req.IsHTML,
		CreatedAt: s.now().UTC(),
	}
	if err := s.history.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record send attempt: %w", err)
	}
	metrics.SetHistoryEntries(s.history.Len())

	log = log.With(zap.String("message_id", id))
	fields := []zap.Field{
		zap.Int("recipients", len(req.Recipients())),
		zap.Int("attachments", len(atts)),
	}
	if s.opts.LogContent {
		fields = append(fields, zap.String("subject", req.Subject), zap.String("body", req.Body))
	}
	log.Debug("Sending email", fields...)

	sendErr := s.deliver(ctx, req, id, atts)

	resp := &model.EmailResponse{
		MessageID: id,
		To:        req.To,
		Subject:   req.Subject,
	}
	var update func(*model.EmailHistory)
	if sendErr != nil {
		msg := sendErr.Error()
		resp.Status = model.StatusFailed
		resp.ErrorMessage = &msg
		update = func(h *model.EmailHistory) {
			h.Status = model.StatusFailed
			h.ErrorMessage = &msg
		}
		metrics.IncrementEmails(string(model.StatusFailed))
		log.Error("Email send failed", zap.String("reason", relay.Classify(sendErr)), zap.Error(sendErr))
	} else {
		sentAt := s.now().UTC()
		resp.Status = model.StatusSent
		resp.SentAt = &sentAt
		update = func(h *model.EmailHistory) {
			h.Status = model.StatusSent
			h.SentAt = &sentAt
		}
		metrics.IncrementEmails(string(model.StatusSent))
		log.Info("Email sent", zap.Strings("to", req.To))
	}

	if err := s.history.Update(ctx, id, update); err != nil {
		// Evicted between append and update; the caller still gets the outcome.
		log.Warn("Failed to finalize history entry", zap.Error(err))
	}
	return resp, nil
}

func (s *MailService) deliver(ctx context.Context, req *model.EmailRequest, id string, atts []validation.Attachment) error {
	raw, err := s.builder.Build(req, id, atts)
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	ctx, span := otel.StartSpan(ctx, "relay.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("relay.provider", s.relay.Name()),
		attribute.String("mail.message_id", id),
		attribute.Int("mail.recipients", len(req.Recipients())),
		attribute.Int("mail.size", len(raw)),
	)

	start := time.Now()
	if s.opts.Breaker != nil {
		// Only outages trip the breaker; a refused message still reaches the caller.
		var refused error
		err = s.opts.Breaker.Execute(func() error {
			err := s.relay.Send(ctx, s.builder.From(), req.Recipients(), raw)
			if err != nil && !relay.Unavailable(err) {
				refused = err
				return nil
			}
			return err
		})
		if err == nil {
			err = refused
		}
	} else {
		err = s.relay.Send(ctx, s.builder.From(), req.Recipients(), raw)
	}
	result := "ok"
	if err != nil {
		result = "error"
		reason := relay.Classify(err)
		metrics.IncrementRelayFailure(s.relay.Name(), reason)
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
	}
	metrics.RecordRelayDuration(s.relay.Name(), "send", result, time.Since(start))
	return err
}

// History returns up to limit of the most recent entries, oldest first.
func (s *MailService) History(ctx context.Context, limit int) ([]*model.EmailHistory, error) {
	return s.history.List(ctx, limit)
}

func (s *MailService) Get(ctx context.Context, messageID string) (*model.EmailHistory, error) {
	return s.history.Get(ctx, messageID)
}

// Health never fails: an open breaker is unhealthy, a failed probe degraded.
func (s *MailService) Health(ctx context.Context) *model.HealthCheck {
	hc := &model.HealthCheck{
		Status:    model.HealthHealthy,
		Version:   s.opts.Version,
		Timestamp: s.now().UTC(),
	}

	if s.opts.Breaker != nil && s.opts.Breaker.GetState() == circuitbreaker.StateOpen {
		hc.Status = model.HealthUnhealthy
		return hc
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	err := s.relay.Check(ctx)
	result := "ok"
	if err != nil {
		result = "error"
		hc.Status = model.HealthDegraded
		logger.WithTrace(ctx, s.logger).Warn("Relay health probe failed",
			zap.String("relay", s.relay.Name()),
			zap.String("reason", relay.Classify(err)),
			zap.Error(err),
		)
	} else {
		hc.RelayConnection = true
	}
	metrics.RecordRelayDuration(s.relay.Name(), "check", result, time.Since(start))
	return hc
}
