package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"mailservice/internal/message"
	"mailservice/internal/model"
	"mailservice/internal/repository"
	"mailservice/internal/validation"
	"mailservice/pkg/circuitbreaker"
)

type fakeRelay struct {
	mu       sync.Mutex
	sendErr  error
	checkErr error
	block    bool
	calls    int
	from     string
	rcpts    []string
	msg      []byte
}

func (f *fakeRelay) Send(ctx context.Context, from string, rcpts []string, msg []byte) error {
	f.mu.Lock()
	f.calls++
	f.from, f.rcpts, f.msg = from, rcpts, msg
	block, err := f.block, f.sendErr
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (f *fakeRelay) Check(context.Context) error { return f.checkErr }
func (f *fakeRelay) Name() string { return "fake" }

func (f *fakeRelay) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newService(r *fakeRelay, opts MailOptions) (*MailService, *repository.HistoryRepository) {
	repo := repository.NewHistoryRepository(0)
	opts.Version = "0.1.0"
	svc := NewMailService(
		validation.NewValidator(),
		message.NewBuilder("Mail Service", "info@example.org"),
		r,
		repo,
		opts,
		zap.NewNop(),
	)
	return svc, repo
}

func request() *model.EmailRequest {
	return &model.EmailRequest{
		To:      []string{"a@example.com"},
		Cc:      []string{"c@example.com"},
		Bcc:     []string{"b@example.com"},
		Subject: "S",
		Body:    "B",
	}
}

func TestMailService_SendSuccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := &fakeRelay{}
	svc, _ := newService(r, MailOptions{})

	resp, err := svc.Send(ctx, request())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Status != model.StatusSent || resp.SentAt == nil || resp.ErrorMessage != nil {
		t.Errorf("response: got %+v", resp)
	}
	if r.from != "info@example.org" {
		t.Errorf("envelope from: got %q", r.from)
	}
	if len(r.rcpts) != 3 || r.rcpts[2] != "b@example.com" {
		t.Errorf("envelope rcpts: got %v", r.rcpts)
	}

	h, err := svc.Get(ctx, resp.MessageID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if h.Status != model.StatusSent || h.Subject != "S" || h.SentAt == nil {
		t.Errorf("history: got %+v", h)
	}
}

func TestMailService_InvalidRequestLeavesNoHistory(t *testing.T) {
	t.Parallel()

	r := &fakeRelay{}
	svc, repo := newService(r, MailOptions{})

	_, err := svc.Send(context.Background(), &model.EmailRequest{To: []string{}, Subject: "S", Body: "B"})
	if _, ok := validation.AsError(err); !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	if repo.Len() != 0 {
		t.Errorf("history: got %d entries, want 0", repo.Len())
	}
	if r.callCount() != 0 {
		t.Error("relay was contacted for an invalid request")
	}
}

func TestMailService_RelayFailureIsRecorded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, repo := newService(&fakeRelay{sendErr: errors.New("connection refused")}, MailOptions{})

	resp, err := svc.Send(ctx, request())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Status != model.StatusFailed || resp.ErrorMessage == nil || *resp.ErrorMessage == "" {
		t.Errorf("response: got %+v", resp)
	}
	if resp.SentAt != nil {
		t.Error("sent_at set on failure")
	}
	if repo.Len() != 1 {
		t.Fatalf("history: got %d entries, want 1", repo.Len())
	}
	h, _ := svc.Get(ctx, resp.MessageID)
	if h.Status != model.StatusFailed || h.ErrorMessage == nil {
		t.Errorf("history: got %+v", h)
	}
}

func TestMailService_TimeoutFailsSend(t *testing.T) {
	t.Parallel()

	svc, _ := newService(&fakeRelay{block: true}, MailOptions{Timeout: 50 * time.Millisecond})

	resp, err := svc.Send(context.Background(), request())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Status != model.StatusFailed {
		t.Errorf("status: got %q, want failed", resp.Status)
	}
}

func TestMailService_BreakerShortCircuits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := &fakeRelay{sendErr: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}
	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{FailureThreshold: 1, Timeout: time.Hour})
	svc, _ := newService(r, MailOptions{Breaker: cb})

	_, _ = svc.Send(ctx, request())
	resp, _ := svc.Send(ctx, request())

	if r.callCount() != 1 {
		t.Errorf("relay calls: got %d, want 1", r.callCount())
	}
	if resp.Status != model.StatusFailed || resp.ErrorMessage == nil || *resp.ErrorMessage != circuitbreaker.ErrCircuitBreakerOpen.Error() {
		t.Errorf("response: got %+v", resp)
	}
	if hc := svc.Health(ctx); hc.Status != model.HealthUnhealthy || hc.RelayConnection {
		t.Errorf("health: got %+v", hc)
	}
}

func TestMailService_RefusedMessagesDoNotTripBreaker(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := &fakeRelay{sendErr: &smtp.SMTPError{Code: 550, Message: "no such user"}}
	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{FailureThreshold: 1, Timeout: time.Hour})
	svc, _ := newService(r, MailOptions{Breaker: cb})

	for i := 0; i < 3; i++ {
		resp, err := svc.Send(ctx, request())
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
		if resp.Status != model.StatusFailed || resp.ErrorMessage == nil || !strings.Contains(*resp.ErrorMessage, "no such user") {
			t.Errorf("send %d: got %+v", i, resp)
		}
	}

	if r.callCount() != 3 {
		t.Errorf("relay calls: got %d, want 3", r.callCount())
	}
	if cb.GetState() != circuitbreaker.StateClosed {
		t.Errorf("breaker: got %v, want closed", cb.GetState())
	}
	if hc := svc.Health(ctx); hc.Status != model.HealthHealthy {
		t.Errorf("health: got %q, want healthy", hc.Status)
	}
}

func TestMailService_Health(t *testing.T) {
	t.Parallel()

	ok, _ := newService(&fakeRelay{}, MailOptions{})
	hc := ok.Health(context.Background())
	if hc.Status != model.HealthHealthy || !hc.RelayConnection || hc.Version != "0.1.0" {
		t.Errorf("healthy: got %+v", hc)
	}

	bad, _ := newService(&fakeRelay{checkErr: errors.New("dial tcp: refused")}, MailOptions{})
	hc = bad.Health(context.Background())
	if hc.Status != model.HealthDegraded || hc.RelayConnection {
		t.Errorf("degraded: got %+v", hc)
	}
}

func TestMailService_HistoryMostRecentLast(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newService(&fakeRelay{}, MailOptions{})
	var ids []string
	for i := 0; i < 10; i++ {
		req := request()
		req.Subject = fmt.Sprintf("S%d", i)
		resp, err := svc.Send(ctx, req)
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
		ids = append(ids, resp.MessageID)
	}

	got, err := svc.History(ctx, 5)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("History: got %d entries, want 5", len(got))
	}
	for i, h := range got {
		if h.MessageID != ids[5+i] {
			t.Errorf("entry %d: got %s, want %s", i, h.MessageID, ids[5+i])
		}
	}
}

func TestMailService_ConcurrentSends(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, repo := newService(&fakeRelay{}, MailOptions{})
	const n = 25

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := svc.Send(ctx, request())
			if err != nil {
				errs <- err
				return
			}
			if resp.Status != model.StatusSent {
				errs <- fmt.Errorf("status %q", resp.Status)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	all, _ := repo.List(ctx, n)
	if len(all) != n {
		t.Fatalf("history: got %d, want %d", len(all), n)
	}
	for _, h := range all {
		if h.Status != model.StatusSent {
			t.Errorf("%s: status %q, want sent", h.MessageID, h.Status)
		}
	}
}
