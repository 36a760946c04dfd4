package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(EmailsTotal.WithLabelValues("sent"))
	IncrementEmails("sent")
	if got := testutil.ToFloat64(EmailsTotal.WithLabelValues("sent")); got != before+1 {
		t.Errorf("mail_emails_total{status=sent}: got %v, want %v", got, before+1)
	}

	IncrementRelayFailure("smtp", "timeout")
	if got := testutil.ToFloat64(RelayFailures.WithLabelValues("smtp", "timeout")); got < 1 {
		t.Errorf("mail_relay_failures_total: got %v", got)
	}

	SetHistoryEntries(42)
	if got := testutil.ToFloat64(HistoryEntries); got != 42 {
		t.Errorf("mail_history_entries: got %v, want 42", got)
	}

	SetCircuitBreakerState("smtp", 1)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("smtp")); got != 1 {
		t.Errorf("breaker state: got %v, want 1", got)
	}

	RecordRelayDuration("smtp", "send", "ok", 25*time.Millisecond)
	if n := testutil.CollectAndCount(RelayDuration); n < 1 {
		t.Errorf("relay duration series: got %d", n)
	}
}
