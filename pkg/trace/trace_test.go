package trace

import (
	"context"
	"testing"
)

func TestFromHeaders(t *testing.T) {
	t.Parallel()

	req, corr := FromHeaders("", "")
	if req == "" || corr != req {
		t.Errorf("generated: got %q / %q", req, corr)
	}

	req, corr = FromHeaders("r-1", "")
	if req != "r-1" || corr != "r-1" {
		t.Errorf("request only: got %q / %q", req, corr)
	}

	req, corr = FromHeaders("r-1", "c-1")
	if req != "r-1" || corr != "c-1" {
		t.Errorf("both: got %q / %q", req, corr)
	}
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	if RequestIDFromContext(context.Background()) != "" {
		t.Error("empty context returned a request ID")
	}
	ctx := WithIDs(context.Background(), "r-1", "c-1")
	if got := RequestIDFromContext(ctx); got != "r-1" {
		t.Errorf("request ID: got %q", got)
	}
	if got := CorrelationIDFromContext(ctx); got != "c-1" {
		t.Errorf("correlation ID: got %q", got)
	}
}
