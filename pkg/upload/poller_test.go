package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"labsight/gateway/pkg/config"
	"labsight/gateway/pkg/telemetry/metrics"
)

// scriptedFetcher answers attempt n with responses[n-1]; attempts past the
// script repeat the last entry.
type scriptedFetcher struct {
	mu        sync.Mutex
	calls     int
	responses []func() (Status, error)
}

func (f *scriptedFetcher) FetchStatus(_ context.Context, target string) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	i := f.calls - 1
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i]()
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func processing(target string) func() (Status, error) {
	return func() (Status, error) { return Status{FileName: target, Status: StateProcessing}, nil }
}

func fastPoller(f StatusFetcher, bound int) *Poller {
	return NewPoller(f, config.PollerConfig{Interval: time.Millisecond, MaxAttempts: bound}, nil)
}

func TestPollSuccessOnLastAttempt(t *testing.T) {
	const target = "uploads/2025/01/02/abcd1234-notes.md"
	responses := make([]func() (Status, error), 0, 20)
	for i := 0; i < 19; i++ {
		responses = append(responses, processing(target))
	}
	responses = append(responses, func() (Status, error) {
		return Status{FileName: target, Status: StateSuccess, ChunkCount: 3}, nil
	})
	f := &scriptedFetcher{responses: responses}

	var updates int
	res := fastPoller(f, 20).Poll(context.Background(), target, func(s PollSession, _ Status) {
		updates++
		if s.Attempt != updates || s.Bound != 20 {
			t.Errorf("update %d: session = %+v", updates, s)
		}
	})

	if res.Outcome != OutcomeSettled {
		t.Fatalf("Outcome = %s, want settled", res.Outcome)
	}
	if res.Last == nil || res.Last.Status != StateSuccess || res.Last.ChunkCount != 3 {
		t.Errorf("Last = %+v, want success with 3 chunks", res.Last)
	}
	if res.Session.Attempt != 20 || f.Calls() != 20 {
		t.Errorf("attempts = %d, calls = %d, want 20", res.Session.Attempt, f.Calls())
	}
	if updates != 20 {
		t.Errorf("updates = %d, want 20", updates)
	}
}

func TestPollStopsOnHTTPError(t *testing.T) {
	f := &scriptedFetcher{responses: []func() (Status, error){
		func() (Status, error) {
			return Status{}, &StatusError{Code: 500, Detail: "Failed to check upload status."}
		},
		processing("x"),
	}}

	res := fastPoller(f, 20).Poll(context.Background(), "x", nil)

	if res.Outcome != OutcomeFailed {
		t.Fatalf("Outcome = %s, want failed", res.Outcome)
	}
	var statusErr *StatusError
	if !errors.As(res.Err, &statusErr) || statusErr.Code != 500 {
		t.Errorf("Err = %v, want *StatusError 500", res.Err)
	}
	if res.Err.Error() != "Failed to check upload status." {
		t.Errorf("Err message = %q", res.Err.Error())
	}

	// Give a stray tick the chance to fire before counting.
	time.Sleep(10 * time.Millisecond)
	if f.Calls() != 1 {
		t.Errorf("calls = %d, want exactly 1", f.Calls())
	}
}

func TestPollStopsOnUnexpectedResponse(t *testing.T) {
	f := &scriptedFetcher{responses: []func() (Status, error){
		processing("x"),
		func() (Status, error) { return Status{}, fmt.Errorf("%w: missing status", ErrUnexpectedResponse) },
	}}

	res := fastPoller(f, 20).Poll(context.Background(), "x", nil)

	if res.Outcome != OutcomeFailed || !errors.Is(res.Err, ErrUnexpectedResponse) {
		t.Fatalf("result = %+v, want failed with ErrUnexpectedResponse", res)
	}
	if res.Last == nil || res.Last.Status != StateProcessing {
		t.Errorf("Last = %+v, want the processing status from attempt 1", res.Last)
	}
	if f.Calls() != 2 {
		t.Errorf("calls = %d, want 2", f.Calls())
	}
}

func TestPollTimeoutKeepsLastStatus(t *testing.T) {
	f := &scriptedFetcher{responses: []func() (Status, error){processing("x")}}

	res := fastPoller(f, 5).Poll(context.Background(), "x", nil)

	if res.Outcome != OutcomeTimeout {
		t.Fatalf("Outcome = %s, want timeout", res.Outcome)
	}
	if res.Err != nil {
		t.Errorf("Err = %v, want nil on timeout", res.Err)
	}
	if res.Last == nil || res.Last.Status != StateProcessing {
		t.Errorf("Last = %+v, want processing kept as is", res.Last)
	}
	if f.Calls() != 5 {
		t.Errorf("calls = %d, want 5", f.Calls())
	}
}

func TestPollNetworkErrorsContinue(t *testing.T) {
	netErr := func() (Status, error) { return Status{}, errors.New("connection reset by peer") }
	f := &scriptedFetcher{responses: []func() (Status, error){
		netErr,
		netErr,
		func() (Status, error) {
			return Status{FileName: "x", Status: StateError, ErrorMessage: "parse failed"}, nil
		},
	}}

	res := fastPoller(f, 20).Poll(context.Background(), "x", nil)

	if res.Outcome != OutcomeSettled || res.Last == nil || res.Last.Status != StateError {
		t.Fatalf("result = %+v, want settled with error status", res)
	}
	if res.Session.Attempt != 3 {
		t.Errorf("Attempt = %d, want 3", res.Session.Attempt)
	}
}

func TestPollNetworkErrorAtBound(t *testing.T) {
	f := &scriptedFetcher{responses: []func() (Status, error){
		func() (Status, error) { return Status{}, errors.New("no route to host") },
	}}

	res := fastPoller(f, 3).Poll(context.Background(), "x", nil)

	if res.Outcome != OutcomeTimeout || res.Last != nil {
		t.Errorf("result = %+v, want timeout with no status", res)
	}
	if f.Calls() != 3 {
		t.Errorf("calls = %d, want 3", f.Calls())
	}
}

func TestPollCancel(t *testing.T) {
	f := &scriptedFetcher{responses: []func() (Status, error){processing("x")}}
	p := NewPoller(f, config.PollerConfig{Interval: time.Hour, MaxAttempts: 20}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() { done <- p.Poll(ctx, "x", nil) }()

	cancel()
	select {
	case res := <-done:
		if res.Outcome != OutcomeCanceled || !errors.Is(res.Err, context.Canceled) {
			t.Errorf("result = %+v, want canceled", res)
		}
		if f.Calls() != 0 {
			t.Errorf("calls = %d, want 0", f.Calls())
		}
	case <-time.After(time.Second):
		t.Fatal("Poll did not return after cancellation")
	}
}

func TestPollRecordsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(config.MetricsConfig{Enabled: true, Namespace: "t", Subsystem: "up"}, registry)
	f := &scriptedFetcher{responses: []func() (Status, error){
		func() (Status, error) { return Status{FileName: "x", Status: StateSuccess}, nil },
	}}

	NewPoller(f, config.PollerConfig{Interval: time.Millisecond, MaxAttempts: 3}, collector).
		Poll(context.Background(), "x", nil)

	if n := testutil.CollectAndCount(registry, "t_up_poll_sessions_total"); n != 1 {
		t.Errorf("poll_sessions_total series = %d, want 1", n)
	}
}

func TestNewPollerDefaults(t *testing.T) {
	p := NewPoller(&scriptedFetcher{}, config.PollerConfig{}, nil)
	if p.interval != 3*time.Second || p.bound != 20 {
		t.Errorf("defaults = (%v, %d), want (3s, 20)", p.interval, p.bound)
	}
}
