package upload

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"labsight/gateway/pkg/config"
	"labsight/gateway/pkg/telemetry/metrics"
	"labsight/gateway/pkg/telemetry/tracing"
)

// StatusFetcher performs one status check. Implementations return
// *StatusError for non-2xx answers and ErrUnexpectedResponse (wrapped) for
// invalid payloads; any other error is treated as a transient network
// failure.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, target string) (Status, error)
}

// Outcome is how a poll session ended.
type Outcome string

const (
	// OutcomeSettled: the backend reported a terminal status.
	OutcomeSettled Outcome = "settled"
	// OutcomeTimeout: the attempt bound was reached first.
	OutcomeTimeout Outcome = "timeout"
	// OutcomeFailed: the backend answered with an error or an invalid payload.
	OutcomeFailed Outcome = "failed"
	// OutcomeCanceled: the caller cancelled the session.
	OutcomeCanceled Outcome = "canceled"
)

// PollSession is the state of one poll. It is mutated only by the goroutine
// running the poll.
type PollSession struct {
	Target   string
	Attempt  int
	Bound    int
	Interval time.Duration
}

// UpdateFunc observes each valid status together with the session state
// at the attempt that produced it.
type UpdateFunc func(session PollSession, status Status)

// Result is the final state of a poll session.
type Result struct {
	Session PollSession
	Outcome Outcome

	// Last is the last status observed, nil when none was.
	Last *Status

	// Err is set for OutcomeFailed and OutcomeCanceled.
	Err error
}

// Poller runs bounded fixed-interval status polls.
type Poller struct {
	fetcher  StatusFetcher
	interval time.Duration
	bound    int
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// NewPoller creates a poller using the interval and attempt bound in cfg.
// The collector may be nil.
func NewPoller(fetcher StatusFetcher, cfg config.PollerConfig, collector *metrics.Collector) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}
	bound := cfg.MaxAttempts
	if bound <= 0 {
		bound = config.DefaultPollMaxAttempts
	}
	return &Poller{
		fetcher:  fetcher,
		interval: interval,
		bound:    bound,
		metrics:  collector,
		logger:   slog.Default().With("component", "upload.poller"),
	}
}

// Poll checks target once per interval until a terminal classification,
// the attempt bound, or cancellation of ctx. onUpdate, when non-nil, is
// called with every valid status observed, in order. Poll blocks; the
// ticker is stopped on every return path.
func (p *Poller) Poll(ctx context.Context, target string, onUpdate UpdateFunc) Result {
	session := PollSession{Target: target, Bound: p.bound, Interval: p.interval}
	res := p.run(ctx, &session, onUpdate)
	res.Session = session

	p.metrics.RecordPollSession(string(res.Outcome), session.Attempt)
	p.logger.InfoContext(ctx, "poll session ended",
		"target", target,
		"outcome", res.Outcome,
		"attempts", session.Attempt,
	)
	return res
}

func (p *Poller) run(ctx context.Context, session *PollSession, onUpdate UpdateFunc) Result {
	ticker := time.NewTicker(session.Interval)
	defer ticker.Stop()

	var last *Status
	for {
		select {
		case <-ctx.Done():
			return Result{Outcome: OutcomeCanceled, Last: last, Err: ctx.Err()}
		case <-ticker.C:
		}

		session.Attempt++
		status, err := p.check(ctx, session)

		switch {
		case err == nil:
			last = &status
			if onUpdate != nil {
				onUpdate(*session, status)
			}
			if status.Status.Terminal() {
				return Result{Outcome: OutcomeSettled, Last: last}
			}

		case isHardFailure(err):
			return Result{Outcome: OutcomeFailed, Last: last, Err: err}

		case ctx.Err() != nil:
			return Result{Outcome: OutcomeCanceled, Last: last, Err: ctx.Err()}

		default:
			p.logger.DebugContext(ctx, "status check failed, will retry",
				"target", session.Target,
				"attempt", session.Attempt,
				"error", err,
			)
		}

		if session.Attempt >= session.Bound {
			return Result{Outcome: OutcomeTimeout, Last: last}
		}
	}
}

func (p *Poller) check(ctx context.Context, session *PollSession) (Status, error) {
	ctx, span := otel.Tracer("labsight/upload").Start(ctx, "upload.poll")
	defer span.End()
	span.SetAttributes(
		tracing.AttrPollTarget.String(session.Target),
		tracing.AttrPollAttempt.Int(session.Attempt),
	)

	status, err := p.fetcher.FetchStatus(ctx, session.Target)
	tracing.SetStatus(span, err)
	return status, err
}

func isHardFailure(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) || errors.Is(err, ErrUnexpectedResponse)
}
