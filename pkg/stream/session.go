package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"labsight/gateway/pkg/config"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation. An assistant message's Content
// only grows while it is streaming.
type Message struct {
	Role      Role     `json:"role"`
	Content   string   `json:"content"`
	Sources   []Source `json:"sources,omitempty"`
	QueryMode string   `json:"query_mode,omitempty"`
	Model     string   `json:"model,omitempty"`
	LatencyMs float64  `json:"latency_ms,omitempty"`
}

// State is the session state.
type State string

const (
	StateIdle      State = "idle"
	StateStreaming State = "streaming"
)

// Transcript is an immutable snapshot of a session.
type Transcript struct {
	State    State
	Messages []Message

	// ActiveTool names the tool the backend is running, if any.
	ActiveTool string

	// Err is the transport failure that ended the last exchange.
	Err error
}

// Last returns the final message, or the zero Message when there is none.
func (t Transcript) Last() Message {
	if len(t.Messages) == 0 {
		return Message{}
	}
	return t.Messages[len(t.Messages)-1]
}

// ErrSessionBusy is returned by Submit while an answer is streaming.
var ErrSessionBusy = errors.New("a response is already streaming")

// FallbackMessage replaces an empty answer when the transport fails.
const FallbackMessage = "Sorry, something went wrong while getting a response. Please try again."

// ValidationError is a query rejected before anything is sent.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

const (
	readBufferSize   = 4096
	snapshotBacklog  = 16
	defaultMaxLength = config.DefaultMaxQueryLength
)

var validate = validator.New()

// Session is the chat state machine: Idle, then Streaming on Submit, then
// Idle again when the transport ends. It is safe for concurrent use.
type Session struct {
	transport Transport
	streaming bool
	maxLength int
	logger    *slog.Logger

	mu         sync.Mutex
	state      State
	messages   []Message
	activeTool string
	lastErr    error
}

// Option configures a Session.
type Option func(*Session)

// WithStreaming selects streamed (default) or whole answers.
func WithStreaming(enabled bool) Option {
	return func(s *Session) { s.streaming = enabled }
}

// WithMaxQueryLength bounds the query length in characters.
func WithMaxQueryLength(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxLength = n
		}
	}
}

// NewSession creates an idle session using transport.
func NewSession(transport Transport, opts ...Option) *Session {
	s := &Session{
		transport: transport,
		streaming: true,
		maxLength: defaultMaxLength,
		logger:    slog.Default().With("component", "stream.session"),
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateQuery trims query and checks it is non-empty and within maxLength
// characters.
func ValidateQuery(query string, maxLength int) (string, error) {
	query = strings.TrimSpace(query)
	if err := validate.Var(query, "required"); err != nil {
		return "", &ValidationError{Reason: "Query cannot be empty."}
	}
	if err := validate.Var(query, fmt.Sprintf("max=%d", maxLength)); err != nil {
		return "", &ValidationError{Reason: fmt.Sprintf("Query exceeds maximum length of %d characters.", maxLength)}
	}
	return query, nil
}

// Submit validates query, appends the user message and an open assistant
// message, and starts the exchange. The returned channel yields a snapshot
// after every change and is closed once the session is idle again.
// Snapshots are dropped, not queued forever, once ctx is done.
func (s *Session) Submit(ctx context.Context, query string) (<-chan Transcript, error) {
	query, err := ValidateQuery(query, s.maxLength)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.state == StateStreaming {
		s.mu.Unlock()
		return nil, ErrSessionBusy
	}
	s.state = StateStreaming
	s.activeTool = ""
	s.lastErr = nil
	s.messages = append(s.messages,
		Message{Role: RoleUser, Content: query},
		Message{Role: RoleAssistant},
	)
	first := s.snapshotLocked()
	s.mu.Unlock()

	out := make(chan Transcript, snapshotBacklog)
	out <- first

	go s.run(ctx, query, out)
	return out, nil
}

// Snapshot returns the current transcript.
func (s *Session) Snapshot() Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) run(ctx context.Context, query string, out chan<- Transcript) {
	defer close(out)

	// Snapshots are delivered whenever the buffer has room, even after ctx
	// is done; only a full buffer with no reader left drops one.
	publish := func(t Transcript) {
		select {
		case out <- t:
			return
		default:
		}
		select {
		case out <- t:
		case <-ctx.Done():
		}
	}

	var err error
	if s.streaming {
		err = s.stream(ctx, query, publish)
	} else {
		err = s.complete(ctx, query)
	}

	publish(s.finish(err))
}

func (s *Session) stream(ctx context.Context, query string, publish func(Transcript)) error {
	body, err := s.transport.Stream(ctx, query)
	if err != nil {
		return err
	}
	defer body.Close()

	dec := NewDecoder()
	buf := make([]byte, readBufferSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			for _, ev := range dec.Feed(buf[:n]) {
				if t, changed := s.apply(ev); changed {
					publish(t)
				}
			}
		}
		if readErr == io.EOF {
			for _, ev := range dec.Flush() {
				if t, changed := s.apply(ev); changed {
					publish(t)
				}
			}
			if dropped := dec.Dropped(); dropped > 0 {
				s.logger.Debug("stream contained non-event lines", "dropped", dropped)
			}
			return nil
		}
		if readErr != nil {
			return &TransportError{Err: readErr}
		}
	}
}

func (s *Session) complete(ctx context.Context, query string) error {
	reply, err := s.transport.Complete(ctx, query)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.openLocked()
	msg.Content = reply.Answer
	msg.Sources = slices.Clone(reply.Sources)
	msg.Model = reply.Model
	msg.QueryMode = reply.QueryMode
	msg.LatencyMs = reply.LatencyMs
	return nil
}

// apply folds one event into the open assistant message and reports
// whether anything changed.
func (s *Session) apply(ev Event) (Transcript, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.openLocked()
	switch ev.Type {
	case EventToken:
		if ev.Content == "" {
			return Transcript{}, false
		}
		msg.Content += ev.Content
	case EventToolCall:
		s.activeTool = ev.Tool
	case EventToolResult:
		s.activeTool = ""
	case EventSources:
		msg.Sources = slices.Clone(ev.Sources)
	case EventDone:
		msg.Model = ev.Model
		msg.QueryMode = ev.QueryMode
		msg.LatencyMs = ev.LatencyMs
	case EventError:
		if msg.Content != "" {
			s.logger.Warn("backend error after partial answer", "message", ev.Message)
			return Transcript{}, false
		}
		msg.Content = ev.Message
	default:
		return Transcript{}, false
	}
	return s.snapshotLocked(), true
}

// finish returns the session to Idle, recording err.
func (s *Session) finish(err error) Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.lastErr = err
		if msg := s.openLocked(); msg.Content == "" {
			msg.Content = FallbackMessage
		}
		s.logger.Warn("chat exchange failed", "error", err)
	}
	s.activeTool = ""
	s.state = StateIdle
	return s.snapshotLocked()
}

// openLocked returns the assistant message receiving content.
func (s *Session) openLocked() *Message {
	return &s.messages[len(s.messages)-1]
}

func (s *Session) snapshotLocked() Transcript {
	messages := make([]Message, len(s.messages))
	for i, m := range s.messages {
		m.Sources = slices.Clone(m.Sources)
		messages[i] = m
	}
	return Transcript{
		State:      s.state,
		Messages:   messages,
		ActiveTool: s.activeTool,
		Err:        s.lastErr,
	}
}
