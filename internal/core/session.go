package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"abzellie.com/storefront/internal/ratelimit"
)

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry of a session transcript.
type ChatMessage struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Turn is what the generator sees of a message.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Status is StatusPending while a send waits on the generator.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
)

// SendOutcome says what Send did with the input.
type SendOutcome string

const (
	OutcomeIgnored     SendOutcome = "ignored"
	OutcomeRateLimited SendOutcome = "rate_limited"
	OutcomeAnswered    SendOutcome = "answered"
	OutcomeFailed      SendOutcome = "failed"
)

// Greeting opens every session.
const Greeting = "Hello! I'm Ellie, your style consultant. Looking for a specific scent or piece of jewelry today?"

// Admission is the part of the rate limiter a session depends on.
type Admission interface {
	CheckAndReserve(ctx context.Context) (ratelimit.Decision, error)
	RecordSuccess(ctx context.Context) error
}

type SessionOption func(*ChatSession)

func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *ChatSession) {
		s.now = now
	}
}

func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *ChatSession) {
		s.logger = logger
	}
}

// WithFallbackPhone sets the number offered when the assistant cannot help.
func WithFallbackPhone(phone string) SessionOption {
	return func(s *ChatSession) {
		s.phone = phone
	}
}

// ChatSession is one visitor's conversation with the assistant. History is
// append-only and lives only as long as the session.
type ChatSession struct {
	mu        sync.Mutex
	messages  []ChatMessage
	status    Status
	generator Generator
	limiter   Admission
	phone     string
	now       func() time.Time
	logger    *slog.Logger
}

func NewChatSession(generator Generator, limiter Admission, opts ...SessionOption) *ChatSession {
	s := &ChatSession{
		status:    StatusIdle,
		generator: generator,
		limiter:   limiter,
		phone:     "09033564255",
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.messages = []ChatMessage{{Role: RoleAssistant, Text: Greeting, Timestamp: s.now()}}
	return s
}

// Send posts text to the assistant and blocks until the exchange settles.
//
// Blank input, or input arriving while another send is pending, is ignored.
// Otherwise the user message is appended right away, followed by exactly one
// assistant message: the rate limit notice, the reply, or a failure notice.
// Only a successful reply counts against the limit. The returned error is
// non-nil only when the limiter's storage failed.
func (s *ChatSession) Send(ctx context.Context, text string) (SendOutcome, error) {
	if strings.TrimSpace(text) == "" {
		return OutcomeIgnored, nil
	}

	s.mu.Lock()
	if s.status == StatusPending {
		s.mu.Unlock()
		return OutcomeIgnored, nil
	}
	s.status = StatusPending
	history := s.turnsLocked()
	s.appendLocked(RoleUser, text)
	s.mu.Unlock()

	defer s.setStatus(StatusIdle)

	decision, err := s.limiter.CheckAndReserve(ctx)
	if err != nil {
		s.append(RoleAssistant, s.failureText())
		return OutcomeFailed, fmt.Errorf("rate limit check: %w", err)
	}
	if !decision.Allowed {
		s.append(RoleAssistant, s.limitText(decision.HoursRemaining))
		return OutcomeRateLimited, nil
	}

	reply, err := s.generator.GenerateReply(ctx, text, history)
	if err != nil {
		s.logger.Error("chat generation failed", "error", err)
		s.append(RoleAssistant, s.failureText())
		return OutcomeFailed, nil
	}

	s.append(RoleAssistant, reply)
	// An appended reply is always counted, even once ctx is canceled.
	if err := s.limiter.RecordSuccess(context.WithoutCancel(ctx)); err != nil {
		return OutcomeAnswered, fmt.Errorf("rate limit record: %w", err)
	}
	return OutcomeAnswered, nil
}

// Messages returns a copy of the transcript in order.
func (s *ChatSession) Messages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatMessage(nil), s.messages...)
}

func (s *ChatSession) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *ChatSession) turnsLocked() []Turn {
	turns := make([]Turn, 0, len(s.messages))
	for _, m := range s.messages {
		turns = append(turns, Turn{Role: m.Role, Text: m.Text})
	}
	return turns
}

func (s *ChatSession) append(role Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(role, text)
}

func (s *ChatSession) appendLocked(role Role, text string) {
	s.messages = append(s.messages, ChatMessage{Role: role, Text: text, Timestamp: s.now()})
}

func (s *ChatSession) setStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

func (s *ChatSession) limitText(hours int) string {
	unit := "hours"
	if hours == 1 {
		unit = "hour"
	}
	return fmt.Sprintf("You've reached today's limit of questions for Ellie. Please try again in %d %s, "+
		"or chat with our team directly on WhatsApp at %s.", hours, unit, s.phone)
}

func (s *ChatSession) failureText() string {
	return fmt.Sprintf("The store's AI is currently resting. Please call us directly at %s!", s.phone)
}
