package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultSessionTTL = 2 * time.Hour

var ErrSessionNotFound = errors.New("chat session not found")

// LimiterFactory returns the admission control for a visitor. Every session
// of the same visitor must share one budget.
type LimiterFactory func(ctx context.Context, visitorID string) (Admission, error)

// Session is a registered ChatSession and the visitor that owns it.
type Session struct {
	ID        string
	VisitorID string
	CreatedAt time.Time
	Chat      *ChatSession

	lastActive time.Time
}

type ServiceOption func(*ChatService)

// WithSessionTTL sets how long an untouched session is kept.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *ChatService) {
		s.ttl = ttl
	}
}

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *ChatService) {
		s.now = now
	}
}

func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *ChatService) {
		s.logger = logger
	}
}

// WithSessionOptions are applied to every session the service creates.
func WithSessionOptions(opts ...SessionOption) ServiceOption {
	return func(s *ChatService) {
		s.sessionOpts = append(s.sessionOpts, opts...)
	}
}

// ChatService keeps the live chat sessions of all visitors in memory.
type ChatService struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	generator   Generator
	limiterFor  LimiterFactory
	ttl         time.Duration
	sessionOpts []SessionOption
	now         func() time.Time
	logger      *slog.Logger
}

func NewChatService(generator Generator, limiterFor LimiterFactory, opts ...ServiceOption) *ChatService {
	s := &ChatService{
		sessions:   make(map[string]*Session),
		generator:  generator,
		limiterFor: limiterFor,
		ttl:        DefaultSessionTTL,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ChatService) CreateSession(ctx context.Context, visitorID string) (*Session, error) {
	limiter, err := s.limiterFor(ctx, visitorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rate limit for visitor: %w", err)
	}

	now := s.now()
	sess := &Session{
		ID:         uuid.NewString(),
		VisitorID:  visitorID,
		CreatedAt:  now,
		Chat:       NewChatSession(s.generator, limiter, s.sessionOpts...),
		lastActive: now,
	}

	s.mu.Lock()
	s.sweepLocked(now)
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Debug("chat session created", "session_id", sess.ID, "visitor_id", visitorID)
	return sess, nil
}

// GetSession returns the session if it exists and belongs to visitorID.
func (s *ChatService) GetSession(id, visitorID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchLocked(id, visitorID)
}

// PostMessage sends text through the session and returns the outcome with
// the transcript as it stands afterwards.
func (s *ChatService) PostMessage(ctx context.Context, id, visitorID, text string) (SendOutcome, []ChatMessage, error) {
	s.mu.Lock()
	sess, err := s.touchLocked(id, visitorID)
	s.mu.Unlock()
	if err != nil {
		return "", nil, err
	}

	outcome, err := sess.Chat.Send(ctx, text)
	if err != nil {
		return outcome, sess.Chat.Messages(), fmt.Errorf("failed to send chat message: %w", err)
	}
	return outcome, sess.Chat.Messages(), nil
}

// Len reports the number of live sessions.
func (s *ChatService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(s.now())
	return len(s.sessions)
}

func (s *ChatService) touchLocked(id, visitorID string) (*Session, error) {
	now := s.now()
	s.sweepLocked(now)

	sess, ok := s.sessions[id]
	if !ok || sess.VisitorID != visitorID {
		return nil, ErrSessionNotFound
	}
	sess.lastActive = now
	return sess, nil
}

// sweepLocked drops idle sessions. A session waiting on the generator is
// never dropped.
func (s *ChatService) sweepLocked(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for id, sess := range s.sessions {
		if now.Sub(sess.lastActive) < s.ttl || sess.Chat.Status() == StatusPending {
			continue
		}
		delete(s.sessions, id)
		s.logger.Debug("chat session expired", "session_id", id)
	}
}
