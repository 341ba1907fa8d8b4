package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agromic/agrobot/backend/internal/model/chat"
	"github.com/agromic/agrobot/backend/internal/model/persona"
	"github.com/agromic/agrobot/backend/internal/service/ai"
	"github.com/agromic/agrobot/backend/internal/service/assistant"
)

var (
	ErrPersonaRequired = errors.New("persona id is required")
	ErrPersonaNotFound = errors.New("persona not found")
	ErrSessionNotFound = errors.New("session not found")
)

// Config controls session construction and eviction.
type Config struct {
	// IdleTTL evicts sessions with no activity for this long. Zero disables eviction.
	IdleTTL        time.Duration
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// Service is the registry of live assistant sessions, one per mounted widget.
// Sessions live in memory only.
type Service struct {
	personas  persona.Store
	completer ai.Completer
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*assistant.Session
}

// NewService bootstraps the in-memory session registry.
func NewService(personas persona.Store, completer ai.Completer, cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		personas:  personas,
		completer: completer,
		cfg:       cfg,
		logger:    logger.With("component", "chat"),
		now:       func() time.Time { return time.Now().UTC() },
		sessions:  make(map[string]*assistant.Session),
	}
}

// CreateSession provisions a session bound to a persona and seeded with its
// welcome message.
func (s *Service) CreateSession(_ context.Context, personaID string) (chat.Snapshot, error) {
	if personaID == "" {
		return chat.Snapshot{}, ErrPersonaRequired
	}

	p, ok := s.personas.FindByID(personaID)
	if !ok {
		return chat.Snapshot{}, ErrPersonaNotFound
	}

	session := assistant.NewSession(uuid.NewString(), p, s.completer, assistant.Options{
		RequestTimeout: s.cfg.RequestTimeout,
		Logger:         s.cfg.Logger,
	})

	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	s.logger.Info("session created", "session_id", session.ID(), "persona", p.ID)
	return session.Snapshot(), nil
}

// GetSession retrieves a live session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (*assistant.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Snapshot returns a copy of the session state.
func (s *Service) Snapshot(ctx context.Context, sessionID string) (chat.Snapshot, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return chat.Snapshot{}, err
	}
	return session.Snapshot(), nil
}

// LoadTranscript returns the messages of the provided session.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.Transcript(), nil
}

// SetInput stores the pending input of a session.
func (s *Service) SetInput(ctx context.Context, sessionID, text string) error {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	session.SetInput(text)
	return nil
}

// Submit forwards a user turn to the session. The only error is an unknown
// session; rejected submits come back with Accepted=false.
func (s *Service) Submit(ctx context.Context, sessionID, text string) (assistant.Result, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return assistant.Result{}, err
	}
	return session.Submit(ctx, text), nil
}

// Subscribe registers for the session's events.
func (s *Service) Subscribe(ctx context.Context, sessionID string) (<-chan chat.Event, func(), error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	events, cancel := session.Subscribe(32)
	return events, cancel, nil
}

// DeleteSession destroys a session, as when the widget unmounts.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	session.Close()
	s.logger.Info("session deleted", "session_id", sessionID)
	return nil
}

// Len returns the number of live sessions.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep evicts sessions idle for longer than IdleTTL and returns how many
// were removed. Sessions with a call in flight are kept.
func (s *Service) Sweep(now time.Time) int {
	if s.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-s.cfg.IdleTTL)

	expired := 0
	s.mu.Lock()
	for id, session := range s.sessions {
		if !session.CloseIfIdleSince(cutoff) {
			continue
		}
		delete(s.sessions, id)
		expired++
	}
	s.mu.Unlock()

	if expired > 0 {
		s.logger.Info("evicted idle sessions", "count", expired)
	}
	return expired
}

// StartSweeper runs Sweep every interval until ctx is done. The returned
// channel is closed when the sweeper exits.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(s.now())
			}
		}
	}()
	return done
}
