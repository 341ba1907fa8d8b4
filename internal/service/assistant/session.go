package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agromic/agrobot/backend/internal/model/chat"
	"github.com/agromic/agrobot/backend/internal/model/persona"
	"github.com/agromic/agrobot/backend/internal/service/ai"
)

const (
	defaultWelcome       = "Hello! How can I help you today?"
	defaultFallbackReply = "I'm sorry, I couldn't process that. Please try again."
	defaultFailureReply  = "Service is currently busy. Please try again in a moment."
)

// Options tunes a Session.
type Options struct {
	// RequestTimeout bounds a single completion call. Zero means the call
	// may run indefinitely.
	RequestTimeout time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
}

// Result describes the outcome of Submit.
type Result struct {
	// Accepted is false when the submit was a no-op (blank text, a call
	// already in flight, or a closed session).
	Accepted bool
	// Reply is the assistant message appended for this turn.
	Reply chat.Message
	// Failed reports that Reply is the failure apology.
	Failed bool
}

// Session is the state container for one mounted chat widget: an
// append-only transcript, the pending input and the request status. At most
// one completion call is in flight at any time.
type Session struct {
	id        string
	persona   persona.Persona
	completer ai.Completer
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu          sync.Mutex
	transcript  []chat.Message
	input       string
	status      chat.Status
	closed      bool
	createdAt   time.Time
	updatedAt   time.Time
	subscribers map[int]chan chat.Event
	nextSubID   int
}

// NewSession creates an idle session seeded with the persona's welcome message.
func NewSession(id string, p persona.Persona, completer ai.Completer, opts Options) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	created := now()
	s := &Session{
		id:          id,
		persona:     p,
		completer:   completer,
		timeout:     opts.RequestTimeout,
		logger:      logger.With("component", "assistant", "session_id", id),
		now:         now,
		transcript:  make([]chat.Message, 0, 16),
		status:      chat.StatusIdle,
		createdAt:   created,
		updatedAt:   created,
		subscribers: make(map[int]chan chat.Event),
	}
	welcome := p.WelcomeMessage
	if strings.TrimSpace(welcome) == "" {
		welcome = defaultWelcome
	}
	s.transcript = append(s.transcript, s.newMessage(chat.RoleAssistant, welcome, created))
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// SetInput replaces the pending, not yet submitted, user text.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.input = text
	s.updatedAt = s.now()
}

// Input returns the pending user text.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Status returns the current request status.
func (s *Session) Status() chat.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Closed reports whether the session has been destroyed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Transcript returns a copy of the transcript.
func (s *Session) Transcript() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Message(nil), s.transcript...)
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() chat.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return chat.Snapshot{
		ID:         s.id,
		PersonaID:  s.persona.ID,
		Status:     s.status,
		Input:      s.input,
		Transcript: append([]chat.Message(nil), s.transcript...),
		CreatedAt:  s.createdAt,
		UpdatedAt:  s.updatedAt,
	}
}

// Submit sends one user turn. Blank text, a call already in flight and a
// closed session make it a no-op. Otherwise it appends the user message,
// clears the pending input, awaits the remote model and appends exactly one
// assistant message: the model's text, the fallback reply when that text is
// empty, or the failure reply when the call fails. The session is idle
// again when Submit returns; remote failures never escape.
//
// Caller cancellation does not abort an issued call; only the configured
// request timeout does.
func (s *Session) Submit(ctx context.Context, text string) Result {
	req, ok := s.begin(text)
	if !ok {
		return Result{}
	}

	reply, failed := s.await(ctx, req)
	msg := s.finish(reply)
	return Result{Accepted: true, Reply: msg, Failed: failed}
}

func (s *Session) begin(text string) (ai.CompletionRequest, bool) {
	if strings.TrimSpace(text) == "" {
		return ai.CompletionRequest{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.status == chat.StatusAwaitingResponse {
		return ai.CompletionRequest{}, false
	}

	now := s.now()
	s.appendLocked(s.newMessage(chat.RoleUser, text, now))
	s.input = ""
	s.setStatusLocked(chat.StatusAwaitingResponse)

	return ai.CompletionRequest{
		Model:             s.persona.Model,
		SystemInstruction: s.persona.SystemInstruction,
		UserText:          text,
	}, true
}

func (s *Session) await(ctx context.Context, req ai.CompletionRequest) (reply string, failed bool) {
	callCtx := context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, s.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("completion panicked", "panic", fmt.Sprint(r))
			reply, failed = s.failureReply(), true
		}
	}()

	if s.completer == nil {
		s.logger.Error("completion failed", "error", "no completer configured")
		return s.failureReply(), true
	}

	started := time.Now()
	completion, err := s.completer.Complete(callCtx, req)
	if err != nil {
		s.logger.Error("completion failed", "error", err, "elapsed", time.Since(started))
		return s.failureReply(), true
	}

	if strings.TrimSpace(completion.Text) == "" {
		s.logger.Warn("completion returned empty text", "model", completion.Model)
		return s.fallbackReply(), false
	}

	s.logger.Debug("completion received", "model", completion.Model, "length", len(completion.Text), "elapsed", time.Since(started))
	return completion.Text, false
}

func (s *Session) finish(reply string) chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.newMessage(chat.RoleAssistant, reply, s.now())
	if !s.closed {
		s.appendLocked(msg)
	}
	s.setStatusLocked(chat.StatusIdle)
	return msg
}

// Subscribe registers for transcript and status events. Events are dropped
// for a subscriber whose buffer is full. The returned cancel func is safe to
// call more than once.
func (s *Session) Subscribe(buffer int) (<-chan chat.Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan chat.Event, buffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(sub)
			}
		})
	}
}

// Close destroys the session. Subscribers are released and later submits
// become no-ops. A call already in flight is left to finish; its reply is
// discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closeLocked()
}

func (s *Session) closeLocked() {
	s.closed = true
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
}

// CloseIfIdleSince closes the session when it is idle and untouched since
// cutoff. The check and the close happen under one lock, so a submit that has
// already started keeps the session open.
func (s *Session) CloseIfIdleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.status == chat.StatusAwaitingResponse || s.updatedAt.After(cutoff) {
		return false
	}
	s.closeLocked()
	return true
}

func (s *Session) appendLocked(msg chat.Message) {
	s.transcript = append(s.transcript, msg)
	s.updatedAt = msg.CreatedAt
	m := msg
	s.publishLocked(chat.Event{Type: chat.EventMessage, SessionID: s.id, Message: &m, Status: s.status})
}

func (s *Session) setStatusLocked(status chat.Status) {
	if s.status == status {
		return
	}
	s.status = status
	s.updatedAt = s.now()
	s.publishLocked(chat.Event{Type: chat.EventStatus, SessionID: s.id, Status: status})
}

func (s *Session) publishLocked(evt chat.Event) {
	for _, ch := range s.subscribers {
		select {
		case ch <- evt:
		default:
			s.logger.Warn("dropping event for slow subscriber", "event", evt.Type)
		}
	}
}

func (s *Session) newMessage(role chat.Role, text string, at time.Time) chat.Message {
	return chat.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		CreatedAt: at,
	}
}

func (s *Session) fallbackReply() string {
	if s.persona.FallbackReply != "" {
		return s.persona.FallbackReply
	}
	return defaultFallbackReply
}

func (s *Session) failureReply() string {
	if s.persona.FailureReply != "" {
		return s.persona.FailureReply
	}
	return defaultFailureReply
}
