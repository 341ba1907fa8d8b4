package contact

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agromic/agrobot/backend/internal/model/contact"
)

// ErrFormBusy is returned when a form is still submitting or showing its
// success state.
var ErrFormBusy = errors.New("form is busy")

// Config controls the simulated submission.
type Config struct {
	SubmitDelay time.Duration
	ResetAfter  time.Duration
	Logger      *slog.Logger
}

type form struct {
	state State
	reset *time.Timer
}

// State aliases the model state for callers of this package.
type State = contact.State

// Service runs the contact form workflow: validate, drop honeypot hits,
// simulate the submission, show success and reset after a fixed timeout.
// Nothing is persisted or delivered.
type Service struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	forms  map[string]*form
	closed bool
}

// NewService creates the contact service.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:    cfg,
		logger: logger.With("component", "contact"),
		forms:  make(map[string]*form),
	}
}

// Submit processes one submission of the form identified by formID; an
// empty formID starts a new form. Validation failures come back in
// Outcome.Errors with a nil error.
func (s *Service) Submit(ctx context.Context, formID string, inq contact.Inquiry) (contact.Outcome, error) {
	if formID == "" {
		formID = uuid.NewString()
	}

	if err := s.transition(formID, contact.StateValidating); err != nil {
		return contact.Outcome{FormID: formID, State: s.State(formID)}, err
	}

	if errs := Validate(inq); errs != nil {
		s.release(formID)
		return contact.Outcome{FormID: formID, State: contact.StateIdle, Errors: errs}, nil
	}

	if strings.TrimSpace(inq.Website) != "" {
		s.logger.Debug("honeypot triggered, dropping inquiry", "form_id", formID)
		s.release(formID)
		return contact.Outcome{FormID: formID, State: contact.StateIdle, Accepted: true}, nil
	}

	s.set(formID, contact.StateSubmitting)

	if s.cfg.SubmitDelay > 0 {
		timer := time.NewTimer(s.cfg.SubmitDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.release(formID)
			return contact.Outcome{FormID: formID, State: contact.StateIdle}, ctx.Err()
		case <-timer.C:
		}
	}

	s.succeed(formID)
	s.logger.Info("inquiry received", "form_id", formID, "inquiry_type", inq.InquiryType, "crop_type", inq.CropType)
	return contact.Outcome{FormID: formID, State: contact.StateSuccess, Accepted: true}, nil
}

// State returns the current state of a form. Unknown forms are idle.
func (s *Service) State(formID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.forms[formID]; ok {
		return f.state
	}
	return contact.StateIdle
}

// Close stops pending reset timers.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, f := range s.forms {
		if f.reset != nil {
			f.reset.Stop()
		}
		delete(s.forms, id)
	}
}

func (s *Service) transition(formID string, to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.forms[formID]; ok && f.state != contact.StateIdle {
		return ErrFormBusy
	}
	s.forms[formID] = &form{state: to}
	return nil
}

func (s *Service) set(formID string, to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.forms[formID]; ok {
		f.state = to
	}
}

// release returns a form to idle. Idle forms are not tracked.
func (s *Service) release(formID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.forms[formID]; ok {
		if f.reset != nil {
			f.reset.Stop()
		}
		delete(s.forms, formID)
	}
}

func (s *Service) succeed(formID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.forms[formID]
	if !ok || s.closed {
		return
	}
	f.state = contact.StateSuccess
	if s.cfg.ResetAfter <= 0 {
		delete(s.forms, formID)
		return
	}
	f.reset = time.AfterFunc(s.cfg.ResetAfter, func() { s.release(formID) })
}
