package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/elera-assistant/console/internal/model/common"
	"github.com/zhouzirui/elera-assistant/console/internal/service/chat"
	"github.com/zhouzirui/elera-assistant/console/internal/service/review"
	"github.com/zhouzirui/elera-assistant/console/internal/service/speech"
	"github.com/zhouzirui/elera-assistant/console/internal/service/usercontext"
)

var ErrSessionNotFound = errors.New("session not found")

// API is everything a browser session talks to.
type API interface {
	chat.API
	usercontext.API
	review.FeedbackAPI
	speech.VoiceAPI
}

// Info summarizes a session for listings.
type Info struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	ChatSessionID common.ID `json:"chat_session_id,omitempty"`
	Messages      int       `json:"messages"`
	VoiceActive   bool      `json:"voice_active"`
}

// Session is one browser tab's state: its conversation, context editor,
// feedback form and, while connected, its voice loop.
type Session struct {
	ID        string
	CreatedAt time.Time

	Chat    *chat.Service
	Context *usercontext.Service

	api    review.FeedbackAPI
	logger zerolog.Logger

	mu         sync.Mutex
	feedback   review.FeedbackForm
	voice      *speech.Controller
	voiceState *speech.Status
}

// Info returns the listing view of the session.
func (s *Session) Info() Info {
	snap := s.Chat.Snapshot()
	s.mu.Lock()
	active := s.voice != nil
	s.mu.Unlock()
	return Info{
		ID:            s.ID,
		CreatedAt:     s.CreatedAt,
		ChatSessionID: snap.SessionID,
		Messages:      len(snap.Messages),
		VoiceActive:   active,
	}
}

// Feedback returns the current feedback form.
func (s *Session) Feedback() review.FeedbackForm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feedback
}

// SubmitFeedback rates the latest assistant reply. The form resets after a
// successful submit and keeps the user's input otherwise.
func (s *Session) SubmitFeedback(ctx context.Context, form review.FeedbackForm) error {
	s.mu.Lock()
	s.feedback = form
	s.mu.Unlock()

	query, response, ok := s.Chat.LastExchange()
	if !ok {
		if err := form.Validate(); err != nil {
			return err
		}
		return review.ErrNoExchange
	}
	if err := review.SubmitFeedback(ctx, s.api, s.Chat.SessionID(), form, query, response); err != nil {
		return err
	}

	s.mu.Lock()
	s.feedback = review.NewFeedbackForm()
	s.mu.Unlock()
	s.logger.Info().Int("rating", form.Rating).Msg("feedback submitted")
	return nil
}

// Voice returns the attached voice loop, if any.
func (s *Session) Voice() (*speech.Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voice, s.voice != nil
}

// PrepareVoice carries language, voice, continuous mode and the welcome
// flag of a previous connection into opts.
func (s *Session) PrepareVoice(opts speech.Options) speech.Options {
	s.mu.Lock()
	prev := s.voiceState
	if s.voice != nil {
		st := s.voice.Status()
		prev = &st
	}
	s.mu.Unlock()

	if prev == nil {
		return opts
	}
	opts.Language = prev.Language
	opts.VoiceID = prev.VoiceID
	opts.Continuous = prev.Continuous
	opts.SkipWelcome = prev.Welcomed
	return opts
}

// AttachVoice installs ctrl, closing any loop of an earlier connection.
func (s *Session) AttachVoice(ctrl *speech.Controller) {
	s.mu.Lock()
	prev := s.voice
	s.voice = ctrl
	s.mu.Unlock()

	if prev != nil && prev != ctrl {
		s.logger.Info().Msg("replacing voice connection")
		st := prev.Status()
		_ = prev.Close()
		s.mu.Lock()
		s.voiceState = &st
		s.mu.Unlock()
	}
}

// DetachVoice closes ctrl if it is still the attached loop.
func (s *Session) DetachVoice(ctrl *speech.Controller) {
	s.mu.Lock()
	if s.voice != ctrl {
		s.mu.Unlock()
		return
	}
	s.voice = nil
	s.mu.Unlock()

	st := ctrl.Status()
	_ = ctrl.Close()
	s.mu.Lock()
	s.voiceState = &st
	s.mu.Unlock()
}

func (s *Session) close() {
	s.mu.Lock()
	ctrl := s.voice
	s.voice = nil
	s.mu.Unlock()
	if ctrl != nil {
		_ = ctrl.Close()
	}
}

// Registry keeps the sessions of all connected browsers in memory.
type Registry struct {
	api    API
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(api API, logger zerolog.Logger) *Registry {
	return &Registry{
		api:      api,
		logger:   logger.With().Str("component", "sessions").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*Session),
	}
}

// Create provisions a session with fresh views.
func (r *Registry) Create() *Session {
	id := uuid.NewString()
	logger := r.logger.With().Str("session", id).Logger()

	chatSvc := chat.NewService(r.api, logger)
	s := &Session{
		ID:        id,
		CreatedAt: r.now(),
		Chat:      chatSvc,
		Context:   usercontext.NewService(r.api, chatSvc.SessionID, logger),
		api:       r.api,
		logger:    logger,
		feedback:  review.NewFeedbackForm(),
	}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	logger.Debug().Msg("session created")
	return s
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete removes the session and stops its voice loop.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.close()
	return nil
}

// List returns all sessions, oldest first.
func (r *Registry) List() []Info {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Close stops every voice loop.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}
