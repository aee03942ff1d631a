package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	chatmodel "github.com/zhouzirui/elera-assistant/console/internal/model/chat"
	"github.com/zhouzirui/elera-assistant/console/internal/model/common"
	"github.com/zhouzirui/elera-assistant/console/internal/service/view"
)

var (
	ErrEmptyMessage = errors.New("message is required")
	ErrBusy         = errors.New("a message is already being sent")
	// ErrReplyBusy is returned by Reply while a typed message in the same
	// conversation is still waiting for its answer. It matches ErrBusy.
	ErrReplyBusy = fmt.Errorf("voice turn skipped, a typed message is still awaiting its reply: %w", ErrBusy)
	ErrNoSession = errors.New("no conversation has been started")
)

// FailureReply is appended to the transcript when the assistant cannot answer.
const FailureReply = "Error: could not get response."

// API is the part of the assistant API the chat view needs.
type API interface {
	Chat(ctx context.Context, req chatmodel.Request) (*chatmodel.Reply, error)
	Summary(ctx context.Context, sessionID common.ID) (*chatmodel.Summary, error)
}

// Snapshot is the renderable state of the chat view.
type Snapshot struct {
	SessionID common.ID           `json:"session_id,omitempty"`
	Messages  []chatmodel.Message `json:"messages"`
	Summary   *chatmodel.Summary  `json:"summary,omitempty"`
	Pending   bool                `json:"pending"`
}

// Service owns one browser session's transcript.
type Service struct {
	api    API
	logger zerolog.Logger
	now    func() time.Time

	sendGen    view.Generation
	summaryGen view.Generation

	mu        sync.RWMutex
	sessionID common.ID
	messages  []chatmodel.Message
	summary   *chatmodel.Summary
	pending   bool
}

// NewService creates an empty conversation.
func NewService(api API, logger zerolog.Logger) *Service {
	return &Service{
		api:      api,
		logger:   logger.With().Str("component", "chat").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
		messages: make([]chatmodel.Message, 0, 16),
	}
}

// Send appends text as a user message, asks the assistant and appends its
// reply. On failure the transcript gets FailureReply and the error is returned.
func (s *Service) Send(ctx context.Context, text string) (chatmodel.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chatmodel.Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return chatmodel.Message{}, ErrBusy
	}
	gen := s.sendGen.Next()
	s.pending = true
	userIdx := len(s.messages)
	s.messages = append(s.messages, chatmodel.Message{Role: chatmodel.RoleUser, Content: text, CreatedAt: s.now()})
	sessionID := s.sessionID
	s.mu.Unlock()

	reply, err := s.api.Chat(ctx, chatmodel.Request{Message: text, SessionID: sessionID})

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sendGen.IsCurrent(gen) {
		return chatmodel.Message{}, view.ErrSuperseded
	}
	s.pending = false

	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID.String()).Msg("chat reply failed")
		s.messages = append(s.messages, chatmodel.Message{
			Role:      chatmodel.RoleAssistant,
			Content:   FailureReply,
			CreatedAt: s.now(),
		})
		return chatmodel.Message{}, fmt.Errorf("send message: %w", err)
	}

	if reply.SessionID != "" {
		s.sessionID = reply.SessionID
	}
	s.messages[userIdx].Entities = reply.Entities
	s.messages[userIdx].Emotion = reply.Emotion

	assistant := chatmodel.Message{
		Role:      chatmodel.RoleAssistant,
		Content:   reply.Reply,
		CreatedAt: s.now(),
	}
	s.messages = append(s.messages, assistant)
	return assistant, nil
}

// Reply sends text and returns only the assistant's answer. The voice loop
// uses it so spoken turns land in the same transcript.
func (s *Service) Reply(ctx context.Context, text string) (string, error) {
	msg, err := s.Send(ctx, text)
	if errors.Is(err, ErrBusy) {
		return "", ErrReplyBusy
	}
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// Summarize fetches the consultation summary for the current session.
func (s *Service) Summarize(ctx context.Context) (*chatmodel.Summary, error) {
	sessionID := s.SessionID()
	if sessionID == "" {
		return nil, ErrNoSession
	}

	gen := s.summaryGen.Next()
	summary, err := s.api.Summary(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("summarize session %s: %w", sessionID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.summaryGen.IsCurrent(gen) {
		return nil, view.ErrSuperseded
	}
	s.summary = summary
	return summary, nil
}

// Reset starts a new conversation; in-flight responses are discarded.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sendGen.Next()
	s.summaryGen.Next()
	s.sessionID = ""
	s.messages = make([]chatmodel.Message, 0, 16)
	s.summary = nil
	s.pending = false
}

// SessionID returns the server-assigned conversation id, if any.
func (s *Service) SessionID() common.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// LastExchange returns the latest user query and the assistant answer that
// followed it. ok is false until a successful exchange exists.
func (s *Service) LastExchange() (query, response string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.messages) - 1; i > 0; i-- {
		m := s.messages[i]
		prev := s.messages[i-1]
		if m.Role == chatmodel.RoleAssistant && m.Content != FailureReply && prev.Role == chatmodel.RoleUser {
			return prev.Content, m.Content, true
		}
	}
	return "", "", false
}

// Snapshot returns a copy of the view state.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]chatmodel.Message, len(s.messages))
	copy(messages, s.messages)
	return Snapshot{
		SessionID: s.sessionID,
		Messages:  messages,
		Summary:   s.summary,
		Pending:   s.pending,
	}
}
