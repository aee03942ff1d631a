package usercontext

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/elera-assistant/console/internal/model/common"
	speechmodel "github.com/zhouzirui/elera-assistant/console/internal/model/speech"
	contextmodel "github.com/zhouzirui/elera-assistant/console/internal/model/usercontext"
	"github.com/zhouzirui/elera-assistant/console/internal/service/view"
)

var (
	ErrNoSession       = errors.New("no conversation session to attach context to")
	ErrNameRequired    = errors.New("name is required")
	ErrScoreRange      = errors.New("value must be between 1 and 5")
	ErrTreatmentType   = errors.New("treatment type must be traditional, modern or other")
	ErrIndexOutOfRange = errors.New("entry index out of range")
	ErrNotFound        = errors.New("entry not found")
	ErrInvalidLanguage = errors.New("invalid language code")
)

// API is the part of the assistant API the context editor needs.
type API interface {
	GetUserContext(ctx context.Context, sessionID common.ID) (*contextmodel.Context, error)
	ReplaceUserContext(ctx context.Context, update contextmodel.Update) (*contextmodel.Context, error)
}

// SessionSource yields the server conversation id the context belongs to.
type SessionSource func() common.ID

// Snapshot is the renderable state of the editor.
type Snapshot struct {
	SessionID common.ID             `json:"session_id,omitempty"`
	Context   *contextmodel.Context `json:"context,omitempty"`
	Loading   bool                  `json:"loading"`
}

// Service edits the structured medical context of one conversation. Every
// edit builds the full next document and replaces the server copy.
type Service struct {
	api     API
	session SessionSource
	logger  zerolog.Logger
	gen     view.Generation

	mu      sync.RWMutex
	current *contextmodel.Context
	loading bool
}

// NewService creates the editor.
func NewService(api API, session SessionSource, logger zerolog.Logger) *Service {
	return &Service{
		api:     api,
		session: session,
		logger:  logger.With().Str("component", "usercontext").Logger(),
	}
}

// Load fetches the context for the current conversation.
func (s *Service) Load(ctx context.Context) (*contextmodel.Context, error) {
	sessionID := s.session()
	if sessionID == "" {
		return nil, ErrNoSession
	}

	s.mu.Lock()
	gen := s.gen.Next()
	s.loading = true
	s.mu.Unlock()

	uc, err := s.api.GetUserContext(ctx, sessionID)
	return s.apply(gen, uc, err, "load context")
}

// AddSymptom records or overwrites a symptom with its severity and duration.
func (s *Service) AddSymptom(ctx context.Context, name string, severity int, duration string) (*contextmodel.Context, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if severity < 1 || severity > 5 {
		return nil, ErrScoreRange
	}
	return s.edit(ctx, func(next *contextmodel.Context) error {
		next.Symptoms[name] = contextmodel.Symptom{Name: name, Severity: severity}
		next.SymptomDurations[name] = strings.TrimSpace(duration)
		return nil
	})
}

// RemoveSymptom deletes both the severity and the duration entry of name.
func (s *Service) RemoveSymptom(ctx context.Context, name string) (*contextmodel.Context, error) {
	return s.edit(ctx, func(next *contextmodel.Context) error {
		_, hasSymptom := next.Symptoms[name]
		_, hasDuration := next.SymptomDurations[name]
		if !hasSymptom && !hasDuration {
			return fmt.Errorf("%w: symptom %q", ErrNotFound, name)
		}
		delete(next.Symptoms, name)
		delete(next.SymptomDurations, name)
		return nil
	})
}

// AddTreatment appends a treatment; effective is nil when unknown.
func (s *Service) AddTreatment(ctx context.Context, name string, kind contextmodel.TreatmentType, effective *bool) (*contextmodel.Context, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if kind == "" {
		kind = contextmodel.TreatmentModern
	}
	if !kind.Valid() {
		return nil, ErrTreatmentType
	}
	return s.edit(ctx, func(next *contextmodel.Context) error {
		next.TreatmentsTried = append(next.TreatmentsTried, contextmodel.Treatment{Name: name, Type: kind, Effective: effective})
		return nil
	})
}

// RemoveTreatment deletes the treatment at index.
func (s *Service) RemoveTreatment(ctx context.Context, index int) (*contextmodel.Context, error) {
	return s.edit(ctx, func(next *contextmodel.Context) error {
		if index < 0 || index >= len(next.TreatmentsTried) {
			return ErrIndexOutOfRange
		}
		next.TreatmentsTried = append(next.TreatmentsTried[:index], next.TreatmentsTried[index+1:]...)
		return nil
	})
}

// AddHistory appends a medical-history entry.
func (s *Service) AddHistory(ctx context.Context, condition, duration string) (*contextmodel.Context, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return nil, ErrNameRequired
	}
	return s.edit(ctx, func(next *contextmodel.Context) error {
		next.MedicalHistory = append(next.MedicalHistory, contextmodel.HistoryEntry{
			Condition: condition,
			Duration:  strings.TrimSpace(duration),
		})
		return nil
	})
}

// RemoveHistory deletes the history entry at index.
func (s *Service) RemoveHistory(ctx context.Context, index int) (*contextmodel.Context, error) {
	return s.edit(ctx, func(next *contextmodel.Context) error {
		if index < 0 || index >= len(next.MedicalHistory) {
			return ErrIndexOutOfRange
		}
		next.MedicalHistory = append(next.MedicalHistory[:index], next.MedicalHistory[index+1:]...)
		return nil
	})
}

// AddPreference records or overwrites a cultural preference.
func (s *Service) AddPreference(ctx context.Context, name string, importance int) (*contextmodel.Context, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if importance < 1 || importance > 5 {
		return nil, ErrScoreRange
	}
	return s.edit(ctx, func(next *contextmodel.Context) error {
		next.CulturalPreferences[name] = contextmodel.Preference{Preference: name, Importance: importance}
		return nil
	})
}

// RemovePreference deletes a cultural preference.
func (s *Service) RemovePreference(ctx context.Context, name string) (*contextmodel.Context, error) {
	return s.edit(ctx, func(next *contextmodel.Context) error {
		if _, ok := next.CulturalPreferences[name]; !ok {
			return fmt.Errorf("%w: preference %q", ErrNotFound, name)
		}
		delete(next.CulturalPreferences, name)
		return nil
	})
}

// SetLanguage changes the preferred language.
func (s *Service) SetLanguage(ctx context.Context, code string) (*contextmodel.Context, error) {
	code = strings.TrimSpace(code)
	if !speechmodel.IsSupportedLanguage(code) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLanguage, code)
	}
	return s.edit(ctx, func(next *contextmodel.Context) error {
		next.Language = code
		return nil
	})
}

// Snapshot returns the current editor state.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{SessionID: s.session(), Loading: s.loading}
	if s.current != nil {
		c := s.current.Clone()
		snap.Context = &c
	}
	return snap
}

func (s *Service) edit(ctx context.Context, mutate func(next *contextmodel.Context) error) (*contextmodel.Context, error) {
	sessionID := s.session()
	if sessionID == "" {
		return nil, ErrNoSession
	}

	s.mu.Lock()
	var next contextmodel.Context
	if s.current != nil {
		next = s.current.Clone()
	} else {
		next = contextmodel.Context{Language: "en"}.Clone()
	}
	if err := mutate(&next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	gen := s.gen.Next()
	s.loading = true
	s.mu.Unlock()

	stored, err := s.api.ReplaceUserContext(ctx, contextmodel.UpdateFor(sessionID, next))
	return s.apply(gen, stored, err, "update context")
}

func (s *Service) apply(gen uint64, uc *contextmodel.Context, err error, op string) (*contextmodel.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gen.IsCurrent(gen) {
		return nil, view.ErrSuperseded
	}
	s.loading = false
	if err != nil {
		s.logger.Warn().Err(err).Msg(op + " failed")
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	normalized := uc.Clone()
	s.current = &normalized
	out := normalized.Clone()
	return &out, nil
}
