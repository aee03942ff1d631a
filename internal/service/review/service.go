package review

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/elera-assistant/console/internal/analysis/issues"
	"github.com/zhouzirui/elera-assistant/console/internal/model/common"
	feedbackmodel "github.com/zhouzirui/elera-assistant/console/internal/model/feedback"
	"github.com/zhouzirui/elera-assistant/console/internal/service/view"
)

var (
	ErrNoSelection      = errors.New("no feedback selected for review")
	ErrReviewerRequired = errors.New("reviewer name is required")
	ErrScoreRange       = errors.New("scores must be between 1 and 5")
	ErrFeedbackNotFound = errors.New("feedback not found")
	ErrInvalidSort      = errors.New("unknown sort mode")
)

// DefaultScore is the initial value of both review scores.
const DefaultScore = 3

// SortMode orders the feedback list.
type SortMode string

const (
	SortRatingAsc  SortMode = "rating_asc"
	SortRatingDesc SortMode = "rating_desc"
	SortDateAsc    SortMode = "date_asc"
	SortDateDesc   SortMode = "date_desc"
	// SortCultural lists culturally inappropriate feedback first.
	SortCultural SortMode = "cultural"
)

// ParseSortMode accepts the known modes; empty means rating_asc.
func ParseSortMode(raw string) (SortMode, error) {
	switch mode := SortMode(strings.TrimSpace(raw)); mode {
	case "":
		return SortRatingAsc, nil
	case SortRatingAsc, SortRatingDesc, SortDateAsc, SortDateDesc, SortCultural:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSort, raw)
	}
}

// API is the part of the assistant API the review view needs.
type API interface {
	ListFeedback(ctx context.Context) ([]feedbackmodel.Item, error)
	CreateReview(ctx context.Context, review feedbackmodel.Review) (*feedbackmodel.Review, error)
}

// Item is a feedback record annotated with the issues found in its comment.
type Item struct {
	feedbackmodel.Item
	Issues []issues.Category `json:"issues"`
}

// Form is the reviewer's input.
type Form struct {
	ReviewerName        string `json:"reviewer_name"`
	MedicalAccuracy     int    `json:"medical_accuracy"`
	CulturalRelevance   int    `json:"cultural_relevance"`
	SuggestedCorrection string `json:"suggested_correction"`
	AdditionalNotes     string `json:"additional_notes"`
}

// Validate checks the form before any network call.
func (f Form) Validate() error {
	if strings.TrimSpace(f.ReviewerName) == "" {
		return ErrReviewerRequired
	}
	if f.MedicalAccuracy < 1 || f.MedicalAccuracy > 5 || f.CulturalRelevance < 1 || f.CulturalRelevance > 5 {
		return ErrScoreRange
	}
	return nil
}

// Snapshot is the renderable state of the review view.
type Snapshot struct {
	Items         []Item                `json:"items"`
	SortMode      SortMode              `json:"sort_mode"`
	Selected      *Item                 `json:"selected,omitempty"`
	Form          Form                  `json:"form"`
	LastSubmitted *feedbackmodel.Review `json:"last_submitted,omitempty"`
	Loading       bool                  `json:"loading"`
}

// Service owns the expert-review view of one browser session.
type Service struct {
	api    API
	logger zerolog.Logger
	gen    view.Generation

	mu        sync.RWMutex
	items     []Item
	mode      SortMode
	selected  *Item
	form      Form
	submitted *feedbackmodel.Review
	loading   bool
}

// NewService creates the view with the default sort and scores.
func NewService(api API, logger zerolog.Logger) *Service {
	return &Service{
		api:    api,
		logger: logger.With().Str("component", "review").Logger(),
		mode:   SortRatingAsc,
		form:   Form{MedicalAccuracy: DefaultScore, CulturalRelevance: DefaultScore},
	}
}

// Load fetches the feedback list, tags each item and applies the current sort.
func (s *Service) Load(ctx context.Context) ([]Item, error) {
	s.mu.Lock()
	gen := s.gen.Next()
	s.loading = true
	s.mu.Unlock()

	raw, err := s.api.ListFeedback(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gen.IsCurrent(gen) {
		return nil, view.ErrSuperseded
	}
	s.loading = false
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}

	items := make([]Item, 0, len(raw))
	for _, it := range raw {
		items = append(items, Item{Item: it, Issues: issues.Tag(it.Comment, it.CulturallyAppropriate)})
	}
	s.items = SortItems(items, s.mode)
	if s.selected != nil {
		s.selected = s.find(s.selected.ID)
	}
	return cloneItems(s.items), nil
}

// Sort reorders the loaded list. It never touches the network.
func (s *Service) Sort(mode SortMode) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	s.items = SortItems(s.items, mode)
	return cloneItems(s.items)
}

// Select marks a feedback item for review.
func (s *Service) Select(id common.ID) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.find(id)
	if item == nil {
		return Item{}, fmt.Errorf("%w: %s", ErrFeedbackNotFound, id)
	}
	s.selected = item
	return *item, nil
}

// Submit validates form against the selection and posts the review. On
// success the form resets to default scores, keeping the reviewer name, and
// the selection clears.
func (s *Service) Submit(ctx context.Context, form Form) (*feedbackmodel.Review, error) {
	s.mu.RLock()
	selected := s.selected
	s.mu.RUnlock()

	if selected == nil {
		return nil, ErrNoSelection
	}
	if err := form.Validate(); err != nil {
		return nil, err
	}

	review := feedbackmodel.Review{
		Feedback:            selected.ID,
		ReviewerName:        strings.TrimSpace(form.ReviewerName),
		MedicalAccuracy:     form.MedicalAccuracy,
		CulturalRelevance:   form.CulturalRelevance,
		SuggestedCorrection: form.SuggestedCorrection,
		AdditionalNotes:     form.AdditionalNotes,
	}
	created, err := s.api.CreateReview(ctx, review)
	if err != nil {
		s.logger.Warn().Err(err).Str("feedback_id", selected.ID.String()).Msg("review submit failed")
		return nil, fmt.Errorf("submit review: %w", err)
	}
	if created == nil || created.Feedback == "" {
		created = &review
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = created
	s.selected = nil
	s.form = Form{
		ReviewerName:      review.ReviewerName,
		MedicalAccuracy:   DefaultScore,
		CulturalRelevance: DefaultScore,
	}
	return created, nil
}

// Snapshot returns the current view state.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Items:         cloneItems(s.items),
		SortMode:      s.mode,
		Form:          s.form,
		LastSubmitted: s.submitted,
		Loading:       s.loading,
	}
	if s.selected != nil {
		sel := *s.selected
		snap.Selected = &sel
	}
	return snap
}

func (s *Service) find(id common.ID) *Item {
	for i := range s.items {
		if s.items[i].ID == id {
			item := s.items[i]
			return &item
		}
	}
	return nil
}

// SortItems returns a stably sorted copy of items.
func SortItems(items []Item, mode SortMode) []Item {
	out := cloneItems(items)
	var less func(a, b Item) bool
	switch mode {
	case SortRatingDesc:
		less = func(a, b Item) bool { return a.Rating > b.Rating }
	case SortDateAsc:
		less = func(a, b Item) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortDateDesc:
		less = func(a, b Item) bool { return a.CreatedAt.After(b.CreatedAt) }
	case SortCultural:
		less = func(a, b Item) bool { return !a.CulturallyAppropriate && b.CulturallyAppropriate }
	default:
		less = func(a, b Item) bool { return a.Rating < b.Rating }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return []Item{}
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
