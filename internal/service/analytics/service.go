package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	analyticsmodel "github.com/zhouzirui/elera-assistant/console/internal/model/analytics"
	"github.com/zhouzirui/elera-assistant/console/internal/service/view"
)

var (
	ErrInvalidDate  = errors.New("dates must use YYYY-MM-DD")
	ErrInvalidRange = errors.New("from date must not be after to date")
	ErrNoData       = errors.New("analytics have not been loaded")
)

// DefaultWindow is the span shown when no range is chosen.
const DefaultWindow = 30 * 24 * time.Hour

// API is the part of the assistant API the dashboard needs.
type API interface {
	Dashboard(ctx context.Context, from, to string) (*analyticsmodel.Dashboard, error)
}

// Range is an inclusive day range.
type Range struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DefaultRange covers the last 30 days ending today.
func DefaultRange(now time.Time) Range {
	return Range{
		From: now.Add(-DefaultWindow).Format(analyticsmodel.DateLayout),
		To:   now.Format(analyticsmodel.DateLayout),
	}
}

// Validate checks the day format and ordering.
func (r Range) Validate() error {
	from, err := time.Parse(analyticsmodel.DateLayout, r.From)
	if err != nil {
		return fmt.Errorf("%w: from=%q", ErrInvalidDate, r.From)
	}
	to, err := time.Parse(analyticsmodel.DateLayout, r.To)
	if err != nil {
		return fmt.Errorf("%w: to=%q", ErrInvalidDate, r.To)
	}
	if from.After(to) {
		return ErrInvalidRange
	}
	return nil
}

// Snapshot is the renderable state of the dashboard.
type Snapshot struct {
	Range     Range                     `json:"range"`
	Dashboard *analyticsmodel.Dashboard `json:"dashboard,omitempty"`
	FetchedAt time.Time                 `json:"fetched_at,omitempty"`
	Loading   bool                      `json:"loading"`
}

// Service owns the analytics view of one browser session.
type Service struct {
	api    API
	now    func() time.Time
	logger zerolog.Logger
	gen    view.Generation

	mu        sync.RWMutex
	rng       Range
	dashboard *analyticsmodel.Dashboard
	fetchedAt time.Time
	loading   bool
}

// NewService creates the view; now may be nil for the wall clock.
func NewService(api API, now func() time.Time, logger zerolog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		api:    api,
		now:    now,
		logger: logger.With().Str("component", "analytics").Logger(),
		rng:    DefaultRange(now()),
	}
}

// Refresh fetches the dashboard for rng. Empty bounds fall back to the
// default 30-day window.
func (s *Service) Refresh(ctx context.Context, rng Range) (*analyticsmodel.Dashboard, error) {
	def := DefaultRange(s.now())
	if rng.From == "" {
		rng.From = def.From
	}
	if rng.To == "" {
		rng.To = def.To
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	gen := s.gen.Next()
	s.rng = rng
	s.loading = true
	s.mu.Unlock()

	dashboard, err := s.api.Dashboard(ctx, rng.From, rng.To)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gen.IsCurrent(gen) {
		return nil, view.ErrSuperseded
	}
	s.loading = false
	if err != nil {
		s.logger.Warn().Err(err).Str("from", rng.From).Str("to", rng.To).Msg("dashboard fetch failed")
		return nil, fmt.Errorf("fetch dashboard: %w", err)
	}
	s.dashboard = dashboard
	s.fetchedAt = s.now()
	return dashboard, nil
}

// Metrics lists the metric types present in the loaded time series.
func (s *Service) Metrics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dashboard == nil {
		return nil
	}
	out := make([]string, 0, len(s.dashboard.TimeSeries))
	for metric := range s.dashboard.TimeSeries {
		out = append(out, metric)
	}
	sort.Strings(out)
	return out
}

// Series returns the chart points of metric ordered by date.
func (s *Service) Series(metric string) ([]analyticsmodel.Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dashboard == nil {
		return nil, ErrNoData
	}
	points := append([]analyticsmodel.Point(nil), s.dashboard.TimeSeries[metric]...)
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points, nil
}

// Snapshot returns the current view state.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Range:     s.rng,
		Dashboard: s.dashboard,
		FetchedAt: s.fetchedAt,
		Loading:   s.loading,
	}
}
