package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	analyticsmodel "github.com/zhouzirui/elera-assistant/console/internal/model/analytics"
	pipelinemodel "github.com/zhouzirui/elera-assistant/console/internal/model/pipeline"
	"github.com/zhouzirui/elera-assistant/console/internal/service/view"
)

var (
	ErrInvalidOperation = errors.New("operation must be update_metrics or generate_training")
	ErrInvalidMinRating = errors.New("min rating must be between 1 and 5")
	ErrInvalidDate      = errors.New("dates must use YYYY-MM-DD")
	ErrBusy             = errors.New("a pipeline operation is already running")
)

// DefaultMinRating is the training-data rating floor.
const DefaultMinRating = 4

// Options are the optional parameters of a run.
type Options struct {
	FromDate  string `json:"from_date,omitempty"`
	ToDate    string `json:"to_date,omitempty"`
	MinRating int    `json:"min_rating,omitempty"`
}

// API is the part of the assistant API the pipeline view needs.
type API interface {
	PipelineStats(ctx context.Context) (*pipelinemodel.Stats, error)
	RunPipeline(ctx context.Context, req pipelinemodel.RunRequest) (*pipelinemodel.Result, error)
}

// Outcome is the result of a finished run.
type Outcome struct {
	Operation pipelinemodel.Operation `json:"operation"`
	Message   string                  `json:"message"`
	Result    *pipelinemodel.Result   `json:"result"`
}

// Snapshot is the renderable state of the pipeline view.
type Snapshot struct {
	Stats   *pipelinemodel.Stats `json:"stats,omitempty"`
	Last    *Outcome             `json:"last,omitempty"`
	Running bool                 `json:"running"`
	Loading bool                 `json:"loading"`
}

// Service owns the data-pipeline view.
type Service struct {
	api    API
	logger zerolog.Logger
	gen    view.Generation

	mu      sync.RWMutex
	stats   *pipelinemodel.Stats
	last    *Outcome
	running bool
	loading bool
}

// NewService creates the view.
func NewService(api API, logger zerolog.Logger) *Service {
	return &Service{
		api:    api,
		logger: logger.With().Str("component", "pipeline").Logger(),
	}
}

// Refresh fetches datasets and the latest metrics.
func (s *Service) Refresh(ctx context.Context) (*pipelinemodel.Stats, error) {
	s.mu.Lock()
	gen := s.gen.Next()
	s.loading = true
	s.mu.Unlock()

	stats, err := s.api.PipelineStats(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gen.IsCurrent(gen) {
		return nil, view.ErrSuperseded
	}
	s.loading = false
	if err != nil {
		s.logger.Warn().Err(err).Msg("pipeline stats failed")
		return nil, fmt.Errorf("pipeline stats: %w", err)
	}
	s.stats = stats
	return stats, nil
}

// Run validates and triggers op, then refetches stats. A failed refetch
// does not fail the run.
func (s *Service) Run(ctx context.Context, op pipelinemodel.Operation, opts Options) (*Outcome, error) {
	req, err := buildRequest(op, opts)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.running = true
	s.mu.Unlock()

	result, err := s.api.RunPipeline(ctx, req)

	s.mu.Lock()
	s.running = false
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn().Err(err).Str("operation", string(op)).Msg("pipeline run failed")
		return nil, fmt.Errorf("run %s: %w", op, err)
	}
	outcome := &Outcome{Operation: op, Message: SuccessMessage(op, result), Result: result}
	s.last = outcome
	s.mu.Unlock()

	s.logger.Info().Str("operation", string(op)).Msg(outcome.Message)

	if _, err := s.Refresh(ctx); err != nil && !errors.Is(err, view.ErrSuperseded) {
		s.logger.Debug().Err(err).Msg("refresh after run failed")
	}
	return outcome, nil
}

// Snapshot returns the current view state.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Stats: s.stats, Last: s.last, Running: s.running, Loading: s.loading}
}

func buildRequest(op pipelinemodel.Operation, opts Options) (pipelinemodel.RunRequest, error) {
	req := pipelinemodel.RunRequest{Operation: op}
	switch op {
	case pipelinemodel.OpUpdateMetrics:
	case pipelinemodel.OpGenerateTraining:
		req.MinRating = opts.MinRating
		if req.MinRating == 0 {
			req.MinRating = DefaultMinRating
		}
		if req.MinRating < 1 || req.MinRating > 5 {
			return pipelinemodel.RunRequest{}, ErrInvalidMinRating
		}
	default:
		return pipelinemodel.RunRequest{}, fmt.Errorf("%w: %q", ErrInvalidOperation, op)
	}

	for _, d := range []string{opts.FromDate, opts.ToDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(analyticsmodel.DateLayout, d); err != nil {
			return pipelinemodel.RunRequest{}, fmt.Errorf("%w: %q", ErrInvalidDate, d)
		}
	}
	req.FromDate = opts.FromDate
	req.ToDate = opts.ToDate
	return req, nil
}

// SuccessMessage renders the banner shown after a successful run.
func SuccessMessage(op pipelinemodel.Operation, result *pipelinemodel.Result) string {
	if result == nil {
		result = &pipelinemodel.Result{}
	}
	if op == pipelinemodel.OpGenerateTraining {
		return fmt.Sprintf("Successfully generated training data with %d samples.", result.TotalSamples)
	}
	return fmt.Sprintf("Successfully updated metrics. Created: %d, Updated: %d", result.MetricsCreated, result.MetricsUpdated)
}
