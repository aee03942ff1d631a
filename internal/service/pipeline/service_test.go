package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipelinemodel "github.com/zhouzirui/elera-assistant/console/internal/model/pipeline"
)

type fakeAPI struct {
	stats    pipelinemodel.Stats
	result   pipelinemodel.Result
	runs     []pipelinemodel.RunRequest
	statHits int
	runErr   error
}

func (f *fakeAPI) PipelineStats(ctx context.Context) (*pipelinemodel.Stats, error) {
	f.statHits++
	s := f.stats
	return &s, nil
}

func (f *fakeAPI) RunPipeline(ctx context.Context, req pipelinemodel.RunRequest) (*pipelinemodel.Result, error) {
	if f.runErr != nil {
		return nil, f.runErr
	}
	f.runs = append(f.runs, req)
	r := f.result
	return &r, nil
}

func TestRunUpdateMetricsRefetchesStats(t *testing.T) {
	api := &fakeAPI{result: pipelinemodel.Result{MetricsCreated: 3, MetricsUpdated: 2}}
	svc := NewService(api, zerolog.Nop())

	out, err := svc.Run(context.Background(), pipelinemodel.OpUpdateMetrics, Options{FromDate: "2024-01-01"})
	require.NoError(t, err)
	assert.Equal(t, "Successfully updated metrics. Created: 3, Updated: 2", out.Message)
	require.Len(t, api.runs, 1)
	assert.Zero(t, api.runs[0].MinRating)
	assert.Equal(t, "2024-01-01", api.runs[0].FromDate)
	assert.Equal(t, 1, api.statHits)

	snap := svc.Snapshot()
	assert.NotNil(t, snap.Stats)
	assert.Equal(t, out, snap.Last)
	assert.False(t, snap.Running)
}

func TestRunGenerateTrainingDefaultsMinRating(t *testing.T) {
	api := &fakeAPI{result: pipelinemodel.Result{TotalSamples: 12}}
	svc := NewService(api, zerolog.Nop())

	out, err := svc.Run(context.Background(), pipelinemodel.OpGenerateTraining, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Successfully generated training data with 12 samples.", out.Message)
	assert.Equal(t, DefaultMinRating, api.runs[0].MinRating)
}

func TestRunValidation(t *testing.T) {
	api := &fakeAPI{}
	svc := NewService(api, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Run(ctx, "drop_tables", Options{})
	assert.ErrorIs(t, err, ErrInvalidOperation)
	_, err = svc.Run(ctx, pipelinemodel.OpGenerateTraining, Options{MinRating: 7})
	assert.ErrorIs(t, err, ErrInvalidMinRating)
	_, err = svc.Run(ctx, pipelinemodel.OpUpdateMetrics, Options{ToDate: "03/04/2024"})
	assert.ErrorIs(t, err, ErrInvalidDate)
	assert.Empty(t, api.runs)
}

func TestRunFailureKeepsPreviousOutcome(t *testing.T) {
	api := &fakeAPI{runErr: errors.New("backend down")}
	svc := NewService(api, zerolog.Nop())

	_, err := svc.Run(context.Background(), pipelinemodel.OpUpdateMetrics, Options{})
	require.Error(t, err)
	assert.Nil(t, svc.Snapshot().Last)
	assert.False(t, svc.Snapshot().Running)
	assert.Zero(t, api.statHits)
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		0:                      "0 Bytes",
		512:                    "512 Bytes",
		1024:                   "1 KB",
		1536:                   "1.5 KB",
		1048576:                "1 MB",
		3 * 1024 * 1024 * 1024: "3 GB",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatBytes(in), "FormatBytes(%d)", in)
	}
}

func TestMetricDisplayName(t *testing.T) {
	assert.Equal(t, "Average Rating", MetricDisplayName("avg_rating"))
	assert.Equal(t, "Cultural Appropriateness Score", MetricDisplayName("cultural_score"))
	assert.Equal(t, "Response Time", MetricDisplayName("response_time"))
}

func TestMetricDisplayNameConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	results := make(chan string, 8*200)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				results <- MetricDisplayName("response_time_ms")
			}
		}()
	}
	wg.Wait()
	close(results)

	for got := range results {
		assert.Equal(t, "Response Time Ms", got)
	}
}
