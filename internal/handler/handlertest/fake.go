// Package handlertest provides an in-memory assistant API for handler tests.
package handlertest

import (
	"context"
	"io"
	"sync"

	analyticsmodel "github.com/zhouzirui/elera-assistant/console/internal/model/analytics"
	chatmodel "github.com/zhouzirui/elera-assistant/console/internal/model/chat"
	"github.com/zhouzirui/elera-assistant/console/internal/model/common"
	feedbackmodel "github.com/zhouzirui/elera-assistant/console/internal/model/feedback"
	pipelinemodel "github.com/zhouzirui/elera-assistant/console/internal/model/pipeline"
	speechmodel "github.com/zhouzirui/elera-assistant/console/internal/model/speech"
	contextmodel "github.com/zhouzirui/elera-assistant/console/internal/model/usercontext"
)

// API answers every assistant call from fields. A non-nil Err fails all
// calls with it.
type API struct {
	Err error

	ReplyText     string
	ReplySessID   common.ID
	DashboardData *analyticsmodel.Dashboard
	Feedback      []feedbackmodel.Item
	Stats         *pipelinemodel.Stats
	RunResult     *pipelinemodel.Result
	Transcript    string
	AudioData     []byte

	mu          sync.Mutex
	chats       []chatmodel.Request
	submissions []feedbackmodel.Submission
	reviews     []feedbackmodel.Review
	runs        []pipelinemodel.RunRequest
	contexts    map[common.ID]contextmodel.Context
}

// New returns an API with canned data.
func New() *API {
	return &API{
		ReplyText:   "Drink water and rest.",
		ReplySessID: "conv-1",
		DashboardData: &analyticsmodel.Dashboard{
			Overall: analyticsmodel.Overall{AvgRating: 4.2, CulturalScore: 0.9, FeedbackCount: 12},
			TimeSeries: map[string][]analyticsmodel.Point{
				"avg_rating": {{Date: "2026-10-02", Value: 4}, {Date: "2026-10-01", Value: 3.5}},
			},
		},
		Stats: &pipelinemodel.Stats{
			Datasets:      []pipelinemodel.Dataset{{Filename: "train.jsonl", Size: 2048}},
			LatestMetrics: []pipelinemodel.Metric{{ID: "m1", Type: "avg_rating", Value: 4.5}},
		},
		RunResult:  &pipelinemodel.Result{MetricsCreated: 3, MetricsUpdated: 1},
		Transcript: "I have a headache",
		AudioData:  []byte("mp3"),
		contexts:   make(map[common.ID]contextmodel.Context),
	}
}

func (a *API) Chat(ctx context.Context, req chatmodel.Request) (*chatmodel.Reply, error) {
	if a.Err != nil {
		return nil, a.Err
	}
	a.mu.Lock()
	a.chats = append(a.chats, req)
	a.mu.Unlock()
	return &chatmodel.Reply{Reply: a.ReplyText, SessionID: a.ReplySessID}, nil
}

func (a *API) Summary(ctx context.Context, sessionID common.ID) (*chatmodel.Summary, error) {
	if a.Err != nil {
		return nil, a.Err
	}
	s := &chatmodel.Summary{Summary: "Headache for two days.", SessionID: sessionID}
	s.Normalize()
	return s, nil
}

func (a *API) Dashboard(ctx context.Context, from, to string) (*analyticsmodel.Dashboard, error) {
	if a.Err != nil {
		return nil, a.Err
	}
	d := *a.DashboardData
	d.DateRange = analyticsmodel.DateRange{From: from, To: to}
	return &d, nil
}

func (a *API) ListFeedback(ctx context.Context) ([]feedbackmodel.Item, error) {
	if a.Err != nil {
		return nil, a.Err
	}
	return append([]feedbackmodel.Item(nil), a.Feedback...), nil
}

func (a *API) CreateFeedback(ctx context.Context, sub feedbackmodel.Submission) error {
	if a.Err != nil {
		return a.Err
	}
	a.mu.Lock()
	a.submissions = append(a.submissions, sub)
	a.mu.Unlock()
	return nil
}

func (a *API) CreateReview(ctx context.Context, review feedbackmodel.Review) (*feedbackmodel.Review, error) {
	if a.Err != nil {
		return nil, a.Err
	}
	a.mu.Lock()
	a.reviews = append(a.reviews, review)
	a.mu.Unlock()
	review.ID = "review-1"
	return &review, nil
}

func (a *API) GetUserContext(ctx context.Context, sessionID common.ID) (*contextmodel.Context, error) {
	if a.Err != nil {
		return nil, a.Err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.contexts[sessionID]
	if !ok {
		c = contextmodel.Context{Session: sessionID, Language: "en"}
	}
	c = c.Clone()
	return &c, nil
}

func (a *API) ReplaceUserContext(ctx context.Context, update contextmodel.Update) (*contextmodel.Context, error) {
	if a.Err != nil {
		return nil, a.Err
	}
	c := contextmodel.Context{
		Session:             update.SessionID,
		Symptoms:            update.Symptoms,
		SymptomDurations:    update.SymptomDurations,
		TreatmentsTried:     update.TreatmentsTried,
		MedicalHistory:      update.MedicalHistory,
		CulturalPreferences: update.CulturalPreferences,
		Language:            update.Language,
	}
	c = c.Clone()
	a.mu.Lock()
	a.contexts[update.SessionID] = c
	a.mu.Unlock()
	return &c, nil
}

func (a *API) PipelineStats(ctx context.Context) (*pipelinemodel.Stats, error) {
	if a.Err != nil {
		return nil, a.Err
	}
	return a.Stats, nil
}

func (a *API) RunPipeline(ctx context.Context, req pipelinemodel.RunRequest) (*pipelinemodel.Result, error) {
	if a.Err != nil {
		return nil, a.Err
	}
	a.mu.Lock()
	a.runs = append(a.runs, req)
	a.mu.Unlock()
	return a.RunResult, nil
}

func (a *API) VoiceToken(ctx context.Context, req speechmodel.TokenRequest) (*speechmodel.Credentials, error) {
	if a.Err != nil {
		return nil, a.Err
	}
	return &speechmodel.Credentials{Token: "tok", VoiceSessionID: "voice-1", ParticipantID: req.UserIdentity}, nil
}

func (a *API) Transcribe(ctx context.Context, req speechmodel.TranscribeRequest) (*speechmodel.Transcript, error) {
	if a.Err != nil {
		return nil, a.Err
	}
	if req.Audio != nil {
		_, _ = io.Copy(io.Discard, req.Audio)
	}
	return &speechmodel.Transcript{Transcript: a.Transcript, Language: req.Language}, nil
}

func (a *API) Synthesize(ctx context.Context, req speechmodel.SynthesizeRequest) (*speechmodel.Audio, error) {
	if a.Err != nil {
		return nil, a.Err
	}
	return &speechmodel.Audio{Data: a.AudioData, ContentType: "audio/mpeg"}, nil
}

// Chats returns the chat requests seen so far.
func (a *API) Chats() []chatmodel.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]chatmodel.Request(nil), a.chats...)
}

// Submissions returns the feedback submissions seen so far.
func (a *API) Submissions() []feedbackmodel.Submission {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]feedbackmodel.Submission(nil), a.submissions...)
}

// Reviews returns the expert reviews seen so far.
func (a *API) Reviews() []feedbackmodel.Review {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]feedbackmodel.Review(nil), a.reviews...)
}

// Runs returns the pipeline runs seen so far.
func (a *API) Runs() []pipelinemodel.RunRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]pipelinemodel.RunRequest(nil), a.runs...)
}
