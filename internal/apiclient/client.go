// Package apiclient is the typed client for the remote assistant REST API.
package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/elera-assistant/console/internal/config"
	analyticsmodel "github.com/zhouzirui/elera-assistant/console/internal/model/analytics"
	chatmodel "github.com/zhouzirui/elera-assistant/console/internal/model/chat"
	"github.com/zhouzirui/elera-assistant/console/internal/model/common"
	feedbackmodel "github.com/zhouzirui/elera-assistant/console/internal/model/feedback"
	pipelinemodel "github.com/zhouzirui/elera-assistant/console/internal/model/pipeline"
	speechmodel "github.com/zhouzirui/elera-assistant/console/internal/model/speech"
	contextmodel "github.com/zhouzirui/elera-assistant/console/internal/model/usercontext"
)

const (
	pathChat         = "/api/chat/"
	pathSummary      = "/api/chat/summary/"
	pathDashboard    = "/api/analytics/dashboard/"
	pathFeedback     = "/api/feedback/"
	pathExpertReview = "/api/expert-review/"
	pathUserContext  = "/api/user-context/"
	pathPipeline     = "/api/data-pipeline/"
	pathVoiceToken   = "/voice/token/"
	pathTranscribe   = "/voice/transcribe/"
	pathSynthesize   = "/voice/synthesize/"
)

// Client talks to the assistant API. It is safe for concurrent use.
type Client struct {
	http   *resty.Client
	voice  *resty.Client
	logger zerolog.Logger
}

// New builds a Client from cfg. JSON endpoints retry transport failures
// cfg.Retries times; voice endpoints never retry because their bodies are
// streamed and synthesis has its own fallback policy.
func New(cfg config.APIConfig, logger zerolog.Logger) *Client {
	base := func() *resty.Client {
		return resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout).
			SetJSONMarshaler(sonic.ConfigStd.Marshal).
			SetJSONUnmarshaler(sonic.ConfigStd.Unmarshal).
			SetHeader("Accept", "application/json")
	}

	httpClient := base()
	if cfg.Retries > 0 {
		httpClient.
			SetRetryCount(cfg.Retries).
			SetRetryWaitTime(500 * time.Millisecond).
			SetRetryMaxWaitTime(5 * time.Second)
	}

	return &Client{
		http:   httpClient,
		voice:  base(),
		logger: logger.With().Str("component", "apiclient").Logger(),
	}
}

func (c *Client) do(ctx context.Context, client *resty.Client, method, path string, build func(*resty.Request)) (*resty.Response, error) {
	req := client.R().SetContext(ctx)
	if build != nil {
		build(req)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Str("path", path).Msg("api call failed")
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode()).
		Dur("latency", time.Since(start)).
		Msg("api call")

	if resp.IsError() {
		apiErr := newAPIError(method, path, resp.StatusCode(), resp.Body())
		c.logger.Warn().
			Str("method", method).
			Str("path", path).
			Int("status", apiErr.StatusCode).
			Str("detail_status", apiErr.DetailStatus).
			Msg(apiErr.Message)
		return resp, apiErr
	}
	return resp, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	_, err := c.do(ctx, c.http, http.MethodPost, path, func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").SetBody(body)
		if out != nil {
			r.SetResult(out)
		}
	})
	return err
}

func (c *Client) getJSON(ctx context.Context, path string, query map[string]string, out any) error {
	_, err := c.do(ctx, c.http, http.MethodGet, path, func(r *resty.Request) {
		if len(query) > 0 {
			r.SetQueryParams(query)
		}
		r.SetResult(out)
	})
	return err
}

// Chat sends a user message and returns the assistant reply.
func (c *Client) Chat(ctx context.Context, req chatmodel.Request) (*chatmodel.Reply, error) {
	var reply chatmodel.Reply
	if err := c.postJSON(ctx, pathChat, req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Summary requests the consultation summary of a session.
func (c *Client) Summary(ctx context.Context, sessionID common.ID) (*chatmodel.Summary, error) {
	var summary chatmodel.Summary
	if err := c.postJSON(ctx, pathSummary, chatmodel.SummaryRequest{SessionID: sessionID}, &summary); err != nil {
		return nil, err
	}
	summary.Normalize()
	return &summary, nil
}

// Dashboard fetches analytics aggregated over [from, to] (YYYY-MM-DD).
func (c *Client) Dashboard(ctx context.Context, from, to string) (*analyticsmodel.Dashboard, error) {
	var dashboard analyticsmodel.Dashboard
	query := map[string]string{"from_date": from, "to_date": to}
	if err := c.getJSON(ctx, pathDashboard, query, &dashboard); err != nil {
		return nil, err
	}
	return &dashboard, nil
}

// ListFeedback returns every feedback record.
func (c *Client) ListFeedback(ctx context.Context) ([]feedbackmodel.Item, error) {
	var items []feedbackmodel.Item
	if err := c.getJSON(ctx, pathFeedback, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateFeedback stores an end-user rating.
func (c *Client) CreateFeedback(ctx context.Context, sub feedbackmodel.Submission) error {
	return c.postJSON(ctx, pathFeedback, sub, nil)
}

// CreateReview stores an expert review.
func (c *Client) CreateReview(ctx context.Context, review feedbackmodel.Review) (*feedbackmodel.Review, error) {
	var created feedbackmodel.Review
	if err := c.postJSON(ctx, pathExpertReview, review, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetUserContext reads the structured context of a session.
func (c *Client) GetUserContext(ctx context.Context, sessionID common.ID) (*contextmodel.Context, error) {
	var uc contextmodel.Context
	query := map[string]string{"session_id": sessionID.String()}
	if err := c.getJSON(ctx, pathUserContext, query, &uc); err != nil {
		return nil, err
	}
	return &uc, nil
}

// ReplaceUserContext posts the full next document and returns the stored one.
func (c *Client) ReplaceUserContext(ctx context.Context, update contextmodel.Update) (*contextmodel.Context, error) {
	var uc contextmodel.Context
	if err := c.postJSON(ctx, pathUserContext, update, &uc); err != nil {
		return nil, err
	}
	return &uc, nil
}

// PipelineStats lists exported datasets and the latest metrics.
func (c *Client) PipelineStats(ctx context.Context) (*pipelinemodel.Stats, error) {
	var stats pipelinemodel.Stats
	if err := c.getJSON(ctx, pathPipeline, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// RunPipeline triggers a batch operation.
func (c *Client) RunPipeline(ctx context.Context, req pipelinemodel.RunRequest) (*pipelinemodel.Result, error) {
	var result pipelinemodel.Result
	if err := c.postJSON(ctx, pathPipeline, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// VoiceToken obtains realtime-audio room credentials.
func (c *Client) VoiceToken(ctx context.Context, req speechmodel.TokenRequest) (*speechmodel.Credentials, error) {
	var creds speechmodel.Credentials
	_, err := c.do(ctx, c.voice, http.MethodPost, pathVoiceToken, func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").SetBody(req).SetResult(&creds)
	})
	if err != nil {
		return nil, err
	}
	return &creds, nil
}

// Transcribe uploads a recorded clip for speech-to-text.
func (c *Client) Transcribe(ctx context.Context, req speechmodel.TranscribeRequest) (*speechmodel.Transcript, error) {
	filename := req.Filename
	if filename == "" {
		filename = "recording.wav"
	}

	var transcript speechmodel.Transcript
	_, err := c.do(ctx, c.voice, http.MethodPost, pathTranscribe, func(r *resty.Request) {
		r.SetFileReader("audio", filename, req.Audio).
			SetFormData(map[string]string{
				"voice_session_id": req.VoiceSessionID,
				"participant_id":   req.ParticipantID,
				"language":         req.Language,
			}).
			SetResult(&transcript)
	})
	if err != nil {
		return nil, err
	}
	return &transcript, nil
}

// Synthesize converts text to audio bytes.
func (c *Client) Synthesize(ctx context.Context, req speechmodel.SynthesizeRequest) (*speechmodel.Audio, error) {
	resp, err := c.do(ctx, c.voice, http.MethodPost, pathSynthesize, func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "audio/mpeg, application/json").
			SetBody(req)
	})
	if err != nil {
		return nil, err
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return &speechmodel.Audio{Data: resp.Body(), ContentType: contentType}, nil
}
