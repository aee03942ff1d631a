package session

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatmodel "github.com/zhouzirui/elera-assistant/console/internal/model/chat"
	"github.com/zhouzirui/elera-assistant/console/internal/model/common"
	feedbackmodel "github.com/zhouzirui/elera-assistant/console/internal/model/feedback"
	speechmodel "github.com/zhouzirui/elera-assistant/console/internal/model/speech"
	contextmodel "github.com/zhouzirui/elera-assistant/console/internal/model/usercontext"
	"github.com/zhouzirui/elera-assistant/console/internal/service/review"
	"github.com/zhouzirui/elera-assistant/console/internal/service/speech"
)

type fakeAPI struct {
	feedback []feedbackmodel.Submission
}

func (f *fakeAPI) Chat(ctx context.Context, req chatmodel.Request) (*chatmodel.Reply, error) {
	return &chatmodel.Reply{Reply: "echo: " + req.Message, SessionID: "17"}, nil
}

func (f *fakeAPI) Summary(ctx context.Context, sessionID common.ID) (*chatmodel.Summary, error) {
	return &chatmodel.Summary{SessionID: sessionID}, nil
}

func (f *fakeAPI) GetUserContext(ctx context.Context, sessionID common.ID) (*contextmodel.Context, error) {
	return &contextmodel.Context{Session: sessionID}, nil
}

func (f *fakeAPI) ReplaceUserContext(ctx context.Context, update contextmodel.Update) (*contextmodel.Context, error) {
	return &contextmodel.Context{Session: update.SessionID, Language: update.Language}, nil
}

func (f *fakeAPI) CreateFeedback(ctx context.Context, sub feedbackmodel.Submission) error {
	f.feedback = append(f.feedback, sub)
	return nil
}

func (f *fakeAPI) VoiceToken(ctx context.Context, req speechmodel.TokenRequest) (*speechmodel.Credentials, error) {
	return &speechmodel.Credentials{VoiceSessionID: "v"}, nil
}

func (f *fakeAPI) Transcribe(ctx context.Context, req speechmodel.TranscribeRequest) (*speechmodel.Transcript, error) {
	return &speechmodel.Transcript{}, nil
}

func (f *fakeAPI) Synthesize(ctx context.Context, req speechmodel.SynthesizeRequest) (*speechmodel.Audio, error) {
	return &speechmodel.Audio{}, nil
}

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry(&fakeAPI{}, zerolog.Nop())

	a := reg.Create()
	b := reg.Create()
	assert.NotEqual(t, a.ID, b.ID)

	got, err := reg.Get(a.ID)
	require.NoError(t, err)
	assert.Same(t, a, got)

	assert.Len(t, reg.List(), 2)

	require.NoError(t, reg.Delete(a.ID))
	_, err = reg.Get(a.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, reg.Delete(a.ID), ErrSessionNotFound)
	assert.Len(t, reg.List(), 1)
}

func TestContextFollowsChatSession(t *testing.T) {
	reg := NewRegistry(&fakeAPI{}, zerolog.Nop())
	s := reg.Create()
	ctx := context.Background()

	_, err := s.Context.Load(ctx)
	require.Error(t, err, "no chat session yet")

	_, err = s.Chat.Send(ctx, "hello")
	require.NoError(t, err)
	uc, err := s.Context.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.ID("17"), uc.Session)
	assert.Equal(t, common.ID("17"), s.Info().ChatSessionID)
}

func TestSubmitFeedbackUsesLastExchange(t *testing.T) {
	api := &fakeAPI{}
	reg := NewRegistry(api, zerolog.Nop())
	s := reg.Create()
	ctx := context.Background()

	err := s.SubmitFeedback(ctx, review.FeedbackForm{Rating: 4, CulturallyAppropriate: true})
	assert.ErrorIs(t, err, review.ErrNoExchange)

	_, err = s.Chat.Send(ctx, "I feel dizzy")
	require.NoError(t, err)

	err = s.SubmitFeedback(ctx, review.FeedbackForm{CulturallyAppropriate: false, Comment: "hmm"})
	assert.ErrorIs(t, err, review.ErrRatingRequired)
	assert.Equal(t, "hmm", s.Feedback().Comment)

	require.NoError(t, s.SubmitFeedback(ctx, review.FeedbackForm{Rating: 2, Comment: " too vague "}))
	require.Len(t, api.feedback, 1)
	sub := api.feedback[0]
	assert.Equal(t, common.ID("17"), sub.SessionID)
	assert.Equal(t, "I feel dizzy", sub.UserQuery)
	assert.Equal(t, "echo: I feel dizzy", sub.ResponseText)
	assert.Equal(t, "too vague", sub.Comment)
	assert.Equal(t, review.NewFeedbackForm(), s.Feedback())
}

func TestVoiceAttachReplaceAndDetach(t *testing.T) {
	reg := NewRegistry(&fakeAPI{}, zerolog.Nop())
	s := reg.Create()

	first := speech.NewController(speech.Devices{}, s.PrepareVoice(speech.Options{Language: "en"}), zerolog.Nop())
	s.AttachVoice(first)
	require.NoError(t, first.SetLanguage("yo"))

	opts := s.PrepareVoice(speech.Options{Language: "en"})
	assert.Equal(t, "yo", opts.Language)

	second := speech.NewController(speech.Devices{}, opts, zerolog.Nop())
	s.AttachVoice(second)
	assert.ErrorIs(t, first.Start(context.Background()), speech.ErrClosed)

	ctrl, ok := s.Voice()
	require.True(t, ok)
	assert.Same(t, second, ctrl)
	assert.True(t, s.Info().VoiceActive)

	s.DetachVoice(first)
	_, ok = s.Voice()
	assert.True(t, ok, "detaching a stale controller is a no-op")

	s.DetachVoice(second)
	_, ok = s.Voice()
	assert.False(t, ok)
	assert.Equal(t, "yo", s.PrepareVoice(speech.Options{}).Language)
}
