package speech

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/elera-assistant/console/internal/apiclient"
	"github.com/zhouzirui/elera-assistant/console/internal/config"
	speechmodel "github.com/zhouzirui/elera-assistant/console/internal/model/speech"
)

// fakeClock advances virtual time by whatever the caller waits for, so the
// loop never sleeps in tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

type fakeMic struct {
	clock  *fakeClock
	speech time.Duration
	// Record calls after this many block until the turn is cancelled.
	blockAfter int

	mu     sync.Mutex
	denied bool
	opened int
	closed int
	stops  int
}

func (m *fakeMic) RequestPermission(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.denied {
		return ErrPermissionDenied
	}
	return nil
}

func (m *fakeMic) Record(ctx context.Context) (Recording, error) {
	m.mu.Lock()
	if m.denied {
		m.mu.Unlock()
		return nil, ErrPermissionDenied
	}
	m.opened++
	n := m.opened
	m.mu.Unlock()

	if m.blockAfter >= 0 && n > m.blockAfter {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &fakeRecording{mic: m, start: m.clock.Now()}, nil
}

func (m *fakeMic) setDenied(v bool) {
	m.mu.Lock()
	m.denied = v
	m.mu.Unlock()
}

func (m *fakeMic) counts() (opened, closed, stops int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened, m.closed, m.stops
}

type fakeRecording struct {
	mic   *fakeMic
	start time.Time
}

func (r *fakeRecording) Level() float64 {
	if r.mic.clock.Now().Sub(r.start) < r.mic.speech {
		return 120
	}
	return 0
}

func (r *fakeRecording) Stop() (Clip, error) {
	r.mic.mu.Lock()
	r.mic.stops++
	r.mic.mu.Unlock()
	return Clip{Data: []byte("pcm"), Filename: "recording.wav", Duration: r.mic.clock.Now().Sub(r.start)}, nil
}

func (r *fakeRecording) Close() error {
	r.mic.mu.Lock()
	r.mic.closed++
	r.mic.mu.Unlock()
	return nil
}

type fakeTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	block bool
	clips []Clip
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, clip Clip, language string) (string, error) {
	f.mu.Lock()
	f.clips = append(f.clips, clip)
	block, text, err := f.block, f.text, f.err
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return "late transcript", nil
	}
	return text, err
}

func (f *fakeTranscriber) calls() []Clip {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Clip(nil), f.clips...)
}

type fakeReplier struct {
	mu      sync.Mutex
	reply   string
	queries []string
}

func (f *fakeReplier) Reply(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	return f.reply, nil
}

func (f *fakeReplier) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type fakeSynth struct {
	mu      sync.Mutex
	limited map[string]bool
	voices  []string
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, language, voiceID string) (*speechmodel.Audio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voices = append(f.voices, voiceID)
	if f.limited[voiceID] {
		return nil, &apiclient.APIError{Method: http.MethodPost, Path: "/voice/synthesize/", StatusCode: http.StatusTooManyRequests, DetailStatus: "voice_limit_reached"}
	}
	return &speechmodel.Audio{Data: []byte(text), ContentType: "audio/mpeg"}, nil
}

func (f *fakeSynth) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.voices...)
}

type fakePlayer struct {
	mu     sync.Mutex
	played []string
}

func (f *fakePlayer) Play(ctx context.Context, audio speechmodel.Audio) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, string(audio.Data))
	return nil
}

func (f *fakePlayer) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.played...)
}

type rig struct {
	clock *fakeClock
	mic   *fakeMic
	stt   *fakeTranscriber
	reply *fakeReplier
	tts   *fakeSynth
	play  *fakePlayer
	ctrl  *Controller
}

func newRig(t *testing.T, opts Options) *rig {
	t.Helper()
	clock := newFakeClock()
	r := &rig{
		clock: clock,
		mic:   &fakeMic{clock: clock, speech: 3 * time.Second, blockAfter: 1},
		stt:   &fakeTranscriber{text: "I have a headache"},
		reply: &fakeReplier{reply: "Drink water and rest."},
		tts:   &fakeSynth{limited: map[string]bool{}},
		play:  &fakePlayer{},
	}
	if opts.Catalog == nil {
		opts.Catalog = NewCatalog(config.VoiceConfig{WelcomeMessage: "welcome"})
	}
	r.ctrl = NewController(Devices{
		Microphone:  r.mic,
		Transcriber: r.stt,
		Replier:     r.reply,
		Synthesizer: r.tts,
		Player:      r.play,
		Clock:       clock,
	}, opts, zerolog.Nop())
	t.Cleanup(func() { _ = r.ctrl.Close() })
	return r
}

func (r *rig) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		r.ctrl.mu.Lock()
		defer r.ctrl.mu.Unlock()
		return !r.ctrl.running
	}, 2*time.Second, 5*time.Millisecond)
}

func TestEndToEndTurnResumesInContinuousMode(t *testing.T) {
	r := newRig(t, Options{Continuous: true})
	events, cancel := r.ctrl.Subscribe(256)
	defer cancel()

	require.NoError(t, r.ctrl.Start(context.Background()))

	require.Eventually(t, func() bool {
		opened, _, _ := r.mic.counts()
		return opened == 2
	}, 2*time.Second, 5*time.Millisecond, "recording should resume without user action")

	clips := r.stt.calls()
	require.Len(t, clips, 1)
	assert.GreaterOrEqual(t, clips[0].Duration, 3*time.Second)
	assert.LessOrEqual(t, clips[0].Duration, 4100*time.Millisecond)
	assert.Equal(t, []string{"I have a headache"}, r.reply.calls())
	assert.Equal(t, []string{"welcome", "Drink water and rest."}, r.play.calls())

	require.NoError(t, r.ctrl.Close())
	opened, closed, stops := r.mic.counts()
	assert.Equal(t, 2, opened)
	assert.Equal(t, 1, closed)
	assert.Equal(t, 1, stops)
	assert.Equal(t, StateIdle, r.ctrl.Status().State)

	var prompt *Event
	var transcripts []string
	for e := range events {
		if e.Type == EventTranscript {
			transcripts = append(transcripts, e.Text)
		}
		if e.Type == EventFeedbackPrompt {
			e := e
			prompt = &e
		}
	}
	assert.Equal(t, []string{"I have a headache"}, transcripts)
	require.NotNil(t, prompt)
	assert.Equal(t, "I have a headache", prompt.Query)
	assert.Equal(t, "Drink water and rest.", prompt.Text)
}

func TestQuotaErrorRetriesOnceWithFallbackVoice(t *testing.T) {
	r := newRig(t, Options{VoiceID: "primary", FallbackVoiceID: "backup"})
	r.tts.limited["primary"] = true
	before := testutil.ToFloat64(voiceFallbacks)

	require.NoError(t, r.ctrl.Start(context.Background()))
	r.waitIdle(t)

	assert.Equal(t, []string{"primary", "backup", "backup"}, r.tts.calls())
	assert.Equal(t, before+1, testutil.ToFloat64(voiceFallbacks))

	status := r.ctrl.Status()
	assert.Equal(t, "backup", status.VoiceID)
	assert.False(t, status.VoiceLimitWarning, "warning clears after the next plain synthesis")
	assert.Empty(t, status.LastError)
}

func TestQuotaErrorOnFallbackDoesNotLoop(t *testing.T) {
	r := newRig(t, Options{VoiceID: "primary", FallbackVoiceID: "backup"})
	r.tts.limited["primary"] = true
	r.tts.limited["backup"] = true
	before := testutil.ToFloat64(voiceFallbacks)

	require.NoError(t, r.ctrl.Start(context.Background()))
	r.waitIdle(t)

	// welcome: primary + one retry; turn: already on the fallback, no retry
	assert.Equal(t, []string{"primary", "backup", "backup"}, r.tts.calls())
	assert.Equal(t, before+1, testutil.ToFloat64(voiceFallbacks))
	opened, _, _ := r.mic.counts()
	assert.Equal(t, 1, opened, "a failed welcome still starts recording")
	assert.Empty(t, r.play.calls())

	status := r.ctrl.Status()
	assert.True(t, status.VoiceLimitWarning)
	assert.Contains(t, status.LastError, "speak")
}

func TestWelcomePlaysOncePerSession(t *testing.T) {
	r := newRig(t, Options{})
	r.mic.blockAfter = -1

	require.NoError(t, r.ctrl.Start(context.Background()))
	r.waitIdle(t)
	require.NoError(t, r.ctrl.Start(context.Background()))
	r.waitIdle(t)

	played := r.play.calls()
	require.Len(t, played, 3)
	assert.Equal(t, "welcome", played[0])
	assert.NotContains(t, played[1:], "welcome")
	assert.True(t, r.ctrl.Status().Welcomed)
}

func TestPermissionDenialHaltsUntilGranted(t *testing.T) {
	r := newRig(t, Options{Continuous: true})
	r.mic.setDenied(true)

	require.NoError(t, r.ctrl.Start(context.Background()))
	r.waitIdle(t)

	status := r.ctrl.Status()
	assert.True(t, status.PermissionRequired)
	assert.Equal(t, StateIdle, status.State)
	assert.ErrorIs(t, r.ctrl.Start(context.Background()), ErrPermissionRequired)
	assert.ErrorIs(t, r.ctrl.GrantPermission(context.Background()), ErrPermissionDenied)

	r.mic.setDenied(false)
	require.NoError(t, r.ctrl.GrantPermission(context.Background()))
	assert.False(t, r.ctrl.Status().PermissionRequired)
	require.NoError(t, r.ctrl.Start(context.Background()))
	require.Eventually(t, func() bool {
		opened, _, _ := r.mic.counts()
		return opened >= 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestEmptyTranscriptEndsTurnWithoutRestart(t *testing.T) {
	r := newRig(t, Options{Continuous: true})
	r.stt.text = "   "

	require.NoError(t, r.ctrl.Start(context.Background()))
	r.waitIdle(t)

	opened, closed, _ := r.mic.counts()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
	assert.Empty(t, r.reply.calls())
	assert.Empty(t, r.ctrl.Status().LastError)
}

func TestTranscriptionFailureDoesNotRestart(t *testing.T) {
	r := newRig(t, Options{Continuous: true})
	r.stt.err = errors.New("upstream unavailable")

	require.NoError(t, r.ctrl.Start(context.Background()))
	r.waitIdle(t)

	opened, closed, _ := r.mic.counts()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
	assert.Contains(t, r.ctrl.Status().LastError, "transcribe")
}

func TestStopEndsRecordingEarly(t *testing.T) {
	r := newRig(t, Options{})
	r.mic.speech = 24 * time.Hour

	require.NoError(t, r.ctrl.Start(context.Background()))
	require.Eventually(t, func() bool {
		return r.ctrl.Stop() == nil
	}, 2*time.Second, time.Millisecond)
	r.waitIdle(t)

	assert.Len(t, r.stt.calls(), 1)
	assert.Equal(t, []string{"I have a headache"}, r.reply.calls())
	assert.ErrorIs(t, r.ctrl.Stop(), ErrNotRecording)
}

func TestHaltDiscardsLateTranscript(t *testing.T) {
	r := newRig(t, Options{Continuous: true})
	r.stt.block = true

	require.NoError(t, r.ctrl.Start(context.Background()))
	require.Eventually(t, func() bool {
		return r.ctrl.Status().State == StateTranscribing
	}, 2*time.Second, time.Millisecond)

	r.ctrl.Halt()

	assert.Empty(t, r.reply.calls())
	status := r.ctrl.Status()
	assert.Empty(t, status.LastTranscript)
	assert.Equal(t, StateIdle, status.State)
	_, closed, _ := r.mic.counts()
	assert.Equal(t, 1, closed)
}

func TestCloseIsIdempotentAndCancels(t *testing.T) {
	r := newRig(t, Options{})
	r.mic.blockAfter = 0
	events, _ := r.ctrl.Subscribe(8)

	require.NoError(t, r.ctrl.Start(context.Background()))
	require.ErrorIs(t, r.ctrl.Start(context.Background()), ErrBusy)
	require.Eventually(t, func() bool {
		opened, _, _ := r.mic.counts()
		return opened == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, r.ctrl.Close())
	require.NoError(t, r.ctrl.Close())
	assert.ErrorIs(t, r.ctrl.Start(context.Background()), ErrClosed)

	for range events {
	}
}

func TestSetLanguageSwitchesDefaultVoice(t *testing.T) {
	r := newRig(t, Options{})

	require.NoError(t, r.ctrl.SetLanguage("fr"))
	status := r.ctrl.Status()
	assert.Equal(t, "fr", status.Language)
	assert.Equal(t, "t0jbNlBVZ17f02VDIeMI", status.VoiceID)

	assert.ErrorIs(t, r.ctrl.SetLanguage("??"), ErrInvalidLanguage)
	assert.ErrorIs(t, r.ctrl.SetVoice(" "), ErrVoiceRequired)
	require.NoError(t, r.ctrl.SetVoice("TxGEqnHWrfWFTfGW9XjX"))
	assert.Equal(t, "TxGEqnHWrfWFTfGW9XjX", r.ctrl.Status().VoiceID)
}
