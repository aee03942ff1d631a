package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/elera-assistant/console/internal/apiclient"
	"github.com/zhouzirui/elera-assistant/console/internal/config"
	speechmodel "github.com/zhouzirui/elera-assistant/console/internal/model/speech"
	"github.com/zhouzirui/elera-assistant/console/internal/service/view"
)

// State is the voice loop state.
type State string

const (
	StateIdle          State = "idle"
	StateWelcome       State = "welcome"
	StateRecording     State = "recording"
	StateTranscribing  State = "transcribing"
	StateAwaitingReply State = "awaiting_reply"
	StateSpeaking      State = "speaking"
)

var (
	ErrClosed             = errors.New("voice controller closed")
	ErrBusy               = errors.New("a voice turn is already running")
	ErrNotRecording       = errors.New("not recording")
	ErrPermissionRequired = errors.New("microphone permission required")
	ErrVoiceRequired      = errors.New("voice id is required")
	ErrInvalidLanguage    = errors.New("invalid language code")
)

// Options tune the loop. Zero durations fall back to the defaults.
type Options struct {
	Language         string
	VoiceID          string
	FallbackVoiceID  string
	Continuous       bool
	SilenceThreshold float64
	QuietDuration    time.Duration
	SampleInterval   time.Duration
	RestartDelay     time.Duration
	Catalog          *Catalog
	// SkipWelcome marks the greeting as already played for this session.
	SkipWelcome bool
}

// OptionsFromConfig maps the voice configuration onto loop options.
func OptionsFromConfig(cfg config.VoiceConfig, catalog *Catalog) Options {
	return Options{
		Language:         cfg.Language,
		VoiceID:          cfg.VoiceID,
		FallbackVoiceID:  cfg.FallbackVoiceID,
		Continuous:       cfg.Continuous,
		SilenceThreshold: cfg.SilenceThreshold,
		QuietDuration:    cfg.QuietDuration,
		SampleInterval:   cfg.SampleInterval,
		RestartDelay:     cfg.RestartDelay,
		Catalog:          catalog,
	}
}

func (o Options) withDefaults() Options {
	if o.Language == "" {
		o.Language = speechmodel.DefaultLanguage
	}
	if o.VoiceID == "" {
		o.VoiceID = speechmodel.DefaultVoiceID
	}
	if o.FallbackVoiceID == "" {
		o.FallbackVoiceID = speechmodel.FallbackVoiceID
	}
	if o.SilenceThreshold <= 0 {
		o.SilenceThreshold = 10
	}
	if o.QuietDuration <= 0 {
		o.QuietDuration = time.Second
	}
	if o.SampleInterval <= 0 {
		o.SampleInterval = 16 * time.Millisecond
	}
	if o.RestartDelay <= 0 {
		o.RestartDelay = 500 * time.Millisecond
	}
	if o.Catalog == nil {
		o.Catalog = NewCatalog(config.VoiceConfig{})
	}
	return o
}

// Devices are the capabilities the loop drives. Clock may be nil.
type Devices struct {
	Microphone  Microphone
	Transcriber Transcriber
	Replier     Replier
	Synthesizer Synthesizer
	Player      Player
	Clock       Clock
}

// Status is a point-in-time view of the controller.
type Status struct {
	State              State  `json:"state"`
	Language           string `json:"language"`
	VoiceID            string `json:"voice_id"`
	FallbackVoiceID    string `json:"fallback_voice_id"`
	Continuous         bool   `json:"continuous"`
	VoiceLimitWarning  bool   `json:"voice_limit_warning"`
	PermissionRequired bool   `json:"permission_required"`
	Welcomed           bool   `json:"welcomed"`
	LastTranscript     string `json:"last_transcript,omitempty"`
	LastReply          string `json:"last_reply,omitempty"`
	LastError          string `json:"last_error,omitempty"`
}

// Controller runs the turn-taking loop for one session: record until
// silence, transcribe, fetch a reply, speak it, and optionally listen again.
type Controller struct {
	dev    Devices
	opts   Options
	logger zerolog.Logger
	events *broadcaster

	turnGen view.Generation
	wg      sync.WaitGroup

	mu                 sync.Mutex
	state              State
	language           string
	voiceID            string
	continuous         bool
	warning            bool
	permissionRequired bool
	welcomed           bool
	lastTranscript     string
	lastReply          string
	lastError          string
	running            bool
	cancel             context.CancelFunc
	stop               chan struct{}
	closed             bool
}

// NewController wires the loop; nothing runs until Start.
func NewController(dev Devices, opts Options, logger zerolog.Logger) *Controller {
	if dev.Clock == nil {
		dev.Clock = RealClock()
	}
	opts = opts.withDefaults()
	return &Controller{
		dev:        dev,
		opts:       opts,
		logger:     logger.With().Str("component", "voice").Logger(),
		events:     newBroadcaster(),
		state:      StateIdle,
		language:   opts.Language,
		voiceID:    opts.VoiceID,
		continuous: opts.Continuous,
		welcomed:   opts.SkipWelcome,
	}
}

// Start begins a turn. The first Start of a controller plays the welcome
// message before recording.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.permissionRequired:
		c.mu.Unlock()
		return ErrPermissionRequired
	case c.running:
		c.mu.Unlock()
		return ErrBusy
	}
	gen := c.turnGen.Next()
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.running = true
	c.lastError = ""
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(loopCtx, cancel, gen)
	return nil
}

// Stop ends the current recording early; the turn continues to
// transcription as if silence had been detected.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording || c.stop == nil {
		return ErrNotRecording
	}
	close(c.stop)
	c.stop = nil
	return nil
}

// Halt cancels the running turn and waits for it to unwind.
func (c *Controller) Halt() {
	c.mu.Lock()
	cancel := c.cancel
	c.turnGen.Next()
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

// GrantPermission asks the microphone again and clears the halt on success.
func (c *Controller) GrantPermission(ctx context.Context) error {
	if err := c.dev.Microphone.RequestPermission(ctx); err != nil {
		return fmt.Errorf("request permission: %w", err)
	}
	c.mu.Lock()
	c.permissionRequired = false
	state := c.state
	c.mu.Unlock()
	c.emit(Event{Type: EventState, State: state})
	return nil
}

// SetContinuous toggles automatic re-entry into recording.
func (c *Controller) SetContinuous(on bool) {
	c.mu.Lock()
	c.continuous = on
	c.mu.Unlock()
}

// SetVoice selects the synthesis voice for later turns.
func (c *Controller) SetVoice(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrVoiceRequired
	}
	c.mu.Lock()
	c.voiceID = id
	c.mu.Unlock()
	return nil
}

// SetLanguage switches language and moves to that language's default voice.
func (c *Controller) SetLanguage(code string) error {
	code = strings.TrimSpace(code)
	if !speechmodel.IsSupportedLanguage(code) {
		return fmt.Errorf("%w: %q", ErrInvalidLanguage, code)
	}
	c.mu.Lock()
	c.language = code
	if v, ok := c.opts.Catalog.DefaultVoice(code); ok {
		c.voiceID = v.ID
	}
	c.mu.Unlock()
	return nil
}

// Status returns the current controller state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:              c.state,
		Language:           c.language,
		VoiceID:            c.voiceID,
		FallbackVoiceID:    c.opts.FallbackVoiceID,
		Continuous:         c.continuous,
		VoiceLimitWarning:  c.warning,
		PermissionRequired: c.permissionRequired,
		Welcomed:           c.welcomed,
		LastTranscript:     c.lastTranscript,
		LastReply:          c.lastReply,
		LastError:          c.lastError,
	}
}

// Subscribe returns a stream of loop events. Slow subscribers miss events
// rather than block the loop. The channel closes on Close or cancel.
func (c *Controller) Subscribe(buffer int) (<-chan Event, func()) {
	return c.events.subscribe(buffer)
}

// Close cancels any running turn, waits for it and closes subscriptions.
// It is safe to call more than once.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	c.events.close()
	return nil
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	defer c.wg.Done()
	defer cancel()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.cancel = nil
		c.stop = nil
		c.state = StateIdle
		c.mu.Unlock()
		c.emit(Event{Type: EventState, State: StateIdle})
	}()

	if c.claimWelcome() {
		c.welcome(ctx, gen)
		if !c.wait(ctx, c.opts.RestartDelay) {
			return
		}
	}

	for {
		if !c.turn(ctx, gen) {
			return
		}
		if !c.wait(ctx, c.opts.RestartDelay) {
			return
		}
	}
}

// claimWelcome flips the welcome flag before any synthesis so the greeting
// never replays, even when it fails.
func (c *Controller) claimWelcome() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.welcomed {
		return false
	}
	c.welcomed = true
	return true
}

func (c *Controller) welcome(ctx context.Context, gen uint64) {
	if !c.setState(gen, StateWelcome) {
		return
	}
	c.mu.Lock()
	text := c.opts.Catalog.Welcome(c.language)
	c.mu.Unlock()

	if err := c.speak(ctx, gen, text); err != nil && ctx.Err() == nil {
		c.logger.Warn().Err(err).Msg("welcome message failed")
		c.recordError(fmt.Errorf("welcome: %w", err))
	}
}

// turn runs one record-transcribe-reply-speak cycle and reports whether the
// loop should listen again.
func (c *Controller) turn(ctx context.Context, gen uint64) (again bool) {
	started := c.dev.Clock.Now()
	outcome := OutcomeFailed
	defer func() {
		if ctx.Err() != nil && outcome != OutcomeCompleted {
			outcome = OutcomeCancelled
		}
		voiceTurns.WithLabelValues(outcome).Inc()
		if outcome == OutcomeCompleted {
			voiceTurnSeconds.Observe(c.dev.Clock.Now().Sub(started).Seconds())
		}
	}()

	stop, ok := c.enterRecording(gen)
	if !ok {
		return false
	}

	rec, err := c.dev.Microphone.Record(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			outcome = OutcomePermissionDenied
			c.requirePermission()
			return false
		}
		c.fail(ctx, "start recording", err)
		return false
	}
	release := sync.OnceFunc(func() {
		if err := rec.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("close recording")
		}
	})
	defer release()

	if err := c.capture(ctx, rec, stop); err != nil {
		return false
	}
	clip, err := rec.Stop()
	release()
	if err != nil {
		c.fail(ctx, "stop recording", err)
		return false
	}

	if !c.setState(gen, StateTranscribing) {
		return false
	}
	c.mu.Lock()
	language := c.language
	c.mu.Unlock()

	text, err := c.dev.Transcriber.Transcribe(ctx, clip, language)
	if !c.current(ctx, gen) {
		return false
	}
	if err != nil {
		c.fail(ctx, "transcribe", err)
		return false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		outcome = OutcomeEmptyTranscript
		c.logger.Debug().Dur("clip", clip.Duration).Msg("empty transcript")
		return false
	}
	c.recordTranscript(text)

	if !c.setState(gen, StateAwaitingReply) {
		return false
	}
	reply, err := c.dev.Replier.Reply(ctx, text)
	if !c.current(ctx, gen) {
		return false
	}
	if err != nil {
		c.fail(ctx, "reply", err)
		return false
	}
	c.recordReply(text, reply)

	if !c.setState(gen, StateSpeaking) {
		return false
	}
	if err := c.speak(ctx, gen, reply); err != nil {
		if c.current(ctx, gen) {
			c.fail(ctx, "speak", err)
		}
		return false
	}

	outcome = OutcomeCompleted
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.continuous
}

// capture samples the recording level until the silence detector fires,
// Stop is called, or ctx ends.
func (c *Controller) capture(ctx context.Context, rec Recording, stop <-chan struct{}) error {
	detector := NewSilenceDetector(c.opts.SilenceThreshold, c.opts.QuietDuration)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-c.dev.Clock.After(c.opts.SampleInterval):
			if detector.Observe(rec.Level(), c.dev.Clock.Now()) {
				return nil
			}
		}
	}
}

// speak synthesizes and plays text. A quota error switches to the fallback
// voice for this and later turns and retries exactly once. A session already
// on the fallback voice is not retried.
func (c *Controller) speak(ctx context.Context, gen uint64, text string) error {
	c.mu.Lock()
	voice, language, fallback := c.voiceID, c.language, c.opts.FallbackVoiceID
	c.mu.Unlock()

	audio, err := c.dev.Synthesizer.Synthesize(ctx, text, language, voice)
	retried := false
	if err != nil && ctx.Err() == nil && voice != fallback && apiclient.IsVoiceLimit(err) {
		c.logger.Warn().Err(err).Str("voice_id", voice).Str("fallback_voice_id", fallback).Msg("voice limit reached, using fallback voice")
		c.useFallback(fallback)
		voiceFallbacks.Inc()
		retried = true
		audio, err = c.dev.Synthesizer.Synthesize(ctx, text, language, fallback)
	}
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	if !retried {
		c.clearWarning()
	}
	if !c.current(ctx, gen) {
		return view.ErrSuperseded
	}
	if err := c.dev.Player.Play(ctx, *audio); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}

func (c *Controller) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.dev.Clock.After(d):
		return true
	}
}

func (c *Controller) current(ctx context.Context, gen uint64) bool {
	return ctx.Err() == nil && c.turnGen.IsCurrent(gen)
}

func (c *Controller) setState(gen uint64, s State) bool {
	c.mu.Lock()
	if !c.turnGen.IsCurrent(gen) {
		c.mu.Unlock()
		return false
	}
	c.state = s
	c.mu.Unlock()
	c.emit(Event{Type: EventState, State: s})
	return true
}

func (c *Controller) enterRecording(gen uint64) (<-chan struct{}, bool) {
	c.mu.Lock()
	if !c.turnGen.IsCurrent(gen) {
		c.mu.Unlock()
		return nil, false
	}
	stop := make(chan struct{})
	c.stop = stop
	c.state = StateRecording
	c.mu.Unlock()
	c.emit(Event{Type: EventState, State: StateRecording})
	return stop, true
}

func (c *Controller) requirePermission() {
	c.mu.Lock()
	c.permissionRequired = true
	c.lastError = ErrPermissionDenied.Error()
	c.mu.Unlock()
	c.logger.Warn().Msg("microphone permission denied, loop halted")
	c.emit(Event{Type: EventPermissionRequired, Error: ErrPermissionDenied.Error()})
}

func (c *Controller) fail(ctx context.Context, op string, err error) {
	if ctx.Err() != nil {
		return
	}
	c.logger.Warn().Err(err).Str("op", op).Msg("voice turn failed")
	c.recordError(fmt.Errorf("%s: %w", op, err))
}

func (c *Controller) recordError(err error) {
	c.mu.Lock()
	c.lastError = err.Error()
	c.mu.Unlock()
	c.emit(Event{Type: EventError, Error: err.Error()})
}

func (c *Controller) recordTranscript(text string) {
	c.mu.Lock()
	c.lastTranscript = text
	c.mu.Unlock()
	c.emit(Event{Type: EventTranscript, Text: text})
}

func (c *Controller) recordReply(query, reply string) {
	c.mu.Lock()
	c.lastReply = reply
	c.mu.Unlock()
	c.emit(Event{Type: EventReply, Text: reply})
	c.emit(Event{Type: EventFeedbackPrompt, Query: query, Text: reply})
}

func (c *Controller) useFallback(fallback string) {
	c.mu.Lock()
	c.voiceID = fallback
	c.warning = true
	c.mu.Unlock()
	c.emit(Event{Type: EventVoiceLimit, VoiceID: fallback})
}

func (c *Controller) clearWarning() {
	c.mu.Lock()
	c.warning = false
	c.mu.Unlock()
}

func (c *Controller) emit(e Event) {
	if e.At.IsZero() {
		e.At = c.dev.Clock.Now()
	}
	c.events.publish(e)
}
