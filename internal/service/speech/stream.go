package speech

import (
	"context"
	"errors"
	"sync"
	"time"

	speechmodel "github.com/zhouzirui/elera-assistant/console/internal/model/speech"
)

// ErrPlaybackTimeout is returned when the remote player never reports the
// end of playback.
var ErrPlaybackTimeout = errors.New("playback did not finish in time")

// StreamMicrophone is a Microphone fed with PCM frames from a remote
// client, such as the browser bridge.
type StreamMicrophone struct {
	format PCMFormat

	mu      sync.Mutex
	granted bool
	level   float64
	active  *streamRecording
}

// NewStreamMicrophone creates a microphone that is granted until the
// client reports otherwise.
func NewStreamMicrophone(format PCMFormat) *StreamMicrophone {
	if format.SampleRate == 0 {
		format = DefaultPCMFormat
	}
	return &StreamMicrophone{format: format, granted: true}
}

// SetPermission records the client's permission answer.
func (m *StreamMicrophone) SetPermission(granted bool) {
	m.mu.Lock()
	m.granted = granted
	m.mu.Unlock()
}

// RequestPermission reports the last permission answer.
func (m *StreamMicrophone) RequestPermission(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.granted {
		return ErrPermissionDenied
	}
	return nil
}

// Record starts buffering frames.
func (m *StreamMicrophone) Record(ctx context.Context) (Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.granted {
		return nil, ErrPermissionDenied
	}
	rec := &streamRecording{mic: m}
	m.active = rec
	m.level = 0
	return rec, nil
}

// Feed delivers one PCM frame. Frames outside a recording only update the
// level meter.
func (m *StreamMicrophone) Feed(frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = PCMLevel(frame)
	if m.active != nil && !m.active.stopped {
		m.active.buf = append(m.active.buf, frame...)
	}
}

// Recording reports whether a capture is open.
func (m *StreamMicrophone) Recording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

type streamRecording struct {
	mic     *StreamMicrophone
	buf     []byte
	stopped bool
}

func (r *streamRecording) Level() float64 {
	r.mic.mu.Lock()
	defer r.mic.mu.Unlock()
	return r.mic.level
}

func (r *streamRecording) Stop() (Clip, error) {
	r.mic.mu.Lock()
	defer r.mic.mu.Unlock()
	r.stopped = true
	pcm := r.buf
	r.buf = nil
	return Clip{
		Data:        EncodeWAV(pcm, r.mic.format),
		ContentType: "audio/wav",
		Filename:    "recording.wav",
		Duration:    r.mic.format.Duration(len(pcm)),
	}, nil
}

func (r *streamRecording) Close() error {
	r.mic.mu.Lock()
	defer r.mic.mu.Unlock()
	r.stopped = true
	r.buf = nil
	if r.mic.active == r {
		r.mic.active = nil
	}
	return nil
}

// StreamPlayer hands audio to a remote client and waits for it to report
// the end of playback.
type StreamPlayer struct {
	send    func(ctx context.Context, audio speechmodel.Audio) error
	done    chan struct{}
	maxWait time.Duration
}

// NewStreamPlayer creates a player that delivers audio through send.
func NewStreamPlayer(send func(ctx context.Context, audio speechmodel.Audio) error, maxWait time.Duration) *StreamPlayer {
	if maxWait <= 0 {
		maxWait = 2 * time.Minute
	}
	return &StreamPlayer{send: send, done: make(chan struct{}, 1), maxWait: maxWait}
}

// Play sends audio and blocks until PlaybackDone, ctx or the timeout.
func (p *StreamPlayer) Play(ctx context.Context, audio speechmodel.Audio) error {
	select {
	case <-p.done:
	default:
	}
	if err := p.send(ctx, audio); err != nil {
		return err
	}

	timer := time.NewTimer(p.maxWait)
	defer timer.Stop()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrPlaybackTimeout
	}
}

// PlaybackDone is called when the client finished playing.
func (p *StreamPlayer) PlaybackDone() {
	select {
	case p.done <- struct{}{}:
	default:
	}
}
