package speech

import (
	"context"
	"errors"
	"time"

	speechmodel "github.com/zhouzirui/elera-assistant/console/internal/model/speech"
)

// ErrPermissionDenied is returned by a Microphone the user has not granted.
var ErrPermissionDenied = errors.New("microphone permission denied")

// Microphone opens audio capture.
type Microphone interface {
	RequestPermission(ctx context.Context) error
	Record(ctx context.Context) (Recording, error)
}

// Recording is one open capture. Level reports the current average
// amplitude on a 0-255 scale.
type Recording interface {
	Level() float64
	Stop() (Clip, error)
	Close() error
}

// Clip is the audio buffered during one recording.
type Clip struct {
	Data        []byte
	ContentType string
	Filename    string
	Duration    time.Duration
}

// Transcriber turns a clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip Clip, language string) (string, error)
}

// Replier produces the assistant answer for a user utterance.
type Replier interface {
	Reply(ctx context.Context, text string) (string, error)
}

// Synthesizer turns reply text into audio with the given voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language, voiceID string) (*speechmodel.Audio, error)
}

// Player plays audio and returns once playback has finished.
type Player interface {
	Play(ctx context.Context, audio speechmodel.Audio) error
}
