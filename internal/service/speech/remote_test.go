package speech

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/elera-assistant/console/internal/model/common"
	speechmodel "github.com/zhouzirui/elera-assistant/console/internal/model/speech"
)

type fakeVoiceAPI struct {
	tokens     []speechmodel.TokenRequest
	transcribe []speechmodel.TranscribeRequest
	audio      []byte
	synth      []speechmodel.SynthesizeRequest
}

func (f *fakeVoiceAPI) VoiceToken(ctx context.Context, req speechmodel.TokenRequest) (*speechmodel.Credentials, error) {
	f.tokens = append(f.tokens, req)
	return &speechmodel.Credentials{VoiceSessionID: "vs-1", ParticipantID: "p-1"}, nil
}

func (f *fakeVoiceAPI) Transcribe(ctx context.Context, req speechmodel.TranscribeRequest) (*speechmodel.Transcript, error) {
	data, err := io.ReadAll(req.Audio)
	if err != nil {
		return nil, err
	}
	f.audio = data
	req.Audio = nil
	f.transcribe = append(f.transcribe, req)
	return &speechmodel.Transcript{Transcript: "  my chest hurts \n"}, nil
}

func (f *fakeVoiceAPI) Synthesize(ctx context.Context, req speechmodel.SynthesizeRequest) (*speechmodel.Audio, error) {
	f.synth = append(f.synth, req)
	return &speechmodel.Audio{Data: []byte("mp3"), ContentType: "audio/mpeg"}, nil
}

func TestRemoteReusesCredentials(t *testing.T) {
	api := &fakeVoiceAPI{}
	remote := NewRemote(api, "browser-1", "Ada", func() common.ID { return "55" })
	ctx := context.Background()

	text, err := remote.Transcribe(ctx, Clip{Data: []byte("wav"), Filename: "recording.wav"}, "yo")
	require.NoError(t, err)
	assert.Equal(t, "my chest hurts", text)

	audio, err := remote.Synthesize(ctx, "Sorry to hear that", "yo", "voice-x")
	require.NoError(t, err)
	assert.Equal(t, "mp3", string(audio.Data))

	require.Len(t, api.tokens, 1)
	assert.Equal(t, speechmodel.TokenRequest{ConversationID: "55", UserIdentity: "browser-1", UserName: "Ada"}, api.tokens[0])

	require.Len(t, api.transcribe, 1)
	assert.Equal(t, "vs-1", api.transcribe[0].VoiceSessionID)
	assert.Equal(t, "p-1", api.transcribe[0].ParticipantID)
	assert.Equal(t, "yo", api.transcribe[0].Language)
	assert.Equal(t, []byte("wav"), api.audio)

	require.Len(t, api.synth, 1)
	assert.Equal(t, speechmodel.SynthesizeRequest{VoiceSessionID: "vs-1", Text: "Sorry to hear that", LanguageCode: "yo", VoiceID: "voice-x"}, api.synth[0])
}
