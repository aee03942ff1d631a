package speech

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/zhouzirui/elera-assistant/console/internal/model/common"
	speechmodel "github.com/zhouzirui/elera-assistant/console/internal/model/speech"
)

// VoiceAPI is the part of the assistant API the voice loop needs.
type VoiceAPI interface {
	VoiceToken(ctx context.Context, req speechmodel.TokenRequest) (*speechmodel.Credentials, error)
	Transcribe(ctx context.Context, req speechmodel.TranscribeRequest) (*speechmodel.Transcript, error)
	Synthesize(ctx context.Context, req speechmodel.SynthesizeRequest) (*speechmodel.Audio, error)
}

// Remote implements Transcriber and Synthesizer over the assistant API.
// Voice credentials are requested once and reused.
type Remote struct {
	api          VoiceAPI
	userName     string
	identity     string
	conversation func() common.ID

	mu    sync.Mutex
	creds *speechmodel.Credentials
}

// NewRemote creates the adapter. conversation may be nil.
func NewRemote(api VoiceAPI, identity, userName string, conversation func() common.ID) *Remote {
	return &Remote{api: api, identity: identity, userName: userName, conversation: conversation}
}

// Credentials returns the voice session, requesting it on first use.
func (r *Remote) Credentials(ctx context.Context) (*speechmodel.Credentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.creds != nil {
		return r.creds, nil
	}

	req := speechmodel.TokenRequest{UserIdentity: r.identity, UserName: r.userName}
	if r.conversation != nil {
		req.ConversationID = r.conversation()
	}
	creds, err := r.api.VoiceToken(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("voice token: %w", err)
	}
	r.creds = creds
	return creds, nil
}

// Transcribe uploads clip and returns the recognized text.
func (r *Remote) Transcribe(ctx context.Context, clip Clip, language string) (string, error) {
	creds, err := r.Credentials(ctx)
	if err != nil {
		return "", err
	}
	out, err := r.api.Transcribe(ctx, speechmodel.TranscribeRequest{
		VoiceSessionID: creds.VoiceSessionID,
		ParticipantID:  creds.ParticipantID,
		Language:       language,
		Filename:       clip.Filename,
		Audio:          bytes.NewReader(clip.Data),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Transcript), nil
}

// Synthesize requests audio for text with voiceID.
func (r *Remote) Synthesize(ctx context.Context, text, language, voiceID string) (*speechmodel.Audio, error) {
	creds, err := r.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	return r.api.Synthesize(ctx, speechmodel.SynthesizeRequest{
		VoiceSessionID: creds.VoiceSessionID,
		Text:           text,
		LanguageCode:   language,
		VoiceID:        voiceID,
	})
}
