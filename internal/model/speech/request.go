package speech

import (
	"io"

	"github.com/zhouzirui/elera-assistant/console/internal/model/common"
)

// TokenRequest 申请实时语音房间凭证
type TokenRequest struct {
	ConversationID common.ID `json:"conversation_id,omitempty"`
	UserIdentity   string    `json:"user_identity"`
	UserName       string    `json:"user_name"`
}

// TranscribeRequest 语音识别请求，以 multipart 表单上传
type TranscribeRequest struct {
	VoiceSessionID string
	ParticipantID  string
	Language       string
	Filename       string
	Audio          io.Reader `json:"-"`
}

// SynthesizeRequest 语音合成请求
type SynthesizeRequest struct {
	VoiceSessionID string `json:"voice_session_id"`
	Text           string `json:"text"`
	LanguageCode   string `json:"language_code"`
	VoiceID        string `json:"voice_id"`
}
