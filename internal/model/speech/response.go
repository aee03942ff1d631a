package speech

// Credentials 实时语音房间凭证
type Credentials struct {
	Token          string `json:"token"`
	RoomName       string `json:"room_name"`
	LiveKitURL     string `json:"livekit_url"`
	VoiceSessionID string `json:"voice_session_id"`
	ParticipantID  string `json:"participant_id"`
}

// Transcript 语音识别结果
type Transcript struct {
	Transcript   string  `json:"transcript"`
	Confidence   float64 `json:"confidence"`
	Language     string  `json:"language"`
	TranscriptID string  `json:"transcript_id"`
}

// Audio 合成得到的音频
type Audio struct {
	Data        []byte `json:"-"`
	ContentType string `json:"content_type"`
}
