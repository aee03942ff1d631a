package chat

import (
	"time"

	"github.com/zhouzirui/elera-assistant/console/internal/model/common"
)

// Role identifies the author of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entities maps an entity category (symptom, medication, ...) to its terms.
type Entities map[string][]string

// Emotion is the server's emotion estimate for a user message.
type Emotion struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// Displayable reports whether the emotion is confident enough to show.
func (e *Emotion) Displayable() bool {
	return e != nil && e.Emotion != "" && e.Emotion != "unknown" && e.Confidence >= 0.5
}

// Message is one transcript entry.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Entities  Entities  `json:"entities,omitempty"`
	Emotion   *Emotion  `json:"emotion,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Request is the body of POST /api/chat/.
type Request struct {
	Message   string    `json:"message"`
	SessionID common.ID `json:"session_id,omitempty"`
}

// Reply is the body returned by POST /api/chat/.
type Reply struct {
	Reply     string    `json:"reply"`
	SessionID common.ID `json:"session_id,omitempty"`
	Entities  Entities  `json:"entities,omitempty"`
	Emotion   *Emotion  `json:"emotion,omitempty"`
}

// SummaryRequest is the body of POST /api/chat/summary/.
type SummaryRequest struct {
	SessionID common.ID `json:"session_id"`
}

// EmotionalAnalysis aggregates the emotions expressed across a session.
type EmotionalAnalysis struct {
	DominantEmotion  string             `json:"dominant_emotion"`
	EmotionBreakdown map[string]float64 `json:"emotion_breakdown"`
}

// Summary is the consultation summary for a session.
type Summary struct {
	Summary           string            `json:"summary"`
	SessionID         common.ID         `json:"session_id"`
	ExtractedEntities Entities          `json:"extracted_entities"`
	EmotionalAnalysis EmotionalAnalysis `json:"emotional_analysis"`
}

// Normalize fills the defaults used when the server omits optional sections.
func (s *Summary) Normalize() {
	if s.ExtractedEntities == nil {
		s.ExtractedEntities = Entities{}
	}
	if s.EmotionalAnalysis.DominantEmotion == "" {
		s.EmotionalAnalysis.DominantEmotion = "unknown"
	}
	if s.EmotionalAnalysis.EmotionBreakdown == nil {
		s.EmotionalAnalysis.EmotionBreakdown = map[string]float64{}
	}
}
