package feedback

import (
	"time"

	"github.com/zhouzirui/elera-assistant/console/internal/model/common"
)

// Item is a feedback record as listed by GET /api/feedback/.
type Item struct {
	ID                    common.ID `json:"id"`
	Session               common.ID `json:"session"`
	UserQuery             string    `json:"user_query"`
	ResponseText          string    `json:"response_text"`
	Rating                int       `json:"rating"`
	CulturallyAppropriate bool      `json:"culturally_appropriate"`
	Comment               string    `json:"comment"`
	CreatedAt             time.Time `json:"created_at"`
}

// Submission is the body of POST /api/feedback/.
type Submission struct {
	SessionID             common.ID `json:"session_id"`
	Rating                int       `json:"rating"`
	CulturallyAppropriate bool      `json:"culturally_appropriate"`
	Comment               string    `json:"comment"`
	ResponseText          string    `json:"response_text"`
	UserQuery             string    `json:"user_query"`
}

// Review is the body of POST /api/expert-review/.
type Review struct {
	ID                  common.ID  `json:"id,omitempty"`
	Feedback            common.ID  `json:"feedback"`
	ReviewerName        string     `json:"reviewer_name"`
	MedicalAccuracy     int        `json:"medical_accuracy"`
	CulturalRelevance   int        `json:"cultural_relevance"`
	SuggestedCorrection string     `json:"suggested_correction"`
	AdditionalNotes     string     `json:"additional_notes"`
	CreatedAt           *time.Time `json:"created_at,omitempty"`
}
