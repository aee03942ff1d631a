package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zhouzirui/elera-assistant/console/internal/model/common"
	feedbackmodel "github.com/zhouzirui/elera-assistant/console/internal/model/feedback"
)

var (
	ErrRatingRequired = errors.New("rating is required")
	ErrRatingRange    = errors.New("rating must be between 1 and 5")
	ErrNoExchange     = errors.New("there is no assistant reply to rate")
)

// FeedbackAPI posts end-user ratings.
type FeedbackAPI interface {
	CreateFeedback(ctx context.Context, sub feedbackmodel.Submission) error
}

// FeedbackForm is the end-user rating shown after an assistant reply.
// Rating 0 means not chosen yet.
type FeedbackForm struct {
	Rating                int    `json:"rating"`
	CulturallyAppropriate bool   `json:"culturally_appropriate"`
	Comment               string `json:"comment"`
}

// NewFeedbackForm returns the initial form state.
func NewFeedbackForm() FeedbackForm {
	return FeedbackForm{CulturallyAppropriate: true}
}

// Validate enforces a chosen rating in 1-5.
func (f FeedbackForm) Validate() error {
	if f.Rating == 0 {
		return ErrRatingRequired
	}
	if f.Rating < 1 || f.Rating > 5 {
		return ErrRatingRange
	}
	return nil
}

// SubmitFeedback validates form and posts it for the given exchange.
func SubmitFeedback(ctx context.Context, api FeedbackAPI, sessionID common.ID, form FeedbackForm, query, response string) error {
	if err := form.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(response) == "" {
		return ErrNoExchange
	}

	sub := feedbackmodel.Submission{
		SessionID:             sessionID,
		Rating:                form.Rating,
		CulturallyAppropriate: form.CulturallyAppropriate,
		Comment:               strings.TrimSpace(form.Comment),
		ResponseText:          response,
		UserQuery:             query,
	}
	if err := api.CreateFeedback(ctx, sub); err != nil {
		return fmt.Errorf("submit feedback: %w", err)
	}
	return nil
}
