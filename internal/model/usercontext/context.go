package usercontext

import (
	"time"

	"github.com/zhouzirui/elera-assistant/console/internal/model/common"
)

// TreatmentType classifies a treatment the patient has tried.
type TreatmentType string

const (
	TreatmentTraditional TreatmentType = "traditional"
	TreatmentModern      TreatmentType = "modern"
	TreatmentOther       TreatmentType = "other"
)

// Valid reports whether t is one of the known treatment types.
func (t TreatmentType) Valid() bool {
	switch t {
	case TreatmentTraditional, TreatmentModern, TreatmentOther:
		return true
	}
	return false
}

// Symptom records a symptom's severity on a 1-5 scale.
type Symptom struct {
	Name     string `json:"name"`
	Severity int    `json:"severity"`
}

// Treatment is a treatment tried; Effective is nil when unknown.
type Treatment struct {
	Name      string        `json:"name"`
	Type      TreatmentType `json:"type"`
	Effective *bool         `json:"effective"`
}

// HistoryEntry is one medical-history condition.
type HistoryEntry struct {
	Condition string `json:"condition"`
	Duration  string `json:"duration"`
}

// Preference is a cultural preference with importance 1-5.
type Preference struct {
	Preference string `json:"preference"`
	Importance int    `json:"importance"`
}

// Context is the structured medical context of one chat session.
type Context struct {
	ID                  common.ID             `json:"id,omitempty"`
	Session             common.ID             `json:"session,omitempty"`
	Symptoms            map[string]Symptom    `json:"symptoms"`
	SymptomDurations    map[string]string     `json:"symptom_durations"`
	TreatmentsTried     []Treatment           `json:"treatments_tried"`
	MedicalHistory      []HistoryEntry        `json:"medical_history"`
	CulturalPreferences map[string]Preference `json:"cultural_preferences"`
	Language            string                `json:"language"`
	CreatedAt           *time.Time            `json:"created_at,omitempty"`
	UpdatedAt           *time.Time            `json:"updated_at,omitempty"`
}

// Clone returns a deep copy so a next document can be built without
// touching the current one.
func (c Context) Clone() Context {
	out := c
	out.Symptoms = make(map[string]Symptom, len(c.Symptoms))
	for k, v := range c.Symptoms {
		out.Symptoms[k] = v
	}
	out.SymptomDurations = make(map[string]string, len(c.SymptomDurations))
	for k, v := range c.SymptomDurations {
		out.SymptomDurations[k] = v
	}
	out.TreatmentsTried = make([]Treatment, 0, len(c.TreatmentsTried))
	for _, t := range c.TreatmentsTried {
		if t.Effective != nil {
			eff := *t.Effective
			t.Effective = &eff
		}
		out.TreatmentsTried = append(out.TreatmentsTried, t)
	}
	out.MedicalHistory = append(make([]HistoryEntry, 0, len(c.MedicalHistory)), c.MedicalHistory...)
	out.CulturalPreferences = make(map[string]Preference, len(c.CulturalPreferences))
	for k, v := range c.CulturalPreferences {
		out.CulturalPreferences[k] = v
	}
	return out
}

// Update is the body of POST /api/user-context/: the full next document
// addressed by session.
type Update struct {
	SessionID           common.ID             `json:"session_id"`
	Symptoms            map[string]Symptom    `json:"symptoms"`
	SymptomDurations    map[string]string     `json:"symptom_durations"`
	TreatmentsTried     []Treatment           `json:"treatments_tried"`
	MedicalHistory      []HistoryEntry        `json:"medical_history"`
	CulturalPreferences map[string]Preference `json:"cultural_preferences"`
	Language            string                `json:"language"`
}

// UpdateFor builds the replace request for c.
func UpdateFor(sessionID common.ID, c Context) Update {
	return Update{
		SessionID:           sessionID,
		Symptoms:            c.Symptoms,
		SymptomDurations:    c.SymptomDurations,
		TreatmentsTried:     c.TreatmentsTried,
		MedicalHistory:      c.MedicalHistory,
		CulturalPreferences: c.CulturalPreferences,
		Language:            c.Language,
	}
}
