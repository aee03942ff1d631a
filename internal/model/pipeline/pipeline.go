package pipeline

import "github.com/zhouzirui/elera-assistant/console/internal/model/common"

// Operation names a batch job the backend can run.
type Operation string

const (
	OpUpdateMetrics    Operation = "update_metrics"
	OpGenerateTraining Operation = "generate_training"
)

// Dataset is an exported training-data file.
type Dataset struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Created  string `json:"created"`
	Path     string `json:"path"`
}

// Metric is a computed analytics metric.
type Metric struct {
	ID        common.ID `json:"id"`
	Type      string    `json:"type"`
	Date      string    `json:"date"`
	Value     float64   `json:"value"`
	TextValue *string   `json:"text_value"`
}

// Stats is the response of GET /api/data-pipeline/.
type Stats struct {
	Datasets      []Dataset `json:"datasets"`
	LatestMetrics []Metric  `json:"latest_metrics"`
}

// RunRequest is the body of POST /api/data-pipeline/.
type RunRequest struct {
	Operation Operation `json:"operation"`
	FromDate  string    `json:"from_date,omitempty"`
	ToDate    string    `json:"to_date,omitempty"`
	MinRating int       `json:"min_rating,omitempty"`
}

// Result carries the union of both operations' result fields.
type Result struct {
	MetricsCreated   int            `json:"metrics_created,omitempty"`
	MetricsUpdated   int            `json:"metrics_updated,omitempty"`
	DateRange        map[string]any `json:"date_range,omitempty"`
	TotalSamples     int            `json:"total_samples,omitempty"`
	WithExpertReview int            `json:"with_expert_reviews,omitempty"`
	WithUserContext  int            `json:"with_user_context,omitempty"`
	ByRating         map[string]int `json:"by_rating,omitempty"`
	ExportPath       string         `json:"export_path,omitempty"`
}
