package analytics

// DateLayout is the day format used by the dashboard query.
const DateLayout = "2006-01-02"

// Overall holds the aggregate numbers for the selected range.
type Overall struct {
	AvgRating     float64 `json:"avg_rating"`
	CulturalScore float64 `json:"cultural_score"`
	FeedbackCount int     `json:"feedback_count"`
}

// Point is one time-series sample.
type Point struct {
	Date      string  `json:"date"`
	Value     float64 `json:"value"`
	TextValue *string `json:"text_value"`
}

// DateRange echoes the range the server aggregated.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Dashboard is the response of GET /api/analytics/dashboard/.
type Dashboard struct {
	Overall    Overall            `json:"overall"`
	TimeSeries map[string][]Point `json:"time_series"`
	DateRange  DateRange          `json:"date_range"`
}
