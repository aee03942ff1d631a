package pipeline

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var byteUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatBytes renders a size with up to two decimals, e.g. "1.5 KB".
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	i := int(math.Floor(math.Log(float64(n)) / math.Log(1024)))
	if i >= len(byteUnits) {
		i = len(byteUnits) - 1
	}
	v := float64(n) / math.Pow(1024, float64(i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + byteUnits[i]
}

var metricNames = map[string]string{
	"avg_rating":         "Average Rating",
	"cultural_score":     "Cultural Appropriateness Score",
	"feedback_count":     "Feedback Count",
	"common_issue":       "Common Issues",
	"medical_accuracy":   "Medical Accuracy",
	"cultural_relevance": "Cultural Relevance",
}

// MetricDisplayName returns the label for a metric type. Unknown types are
// title-cased with underscores as spaces.
func MetricDisplayName(metricType string) string {
	if name, ok := metricNames[metricType]; ok {
		return name
	}
	if metricType == "" {
		return ""
	}
	// A Caser keeps state between calls and must not be shared.
	return cases.Title(language.English).String(strings.ReplaceAll(metricType, "_", " "))
}
