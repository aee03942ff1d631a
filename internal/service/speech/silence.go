package speech

import "time"

// SilenceDetector decides when a recording has been quiet long enough.
// Samples below the threshold start a quiet period; any sample at or above
// it cancels the period.
type SilenceDetector struct {
	threshold float64
	quiet     time.Duration

	quietSince time.Time
}

// NewSilenceDetector creates a detector for levels on a 0-255 scale.
func NewSilenceDetector(threshold float64, quiet time.Duration) *SilenceDetector {
	return &SilenceDetector{threshold: threshold, quiet: quiet}
}

// Observe records a level sampled at now and reports whether the quiet
// duration has fully elapsed.
func (d *SilenceDetector) Observe(level float64, now time.Time) bool {
	if level >= d.threshold {
		d.quietSince = time.Time{}
		return false
	}
	if d.quietSince.IsZero() {
		d.quietSince = now
		return false
	}
	return now.Sub(d.quietSince) >= d.quiet
}
