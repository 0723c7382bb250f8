package handlers

import "finitefield.org/saro-web/internal/config"

// Analytics holds client instrumentation configuration surfaced to templates.
type Analytics struct {
	GA4MeasurementID string // e.g. G-XXXXXXXXXX
	Debug            bool
}

// AnalyticsFromConfig copies the measurement settings out of the loaded config.
func AnalyticsFromConfig(cfg config.AnalyticsConfig) Analytics {
	return Analytics{
		GA4MeasurementID: cfg.GA4MeasurementID,
		Debug:            cfg.Debug,
	}
}

// Enabled reports whether any tag should be rendered.
func (a Analytics) Enabled() bool { return a.GA4MeasurementID != "" }
