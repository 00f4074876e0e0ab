package widgets

import "github.com/goliatone/go-insights/pkg/client"

// Tone is the visual category of an insight message.
type Tone struct {
	Label string
	Class string
}

// InsightTone maps an insight type to its label and CSS class. Unknown
// types get the generic tone.
func InsightTone(t client.InsightType) Tone {
	switch t {
	case client.InsightTrend:
		return Tone{Label: "Trend", Class: "insight-trend"}
	case client.InsightAnomaly:
		return Tone{Label: "Anomaly", Class: "insight-anomaly"}
	case client.InsightDataQuality:
		return Tone{Label: "Data quality", Class: "insight-quality"}
	default:
		return Tone{Label: "Insight", Class: "insight-generic"}
	}
}
