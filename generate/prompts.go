package generate

import (
	"strconv"
	"strings"
)

// SoilSample is a validated soil test.
type SoilSample struct {
	PH            float64
	Nitrogen      float64
	Phosphorus    float64
	Potassium     float64
	OrganicMatter *float64
	Moisture      *float64
}

// SoilPrompt asks for a five-part soil report. Optional readings that are
// absent or zero are left out. assessment, when not empty, adds the soil
// classifier's verdict.
func SoilPrompt(s SoilSample, assessment string) string {
	var b strings.Builder
	b.WriteString("Analyze the following soil data for farming in Vijayawada, Andhra Pradesh, India:\n")
	b.WriteString("- pH: " + formatNumber(s.PH) + "\n")
	b.WriteString("- Nitrogen: " + formatNumber(s.Nitrogen) + " mg/kg\n")
	b.WriteString("- Phosphorus: " + formatNumber(s.Phosphorus) + " mg/kg\n")
	b.WriteString("- Potassium: " + formatNumber(s.Potassium) + " mg/kg\n")
	if s.OrganicMatter != nil && *s.OrganicMatter != 0 {
		b.WriteString("- Organic Matter: " + formatNumber(*s.OrganicMatter) + "%\n")
	}
	if s.Moisture != nil && *s.Moisture != 0 {
		b.WriteString("- Moisture: " + formatNumber(*s.Moisture) + "%\n")
	}
	if assessment != "" {
		b.WriteString("- Model assessment: " + assessment + "\n")
	}
	b.WriteString("\nProvide a detailed analysis including:\n" +
		"1. Overall soil health assessment\n" +
		"2. Nutrient balance evaluation\n" +
		"3. Suitable crops for this soil composition\n" +
		"4. Recommended amendments or treatments\n" +
		"5. Best practices for soil management")
	return b.String()
}

// InterpretationPrompt asks for a short explanation of classifier output.
func InterpretationPrompt(detections string) string {
	return "The image analysis detected the following: " + detections + ". " +
		"If any of these are plant diseases or pests, provide a brief explanation " +
		"of what they are and how they affect plants. If not plant-related, indicate " +
		"this is not a plant disease. Keep it concise (max 150 words)."
}

// formatNumber prints v in its shortest form with at least one fractional
// digit: 6.5, 7.0, 120.0.
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
