package renderqueue

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PhaseLabel turns a backend phase token like "encoding_video" into a label
// suitable for progress displays.
func PhaseLabel(phase string) string {
	phase = strings.TrimSpace(phase)
	if phase == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ReplaceAll(phase, "_", " "))
}
