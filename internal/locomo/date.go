package locomo

import (
	"regexp"
	"strings"
	"time"
)

// dateLabelRe matches LoCoMo labels such as "1:56 pm on 8 May, 2023".
var dateLabelRe = regexp.MustCompile(`(?i)^\d{1,2}:\d{2}\s*(?:am|pm)\s+on\s+(\d{1,2})\s+(\w+),?\s+(\d{4})`)

// NormalizeDate converts a LoCoMo date label to YYYY-MM-DD.
// Labels that do not match, or that name an impossible date, are returned unchanged.
func NormalizeDate(label string) string {
	m := dateLabelRe.FindStringSubmatch(strings.TrimSpace(label))
	if m == nil {
		return label
	}

	t, err := time.Parse("2 January 2006", m[1]+" "+m[2]+" "+m[3])
	if err != nil {
		return label
	}
	return t.Format("2006-01-02")
}
