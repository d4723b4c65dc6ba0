package orchestrator

import "strings"

// progressRule maps a set of log-line substrings to a coarse progress
// estimate. Rules are checked in order; the first match wins.
type progressRule struct {
	substrings []string
	pct        int
	stage      string
}

var progressRules = []progressRule{
	{[]string{"downloading"}, 10, "Downloading video"},
	{[]string{"transcribing"}, 30, "Transcribing audio"},
	{[]string{"analyz", "gemini"}, 50, "AI analysis"},
	{[]string{"processing clip", "extracting"}, 70, "Creating clips"},
	{[]string{"clip saved", "saved to"}, 90, "Finalizing"},
}

// ParseProgress maps a single log line to an advisory (percentage, stage)
// estimate using case-insensitive substring matching. It reports false when
// no rule matches. The estimate is not monotonic: a later line matching an
// earlier rule regresses the reported percentage.
func ParseProgress(line string) (int, string, bool) {
	lower := strings.ToLower(line)
	for _, rule := range progressRules {
		for _, sub := range rule.substrings {
			if strings.Contains(lower, sub) {
				return rule.pct, rule.stage, true
			}
		}
	}
	return 0, "", false
}
