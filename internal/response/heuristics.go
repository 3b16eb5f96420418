package response

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	highConfidence = []string{"very confident", "highly confident", "certain", "definitely"}
	lowConfidence  = []string{"not confident", "uncertain", "unsure", "might be", "possibly", "low confidence"}
	midConfidence  = []string{"somewhat confident", "moderately confident", "likely", "probably"}

	highPattern  = phrasePattern(highConfidence)
	lowPattern   = phrasePattern(lowConfidence)
	midPattern   = phrasePattern(midConfidence)
	hedgePattern = regexp.MustCompile(`(?i)\b(seems?|appears?|looks? like|suggests?)\b`)

	sentenceSplit   = regexp.MustCompile(`[.!?]+`)
	bulletPattern   = regexp.MustCompile(`(?m)^[ \t]*[-*•][ \t]+(.+)$`)
	numberedPattern = regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]+(.+)$`)
)

// phrasePattern matches any phrase starting on a word boundary. Inflections
// such as "certainly" still match while "uncertain" does not count as
// "certain".
func phrasePattern(phrases []string) *regexp.Regexp {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)`)
}

// ParseConfidence classifies text by keyword tier: high, then low, then
// medium, then hedging words as medium. Anything else is unknown.
func ParseConfidence(text string) Confidence {
	lower := strings.ToLower(text)
	switch {
	case highPattern.MatchString(lower):
		return ConfidenceHigh
	case lowPattern.MatchString(lower):
		return ConfidenceLow
	case midPattern.MatchString(lower):
		return ConfidenceMedium
	case hedgePattern.MatchString(text):
		return ConfidenceMedium
	default:
		return ConfidenceUnknown
	}
}

func sentences(text string) []string {
	var out []string
	for _, s := range sentenceSplit.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// GenerateSummary returns text unchanged when it has at most two sentences,
// otherwise the first two sentences ending with a period.
func GenerateSummary(text string) string {
	parts := sentences(text)
	switch {
	case len(parts) == 0:
		return ""
	case len(parts) <= 2:
		return strings.TrimSpace(text)
	}
	summary := strings.Join(parts[:2], ". ")
	if !strings.HasSuffix(summary, ".") {
		summary += "."
	}
	return summary
}

// ExtractKeyFindings collects bullet items, then numbered items. With neither
// present it falls back to the first three sentences longer than 20
// characters. At most five findings are returned.
func ExtractKeyFindings(text string) []string {
	findings := []string{}
	for _, m := range bulletPattern.FindAllStringSubmatch(text, -1) {
		findings = append(findings, strings.TrimSpace(m[1]))
	}
	for _, m := range numberedPattern.FindAllStringSubmatch(text, -1) {
		findings = append(findings, strings.TrimSpace(m[1]))
	}
	if len(findings) == 0 {
		for _, s := range sentences(text) {
			if utf8.RuneCountInString(s) > 20 {
				findings = append(findings, s)
			}
			if len(findings) == 3 {
				break
			}
		}
	}
	if len(findings) > maxKeyFindings {
		findings = findings[:maxKeyFindings]
	}
	return findings
}
