package caseflow

import "strings"

// FlagUngrounded marks a draft containing at least one sentence without a
// citation marker. It is a policy flag, not an error; whether to block the
// send is the caller's call.
const FlagUngrounded = "UNGROUNDED_CLAIM"

// verifyGrounding checks that every sentence of the draft carries a [n]
// citation marker and returns the policy flags to record.
func verifyGrounding(d *Draft) []string {
	if d == nil || d.Markdown == "" {
		return nil
	}
	for _, s := range splitSentences(d.Markdown) {
		if !strings.Contains(s, "[") || !strings.Contains(s, "]") {
			return []string{FlagUngrounded}
		}
	}
	return nil
}

// splitSentences breaks text at sentence-ending punctuation followed by
// whitespace. Good enough for citation scanning; not a linguistic splitter.
func splitSentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			if i+1 == len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' {
				if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}
