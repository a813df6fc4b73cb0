// File: internal/reply/sanitize.go
package reply

import (
	"regexp"
	"strings"
)

// MaxReplyLength is the platform's hard character limit.
const MaxReplyLength = 280

// FallbackReply is substituted when sanitization leaves nothing usable.
const FallbackReply = "Great point! Thanks for sharing."

// TruncationMarker terminates replies cut at the hard limit.
const TruncationMarker = "..."

var (
	forbiddenPunctuation = regexp.MustCompile(`[-—:;]+`)
	mentionPattern       = regexp.MustCompile(`@\w+`)
	hashtagPattern       = regexp.MustCompile(`#\w+`)
	// Covers emoji blocks, dingbats, variation selectors and the
	// supplemental symbol planes.
	emojiPattern      = regexp.MustCompile(`[\x{1F000}-\x{1FAFF}\x{2600}-\x{27BF}\x{2B00}-\x{2BFF}\x{FE00}-\x{FE0F}\x{1F1E6}-\x{1F1FF}]`)
	intraLineSpaceRun = regexp.MustCompile(`[ \t]+`)
)

// Sanitize enforces the output contract on raw generated text: forbidden
// punctuation, mentions, hashtags and emoji are removed, whitespace is
// collapsed within lines, the template's line policy is applied, and the
// result is truncated to the hard limit with a marker. An empty result
// becomes FallbackReply. Sanitize is idempotent.
func Sanitize(t Template, text string) string {
	out := forbiddenPunctuation.ReplaceAllString(text, "")
	out = mentionPattern.ReplaceAllString(out, "")
	out = hashtagPattern.ReplaceAllString(out, "")
	out = emojiPattern.ReplaceAllString(out, "")

	lines := splitLines(out)
	lines = applyLinePolicy(t, lines)
	out = strings.Join(lines, "\n")
	out = strings.TrimSpace(out)
	out = truncate(out)

	if out == "" {
		return FallbackReply
	}
	return out
}

// splitLines breaks text into trimmed, whitespace-collapsed, non-empty lines.
func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(intraLineSpaceRun.ReplaceAllString(l, " "))
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// applyLinePolicy clamps the line count to the template's contract.
// Clamping only ever drops trailing lines; nothing is invented to meet a
// nominal minimum.
func applyLinePolicy(t Template, lines []string) []string {
	if len(lines) == 0 {
		return lines
	}

	if len(t.AllowedLineCounts) > 0 {
		n := len(lines)
		allowed := false
		for _, a := range t.AllowedLineCounts {
			if n == a {
				allowed = true
				break
			}
		}
		if !allowed {
			n = t.DefaultLines
		}
		if n > len(lines) {
			n = len(lines)
		}
		return lines[:n]
	}

	if t.MaxLines > 0 && len(lines) > t.MaxLines {
		return lines[:t.MaxLines]
	}
	return lines
}

// truncate cuts text to exactly MaxReplyLength runes, ending with the
// truncation marker, when it exceeds the limit.
func truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxReplyLength {
		return text
	}
	keep := MaxReplyLength - len(TruncationMarker)
	return string(runes[:keep]) + TruncationMarker
}
