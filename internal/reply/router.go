// File: internal/reply/router.go
package reply

import (
	"regexp"
	"strings"
)

// Keyword heuristics, checked in priority order. The first match wins.
var (
	achievementPattern = regexp.MustCompile(`launch|shipped|hit|mrr|milestone|sold|congrats|proud|we did it|won`)
	questionPattern    = regexp.MustCompile(`question|how|why|what|should|could\s|\?$`)
	absolutePattern    = regexp.MustCompile(`absolute|only|always|never|everyone|nobody|must|wrong`)
	humorPattern       = regexp.MustCompile(`joke|lol|lmao|haha|funny|😂|🤣|meme`)
	advicePattern      = regexp.MustCompile(`advice|thread|tips|framework|secret|here.s how`)
	emotionPattern     = regexp.MustCompile(`nostalgia|hope|frustration|hate|love|dream`)
)

// ChooseTemplate picks a reply template from the post text.
func ChooseTemplate(text string) int {
	t := strings.ToLower(text)
	switch {
	case achievementPattern.MatchString(t):
		return TemplateShout
	case questionPattern.MatchString(t):
		return TemplateInquisitor
	case absolutePattern.MatchString(t):
		return TemplateCounter
	case humorPattern.MatchString(t):
		return TemplateRiff
	case advicePattern.MatchString(t):
		return TemplateSignal
	case emotionPattern.MatchString(t):
		return TemplateViral
	default:
		return TemplateIndieVoice
	}
}
