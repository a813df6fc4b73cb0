// File: internal/reply/templates.go
package reply

import "fmt"

// Template is one reply voice with its formatting contract.
type Template struct {
	ID   int
	Slug string
	// Instructions is the generation prompt appended to the context block.
	Instructions string
	// Line policy. AllowedLineCounts, when set, wins over Min/Max: a
	// reply with a disallowed line count is clamped to DefaultLines.
	MinLines          int
	MaxLines          int
	AllowedLineCounts []int
	DefaultLines      int
}

const (
	TemplateIndieVoice = 1
	TemplateSpark      = 2
	TemplateCounter    = 3
	TemplateRiff       = 4
	TemplateViral      = 5
	TemplateShout      = 6
	TemplateSignal     = 7
	TemplateInquisitor = 8
	TemplateReframe    = 9
)

var templates = map[int]Template{
	TemplateIndieVoice: {
		ID:   TemplateIndieVoice,
		Slug: "indie_voice",
		Instructions: "Generate a direct and opinionated reply to the given context. The final output must be only the generated reply text, with no other commentary. " +
			"FORBIDDEN: You must not use any dashes, colons, semicolons, or quotation marks around terms or phrases. " +
			"Keep your response well under 250 characters. " +
			"Write in first person I. Choose exactly 3 or 4 lines. Reveal a practical system or simple hack. Use hard line breaks. Output only the reply. Keep it coherent and readable for a general audience.",
		MinLines: 3, MaxLines: 4,
	},
	TemplateSpark: {
		ID:   TemplateSpark,
		Slug: "spark",
		Instructions: "Generate a provocative, debate-starting reply. Randomly choose 1, 2, or 4 lines. First person I. " +
			"No dashes, colons, semicolons, or quotation marks around any terms. Keep under 250 characters. Use hard line breaks. Output only the reply.",
		AllowedLineCounts: []int{1, 2, 4}, DefaultLines: 2,
	},
	TemplateCounter: {
		ID:   TemplateCounter,
		Slug: "counter",
		Instructions: "Generate a confident refutation of the core assumption. Randomly choose 1, 2, or 4 lines. First person I. " +
			"No dashes, colons, semicolons, or quotation marks around any terms. Keep under 250 characters. Use hard line breaks. Output only the reply.",
		AllowedLineCounts: []int{1, 2, 4}, DefaultLines: 2,
	},
	TemplateRiff: {
		ID:   TemplateRiff,
		Slug: "riff",
		Instructions: "Act as a witty, context-aware comedian. Create a short, shareable reply using line breaks for timing. " +
			"No dashes, colons, semicolons, or quotation marks around any terms. Keep under 250 characters. Output only the reply.",
	},
	TemplateViral: {
		ID:   TemplateViral,
		Slug: "viral",
		Instructions: "Extract handle and first name if present; craft a viral-optimized reply with hook, body, and engaging question. Start with the handle on its own line. " +
			"No dashes, colons, semicolons, or quotation marks around any terms. Keep under 250 characters. Use hard line breaks. Output only the reply. Keep it coherent and avoid cringe.",
	},
	TemplateShout: {
		ID:   TemplateShout,
		Slug: "shout",
		Instructions: "Write a warm, specific congratulations using Acknowledge, Validate, Amplify. " +
			"No dashes, colons, semicolons, or quotation marks around any terms. Keep under 250 characters. Use hard line breaks. Output only the reply. Be specific and natural.",
	},
	TemplateSignal: {
		ID:   TemplateSignal,
		Slug: "signal",
		Instructions: "Identify the single most powerful idea. Output exactly two lines, a lead-in then a signal phrase. " +
			"No dashes, colons, semicolons, or quotation marks around any terms. Keep under 250 characters. Keep the signal clear and quotable.",
		MinLines: 2, MaxLines: 2,
	},
	TemplateInquisitor: {
		ID:   TemplateInquisitor,
		Slug: "inquisitor",
		Instructions: "Generate one open-ended question to deepen the conversation. 1 to 3 lines. " +
			"No dashes, colons, semicolons, or quotation marks around any terms. Keep under 250 characters. Output only the question. Make it thoughtful and useful.",
		MinLines: 1, MaxLines: 3,
	},
	TemplateReframe: {
		ID:   TemplateReframe,
		Slug: "reframe",
		Instructions: "Explain the core idea with a creative analogy from a different domain. 2 to 4 lines. " +
			"No dashes, colons, semicolons, or quotation marks around any terms. Keep under 250 characters. Output only the reply. Ensure the analogy is simple and intuitive.",
		MinLines: 2, MaxLines: 4,
	},
}

// TemplateByID returns the template for id, or an error for unknown ids.
func TemplateByID(id int) (Template, error) {
	t, ok := templates[id]
	if !ok {
		return Template{}, fmt.Errorf("unknown reply template %d", id)
	}
	return t, nil
}
