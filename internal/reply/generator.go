// File: internal/reply/generator.go
package reply

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/engager-cli/api/schemas"
	"github.com/xkilldash9x/engager-cli/internal/config"
	"github.com/xkilldash9x/engager-cli/internal/llmclient"
)

const systemPrompt = "You are a precise social media reply generator that follows formatting rules exactly."

// maxContextRunes caps how much of the source post is fed to the model.
const maxContextRunes = 900

// refinePromptHeader asks the model to polish an already generated reply
// without breaking the formatting contract.
const refinePromptHeader = "Rewrite the following reply to be clear, coherent, and natural while preserving the required formatting rules: no dashes, colons, semicolons; keep the same number of lines; first person voice when applicable. Output only the rewritten text.\n\nReply:\n"

// Generator produces sanitized reply drafts for content items.
type Generator struct {
	client llmclient.Client
	cfg    config.ReplyConfig
	// Refine enables a second polishing pass over the generated text.
	Refine bool
	logger *zap.Logger
}

// NewGenerator wires a generator to its LLM client.
func NewGenerator(client llmclient.Client, cfg config.ReplyConfig, logger *zap.Logger) *Generator {
	return &Generator{
		client: client,
		cfg:    cfg,
		logger: logger.Named("reply"),
	}
}

// Generate builds a prompt for the item, calls the model, and returns the
// sanitized draft. The returned draft text is never empty.
func (g *Generator) Generate(ctx context.Context, item schemas.ContentItem) (schemas.ReplyDraft, error) {
	templateID := g.cfg.TemplateID
	if templateID == 0 {
		templateID = ChooseTemplate(item.Text)
	}
	tmpl, err := TemplateByID(templateID)
	if err != nil {
		return schemas.ReplyDraft{}, err
	}

	userPrompt := g.buildUserPrompt(tmpl, item.Text)
	raw, err := g.client.GenerateText(ctx, systemPrompt, userPrompt)
	if err != nil {
		return schemas.ReplyDraft{}, fmt.Errorf("generate reply for item %s: %w", item.ID, err)
	}

	text := Sanitize(tmpl, raw)

	if g.Refine {
		if refined := g.refinePass(ctx, tmpl, text); refined != "" {
			text = refined
		}
	}

	g.logger.Debug("Reply draft ready.",
		zap.String("item_id", item.ID),
		zap.String("template", tmpl.Slug),
		zap.Int("length", len([]rune(text))))

	return schemas.ReplyDraft{
		ItemID:     item.ID,
		TemplateID: tmpl.ID,
		Raw:        raw,
		Text:       text,
	}, nil
}

// refinePass is best-effort; any failure keeps the unrefined text.
func (g *Generator) refinePass(ctx context.Context, tmpl Template, text string) string {
	refined, err := g.client.GenerateText(ctx, systemPrompt, refinePromptHeader+text)
	if err != nil {
		g.logger.Debug("Refinement pass failed, keeping original draft.", zap.Error(err))
		return ""
	}
	refined = Sanitize(tmpl, refined)
	if refined == FallbackReply && text != FallbackReply {
		return ""
	}
	return refined
}

// buildUserPrompt assembles the context block and template instructions.
func (g *Generator) buildUserPrompt(tmpl Template, postText string) string {
	language := defaultStr(g.cfg.Language, "English")
	style := defaultStr(g.cfg.Style, "Informal")
	tone := defaultStr(g.cfg.Tone, "Neutral")

	var b strings.Builder
	b.WriteString("Conversation Context:\n\n")
	b.WriteString(capRunes(postText, maxContextRunes))
	b.WriteString("\n\nParameters:\n\n")
	fmt.Fprintf(&b, "Target Language: %s\n", language)
	fmt.Fprintf(&b, "Writing Style: %s\n", style)
	fmt.Fprintf(&b, "Tone Setting: %s\n\n", tone)
	b.WriteString(tmpl.Instructions)
	return b.String()
}

func defaultStr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func capRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
