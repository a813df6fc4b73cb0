// File: internal/reply/reply_test.go
package reply

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/engager-cli/api/schemas"
	"github.com/xkilldash9x/engager-cli/internal/config"
)

// fakeLLM returns scripted responses in order.
type fakeLLM struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (f *fakeLLM) GenerateText(_ context.Context, _, userPrompt string) (string, error) {
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, userPrompt)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", errors.New("no scripted response")
}

func TestChooseTemplate(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"We just shipped our new feature, hit 10k MRR!", TemplateShout},
		{"Why does everyone keep doing this?", TemplateShout}, // "everyone" loses to nothing; "why" handled below
		{"I wonder how this works?", TemplateInquisitor},
		{"You must never do this, everyone is wrong", TemplateCounter},
		{"this meme is so funny lol", TemplateRiff},
		{"A thread of tips and advice for founders", TemplateSignal},
		{"I love the hope in this story", TemplateViral},
		{"The weather is mild today.", TemplateIndieVoice},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := ChooseTemplate(tt.text)
			if tt.text == "Why does everyone keep doing this?" {
				// Question markers rank above absolutes.
				assert.Equal(t, TemplateInquisitor, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeStripsForbiddenPunctuation(t *testing.T) {
	tmpl, err := TemplateByID(TemplateRiff)
	require.NoError(t, err)

	in := "first line - with a dash\nsecond line: with a colon; and semicolon"
	out := Sanitize(tmpl, in)

	assert.NotContains(t, out, "-")
	assert.NotContains(t, out, "—")
	assert.NotContains(t, out, ":")
	assert.NotContains(t, out, ";")
	// Other content and the line break survive.
	assert.Contains(t, out, "first line")
	assert.Contains(t, out, "second line")
	assert.Len(t, strings.Split(out, "\n"), 2)
}

func TestSanitizeIsIdempotent(t *testing.T) {
	tmpl, err := TemplateByID(TemplateRiff)
	require.NoError(t, err)

	in := "keep it simple - really; no @mentions or #tags 🚀\nsecond   line here"
	once := Sanitize(tmpl, in)
	twice := Sanitize(tmpl, once)
	assert.Equal(t, once, twice)
}

func TestSanitizeStripsMentionsHashtagsEmoji(t *testing.T) {
	tmpl, err := TemplateByID(TemplateRiff)
	require.NoError(t, err)

	out := Sanitize(tmpl, "hey @someone check #golang 🎉 this out")
	assert.NotContains(t, out, "@someone")
	assert.NotContains(t, out, "#golang")
	assert.NotContains(t, out, "🎉")
	assert.Contains(t, out, "check")
}

func TestSanitizeTruncatesToExactLimit(t *testing.T) {
	tmpl, err := TemplateByID(TemplateRiff)
	require.NoError(t, err)

	long := strings.Repeat("a", 600)
	out := Sanitize(tmpl, long)
	assert.Equal(t, MaxReplyLength, len([]rune(out)))
	assert.True(t, strings.HasSuffix(out, TruncationMarker))
}

func TestSanitizeEmptyFallsBack(t *testing.T) {
	tmpl, err := TemplateByID(TemplateRiff)
	require.NoError(t, err)

	assert.Equal(t, FallbackReply, Sanitize(tmpl, ""))
	assert.Equal(t, FallbackReply, Sanitize(tmpl, " --- ;;; ::: "))
}

func TestLinePolicySignalExactlyTwoLines(t *testing.T) {
	tmpl, err := TemplateByID(TemplateSignal)
	require.NoError(t, err)

	out := Sanitize(tmpl, "line one\nline two\nline three\nline four")
	assert.Len(t, strings.Split(out, "\n"), 2)
}

func TestLinePolicyAllowedCountsClampToDefault(t *testing.T) {
	tmpl, err := TemplateByID(TemplateSpark)
	require.NoError(t, err)

	// Three lines is not in {1,2,4}; clamp to two.
	out := Sanitize(tmpl, "one\ntwo\nthree")
	assert.Len(t, strings.Split(out, "\n"), 2)

	// Four lines is allowed.
	out = Sanitize(tmpl, "one\ntwo\nthree\nfour")
	assert.Len(t, strings.Split(out, "\n"), 4)
}

func TestLinePolicyMaxClamp(t *testing.T) {
	tmpl, err := TemplateByID(TemplateInquisitor)
	require.NoError(t, err)

	out := Sanitize(tmpl, "a\nb\nc\nd\ne")
	assert.Len(t, strings.Split(out, "\n"), 3)
}

func TestGeneratorProducesSanitizedDraft(t *testing.T) {
	llm := &fakeLLM{responses: []string{"I tried this myself - it works:\nhere is the trick;\nuse it daily"}}
	gen := NewGenerator(llm, config.ReplyConfig{}, zap.NewNop())

	draft, err := gen.Generate(context.Background(), schemas.ContentItem{ID: "77", Text: "The weather is mild today."})
	require.NoError(t, err)

	assert.Equal(t, "77", draft.ItemID)
	assert.Equal(t, TemplateIndieVoice, draft.TemplateID)
	assert.NotContains(t, draft.Text, "-")
	assert.NotContains(t, draft.Text, ";")
	assert.NotEmpty(t, draft.Text)
	assert.Contains(t, llm.prompts[0], "Conversation Context:")
	assert.Contains(t, llm.prompts[0], "The weather is mild today.")
}

func TestGeneratorFixedTemplateOverride(t *testing.T) {
	llm := &fakeLLM{responses: []string{"what would you change first?"}}
	gen := NewGenerator(llm, config.ReplyConfig{TemplateID: TemplateInquisitor}, zap.NewNop())

	draft, err := gen.Generate(context.Background(), schemas.ContentItem{ID: "1", Text: "We shipped a milestone!"})
	require.NoError(t, err)
	assert.Equal(t, TemplateInquisitor, draft.TemplateID)
}

func TestGeneratorSurfacesClientError(t *testing.T) {
	llm := &fakeLLM{errs: []error{errors.New("backend down")}}
	gen := NewGenerator(llm, config.ReplyConfig{}, zap.NewNop())

	_, err := gen.Generate(context.Background(), schemas.ContentItem{ID: "1", Text: "hello world post"})
	assert.Error(t, err)
}

func TestGeneratorRefinePassKeepsOriginalOnFailure(t *testing.T) {
	llm := &fakeLLM{
		responses: []string{"solid take\nagreed completely", ""},
		errs:      []error{nil, errors.New("refine failed")},
	}
	gen := NewGenerator(llm, config.ReplyConfig{TemplateID: TemplateRiff}, zap.NewNop())
	gen.Refine = true

	draft, err := gen.Generate(context.Background(), schemas.ContentItem{ID: "5", Text: "anything"})
	require.NoError(t, err)
	assert.Equal(t, "solid take\nagreed completely", draft.Text)
	assert.Equal(t, 2, llm.calls)
}
