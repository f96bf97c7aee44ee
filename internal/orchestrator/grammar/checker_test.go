package grammar

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/speaklarity/platform/internal/store"
)

type fakeLLM struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeLLM) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func TestAnalyzeParsesFencedJSON(t *testing.T) {
	llm := &fakeLLM{reply: "Sure!\n```json\n{\"is_grammatically_correct\": false, \"corrected_text\": \"How are you?\", \"overall_feedback\": \"Missing verb.\"}\n```\n"}

	got := NewChecker(llm).Analyze(context.Background(), "How you?")

	assert.Equal(t, store.GrammarAnalysis{
		IsGrammaticallyCorrect: false,
		CorrectedText:          "How are you?",
		OverallFeedback:        "Missing verb.",
	}, got)
	if assert.Len(t, llm.prompts, 1) {
		assert.Contains(t, llm.prompts[0], `Text: "How you?"`)
	}
}

func TestAnalyzeBareJSON(t *testing.T) {
	llm := &fakeLLM{reply: `{"is_grammatically_correct": true, "corrected_text": "Hello world.", "overall_feedback": "Fine."}`}

	got := NewChecker(llm).Analyze(context.Background(), "Hello world.")
	assert.True(t, got.IsGrammaticallyCorrect)
	assert.Equal(t, "Hello world.", got.CorrectedText)
}

func TestAnalyzeEmptyText(t *testing.T) {
	llm := &fakeLLM{}
	got := NewChecker(llm).Analyze(context.Background(), "   ")

	assert.Equal(t, store.GrammarAnalysis{OverallFeedback: "No text content found"}, got)
	assert.Empty(t, llm.prompts, "collaborator must not be called")
}

func TestAnalyzeCollaboratorError(t *testing.T) {
	llm := &fakeLLM{err: errors.New("quota exceeded")}
	got := NewChecker(llm).Analyze(context.Background(), "Hi.")

	assert.False(t, got.IsGrammaticallyCorrect)
	assert.Empty(t, got.CorrectedText)
	assert.Equal(t, "Error analyzing grammar: quota exceeded", got.OverallFeedback)
}

func TestAnalyzeUnparseable(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"prose", "I think it's fine"},
		{"missing field", `{"is_grammatically_correct": true, "corrected_text": "Hi."}`},
		{"wrong type", `{"is_grammatically_correct": "yes", "corrected_text": "Hi.", "overall_feedback": ""}`},
		{"array", `["nope"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewChecker(&fakeLLM{reply: tt.reply}).Analyze(context.Background(), "Hi.")
			assert.False(t, got.IsGrammaticallyCorrect)
			assert.Empty(t, got.CorrectedText)
			assert.True(t, strings.HasPrefix(got.OverallFeedback, "Unable to parse AI response. Raw response: "), got.OverallFeedback)
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"Here you go: {\"a\":1} hope it helps", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
		{"no json at all", "no json at all"},
	}
	for _, tt := range tests {
		if got := ExtractJSON(tt.in); got != tt.want {
			t.Errorf("ExtractJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
