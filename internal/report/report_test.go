package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speaklarity/platform/internal/store"
)

func ptr(f float64) *float64 { return &f }

func TestListAlignsWideFilenames(t *testing.T) {
	var buf bytes.Buffer
	err := List(&buf, []*store.Conversation{
		{ID: "aaaaaaaaaaaaaaaa", Filename: "talk.wav", Action: store.StageScoring},
		{ID: "bbbbbbbbbbbbbbbb", Filename: "会議の録音.wav", Action: store.StageFinished, Summary: "Hello world."},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	stage := func(line string) int {
		i := strings.Index(line, "scoring")
		if i < 0 {
			i = strings.Index(line, "finished")
		}
		return runewidth.StringWidth(line[:i])
	}
	assert.Equal(t, stage(lines[1]), stage(lines[2]))
	assert.Contains(t, lines[1], "3/5")
	assert.Contains(t, lines[2], "5/5")
}

func TestListEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, List(&buf, nil))
	assert.Contains(t, buf.String(), "no conversations")
}

func TestConversationBands(t *testing.T) {
	c := &store.Conversation{
		ID:       "c1",
		Filename: "talk.wav",
		Action:   store.StageFinished,
		Summary:  "Hello world. How are you?",
		Sentences: []store.Sentence{
			{
				ID:            1,
				Text:          "Hello world.",
				Span:          &store.Span{Start: 0, End: 4.5},
				WordScores:    []store.WordScore{{Word: "Hello", Score: 0.7}, {Word: "world.", Score: 0.35}},
				SentenceScore: ptr(0.55),
				Grammar:       &store.GrammarAnalysis{IsGrammaticallyCorrect: true, CorrectedText: "Hello world."},
			},
			{
				ID:            2,
				Text:          "How you?",
				SentenceScore: ptr(-1),
				ScoringError:  "embedding backend down",
				Grammar:       &store.GrammarAnalysis{CorrectedText: "How are you?", OverallFeedback: "Missing verb."},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Conversation(&buf, c, DefaultOptions()))
	out := buf.String()

	assert.Contains(t, out, "Hello(0.70)")
	assert.Contains(t, out, "world.(0.35)")
	assert.Contains(t, out, "score 0.55 good")
	assert.Contains(t, out, "score unavailable: embedding backend down")
	assert.Contains(t, out, "grammar ok")
	assert.Contains(t, out, "suggested: How are you?")
	assert.Contains(t, out, "summary: Hello world. How are you?")
}

func TestConversationError(t *testing.T) {
	c := &store.Conversation{
		ID:          "c1",
		Filename:    "talk.wav",
		Action:      store.StageError,
		FailedStage: store.StageSplitting,
		Error:       "asr offline",
	}
	var buf bytes.Buffer
	require.NoError(t, Conversation(&buf, c, DefaultOptions()))
	assert.Contains(t, buf.String(), "failed during splitting: asr offline")
}

func TestPadAndFit(t *testing.T) {
	tests := []struct {
		in    string
		width int
	}{
		{"abc", 6},
		{"録音", 6},
		{"abcdefgh", 4},
	}
	for _, tt := range tests {
		got := pad(fit(tt.in, tt.width), tt.width)
		if w := runewidth.StringWidth(got); w != tt.width {
			t.Errorf("pad(fit(%q, %d)) width = %d, want %d", tt.in, tt.width, w, tt.width)
		}
	}
}
