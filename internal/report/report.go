// Package report renders conversations for the terminal.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/speaklarity/platform/internal/orchestrator/scoring"
	"github.com/speaklarity/platform/internal/store"
)

// Options control how scores are presented.
type Options struct {
	Thresholds    scoring.Thresholds
	FallbackScore float64
}

func DefaultOptions() Options {
	return Options{Thresholds: scoring.DefaultThresholds(), FallbackScore: -1}
}

const (
	filenameWidth = 28
	summaryWidth  = 40
)

// List writes one aligned row per conversation.
func List(w io.Writer, cs []*store.Conversation) error {
	if len(cs) == 0 {
		_, err := fmt.Fprintln(w, dimStyle.Render("no conversations"))
		return err
	}

	cols := []string{pad("ID", 16), pad("FILE", filenameWidth), pad("STAGE", 16), pad("DONE", 5), "SUMMARY"}
	if _, err := fmt.Fprintln(w, headerStyle.Render(strings.Join(cols, "  "))); err != nil {
		return err
	}
	for _, c := range cs {
		done, total := c.Action.Progress()
		row := []string{
			pad(c.ID, 16),
			pad(fit(c.Filename, filenameWidth), filenameWidth),
			pad(string(c.Action), 16),
			pad(fmt.Sprintf("%d/%d", done, total), 5),
			fit(c.Summary, summaryWidth),
		}
		if _, err := fmt.Fprintln(w, strings.Join(row, "  ")); err != nil {
			return err
		}
	}
	return nil
}

// Conversation writes the sentence breakdown of c.
func Conversation(w io.Writer, c *store.Conversation, opts Options) error {
	var b strings.Builder

	done, total := c.Action.Progress()
	b.WriteString(titleStyle.Render(c.Filename))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %s  %s (%d/%d)", c.ID, c.Action, done, total)))
	b.WriteString("\n")
	if c.Action == store.StageError {
		b.WriteString(errorStyle.Render(fmt.Sprintf("failed during %s: %s", c.FailedStage, c.Error)))
		b.WriteString("\n")
	}

	for _, s := range c.Sentences {
		b.WriteString("\n")
		b.WriteString(sentence(s, opts))
	}

	if len(c.Sentences) > 0 && c.Summary != "" {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("summary: " + c.Summary))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func sentence(s store.Sentence, opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", headerStyle.Render(fmt.Sprintf("[%d]", s.ID)), s.Text)
	if s.Span != nil {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %.2fs-%.2fs", s.Span.Start, s.Span.End)))
	}
	b.WriteString("\n")

	if len(s.WordScores) > 0 {
		words := make([]string, len(s.WordScores))
		for i, ws := range s.WordScores {
			words[i] = bandStyle(scoring.Classify(ws.Score, opts.Thresholds)).
				Render(fmt.Sprintf("%s(%.2f)", ws.Word, ws.Score))
		}
		b.WriteString("    " + strings.Join(words, " ") + "\n")
	}

	switch {
	case s.SentenceScore == nil:
		b.WriteString(dimStyle.Render("    not scored") + "\n")
	case *s.SentenceScore == opts.FallbackScore:
		b.WriteString(errorStyle.Render("    score unavailable"))
		if s.ScoringError != "" {
			b.WriteString(dimStyle.Render(": " + s.ScoringError))
		}
		b.WriteString("\n")
	default:
		band := scoring.Classify(*s.SentenceScore, opts.Thresholds)
		b.WriteString("    score " + bandStyle(band).Render(fmt.Sprintf("%.2f %s", *s.SentenceScore, label(band))) + "\n")
	}

	if g := s.Grammar; g != nil {
		if g.IsGrammaticallyCorrect {
			b.WriteString("    " + goodStyle.Render("grammar ok") + "\n")
		} else if g.CorrectedText != "" {
			b.WriteString("    " + fairStyle.Render("suggested: "+g.CorrectedText) + "\n")
		}
		if g.OverallFeedback != "" {
			b.WriteString(dimStyle.Render("    "+g.OverallFeedback) + "\n")
		}
	}
	return b.String()
}

func bandStyle(b scoring.Band) lipgloss.Style {
	switch b {
	case scoring.BandGood:
		return goodStyle
	case scoring.BandNeedsImprovement:
		return fairStyle
	default:
		return poorStyle
	}
}

func label(b scoring.Band) string {
	return strings.ReplaceAll(string(b), "_", " ")
}

// pad right-pads s to width terminal cells.
func pad(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

// fit truncates s to width terminal cells.
func fit(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}
