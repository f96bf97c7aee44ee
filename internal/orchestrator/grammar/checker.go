// Package grammar asks a language model to judge sentence grammar and turns
// whatever comes back into a well-formed analysis.
package grammar

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/speaklarity/platform/internal/store"
	"github.com/speaklarity/platform/internal/trace"
)

// Completer returns the model's reply to a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

var schema = mustCompileSchema(responseSchema, "grammar_analysis.schema.json")

func mustCompileSchema(raw, name string) *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		panic(fmt.Sprintf("failed to parse %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}
	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// Checker analyzes sentence grammar with a language model and always
// returns a well-formed result.
type Checker struct {
	llm Completer
}

// NewChecker returns a Checker that prompts llm.
func NewChecker(llm Completer) *Checker {
	return &Checker{llm: llm}
}

// Analyze never fails. Empty text, a collaborator error and unusable model
// output each produce an "uncertain" analysis describing what went wrong.
func (c *Checker) Analyze(ctx context.Context, text string) store.GrammarAnalysis {
	text = strings.TrimSpace(text)
	if text == "" {
		return uncertain(feedbackNoText)
	}

	reply, err := c.llm.Complete(ctx, Prompt(text))
	if err != nil {
		trace.Logger(ctx).Warn("grammar check failed", "error", err)
		return uncertain(feedbackCallPrefix + err.Error())
	}

	candidate := ExtractJSON(reply)
	result, err := decode(candidate)
	if err != nil {
		trace.Logger(ctx).Warn("grammar response unusable", "error", err)
		return uncertain(feedbackBadOutput + candidate)
	}
	return result
}

// Prompt renders the analysis prompt for text.
func Prompt(text string) string {
	return fmt.Sprintf(promptTemplate, text)
}

// ExtractJSON pulls the JSON object out of a model reply that may wrap it in
// a ```json fence, a bare ``` fence, or surrounding prose.
func ExtractJSON(reply string) string {
	s := reply
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	} else if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if j := strings.LastIndex(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		s = rest
	}
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		if i, j := strings.Index(s, "{"), strings.LastIndex(s, "}"); i >= 0 && j > i {
			s = s[i : j+1]
		}
	}
	return s
}

func decode(candidate string) (store.GrammarAnalysis, error) {
	var instance any
	if err := json.Unmarshal([]byte(candidate), &instance); err != nil {
		return store.GrammarAnalysis{}, err
	}
	if err := schema.Validate(instance); err != nil {
		return store.GrammarAnalysis{}, err
	}
	var out store.GrammarAnalysis
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return store.GrammarAnalysis{}, err
	}
	return out, nil
}

func uncertain(feedback string) store.GrammarAnalysis {
	return store.GrammarAnalysis{OverallFeedback: feedback}
}
