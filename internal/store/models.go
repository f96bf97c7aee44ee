package store

import "time"

// Stage is the job's position in the processing pipeline.
type Stage string

const (
	StageUploading       Stage = "uploading"
	StageSplitting       Stage = "splitting"
	StageScoring         Stage = "scoring"
	StageCheckingGrammar Stage = "checking_grammar"
	StageFinished        Stage = "finished"
	StageError           Stage = "error"
)

// Stages lists the forward stages in execution order.
var Stages = []Stage{StageUploading, StageSplitting, StageScoring, StageCheckingGrammar, StageFinished}

// Terminal reports whether no further transition can leave s.
func (s Stage) Terminal() bool { return s == StageFinished || s == StageError }

// Progress maps s to (actions done, total actions). Error reports zero done.
func (s Stage) Progress() (done, total int) {
	total = len(Stages)
	for i, st := range Stages {
		if st == s {
			return i + 1, total
		}
	}
	return 0, total
}

// Span is a half-open interval in seconds.
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Valid reports whether the span is non-degenerate.
func (s *Span) Valid() bool { return s != nil && s.End > s.Start && s.Start >= 0 }

type WordScore struct {
	Word  string  `json:"word"`
	Score float64 `json:"score"`
}

type GrammarAnalysis struct {
	IsGrammaticallyCorrect bool   `json:"is_grammatically_correct"`
	CorrectedText          string `json:"corrected_text"`
	OverallFeedback        string `json:"overall_feedback"`
}

// Sentence is one segmented span of the conversation. ID is 1-based and is
// the join key for every later stage.
type Sentence struct {
	ID            int              `json:"id"`
	Text          string           `json:"sentence_text"`
	Span          *Span            `json:"audio_timeline,omitempty"`
	WordScores    []WordScore      `json:"word_scores,omitempty"`
	SentenceScore *float64         `json:"sentence_score,omitempty"`
	Grammar       *GrammarAnalysis `json:"grammar_analysis,omitempty"`
	ScoringError  string           `json:"scoring_error,omitempty"`
}

// Scored reports whether the scoring stage has written this sentence.
func (s Sentence) Scored() bool { return s.SentenceScore != nil }

// Conversation is the per-job document.
type Conversation struct {
	ID          string     `json:"conversation_id"`
	Filename    string     `json:"filename"`
	SHA256      string     `json:"sha256"`
	UploadedAt  time.Time  `json:"uploaded_at"`
	Action      Stage      `json:"action"`
	Sentences   []Sentence `json:"sentences"`
	Summary     string     `json:"summary,omitempty"`
	FailedStage Stage      `json:"failed_stage,omitempty"`
	Error       string     `json:"error,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Top-level document keys accepted by Merge.
const (
	FieldFilename    = "filename"
	FieldSHA256      = "sha256"
	FieldAction      = "action"
	FieldSentences   = "sentences"
	FieldSummary     = "summary"
	FieldFailedStage = "failed_stage"
	FieldError       = "error"
	FieldUpdatedAt   = "updated_at"
)

// Fields is a shallow patch: each key replaces the document's top-level key.
type Fields map[string]any
