package types

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Envelope is the document a producer appends to the pending topic.
type Envelope struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	Source      string                 `json:"source"`
	PublishedAt string                 `json:"published_at"`
	URL         string                 `json:"url"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// UnmarshalJSON accepts the older producer field names (content, published_date)
// next to the canonical ones.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	type plain Envelope
	var raw struct {
		plain
		Content       string `json:"content"`
		PublishedDate string `json:"published_date"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*e = Envelope(raw.plain)
	if e.Body == "" {
		e.Body = raw.Content
	}
	if e.PublishedAt == "" {
		e.PublishedAt = raw.PublishedDate
	}
	return nil
}

func (e Envelope) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("envelope: id is required")
	}
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("envelope %s: title is required", e.ID)
	}
	return nil
}

type AttackType string

const (
	AttackJailbreak          AttackType = "Jailbreak"
	AttackPromptInjection    AttackType = "Prompt Injection"
	AttackDataPoisoning      AttackType = "Data Poisoning"
	AttackBackdoor           AttackType = "Backdoor"
	AttackModelExtraction    AttackType = "Model Extraction"
	AttackAdversarialExample AttackType = "Adversarial Example"
	AttackOther              AttackType = "Other"
)

var AttackTypes = []AttackType{
	AttackJailbreak,
	AttackPromptInjection,
	AttackDataPoisoning,
	AttackBackdoor,
	AttackModelExtraction,
	AttackAdversarialExample,
	AttackOther,
}

type Modality string

const (
	ModalityText       Modality = "Text"
	ModalityVision     Modality = "Vision"
	ModalityAudio      Modality = "Audio"
	ModalityMultiModal Modality = "Multi-modal"
	ModalityAgentic    Modality = "Agentic"
)

var Modalities = []Modality{
	ModalityText,
	ModalityVision,
	ModalityAudio,
	ModalityMultiModal,
	ModalityAgentic,
}

const (
	MinTitleLength  = 5
	MaxTitleLength  = 500
	MaxSummaryRunes = 280
	MinSeverity     = 1
	MaxSeverity     = 5
)

var urlPattern = regexp.MustCompile(`^https?://`)

// StructuredResult is the threat signature extracted from an accepted document.
type StructuredResult struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	URL            string     `json:"url"`
	PublishedAt    string     `json:"published_date"`
	Source         string     `json:"source"`
	RelevanceScore float64    `json:"relevance_score"`
	AttackType     AttackType `json:"attack_type"`
	Modality       []Modality `json:"modality"`
	AffectedModels []string   `json:"affected_models"`
	IsTheoretical  bool       `json:"is_theoretical"`
	Severity       int        `json:"severity"`
	SummaryTLDR    string     `json:"summary_tldr"`
	Caveat         string     `json:"caveat,omitempty"`
	ProcessedAt    time.Time  `json:"processed_at"`
}

func (r *StructuredResult) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("result: id is required")
	}

	titleLen := utf8.RuneCountInString(r.Title)
	if titleLen < MinTitleLength || titleLen > MaxTitleLength {
		return fmt.Errorf("result %s: title length %d outside [%d, %d]", r.ID, titleLen, MinTitleLength, MaxTitleLength)
	}

	if !urlPattern.MatchString(r.URL) {
		return fmt.Errorf("result %s: url %q must start with http:// or https://", r.ID, r.URL)
	}

	if r.RelevanceScore < 0 || r.RelevanceScore > 1 {
		return fmt.Errorf("result %s: relevance score %.2f outside [0, 1]", r.ID, r.RelevanceScore)
	}

	if !validAttackType(r.AttackType) {
		return fmt.Errorf("result %s: unknown attack type %q", r.ID, r.AttackType)
	}

	if len(r.Modality) == 0 {
		return fmt.Errorf("result %s: at least one modality is required", r.ID)
	}
	for _, m := range r.Modality {
		if !validModality(m) {
			return fmt.Errorf("result %s: unknown modality %q", r.ID, m)
		}
	}

	if r.Severity < MinSeverity || r.Severity > MaxSeverity {
		return fmt.Errorf("result %s: severity %d outside [%d, %d]", r.ID, r.Severity, MinSeverity, MaxSeverity)
	}

	if strings.TrimSpace(r.SummaryTLDR) == "" {
		return fmt.Errorf("result %s: summary is required", r.ID)
	}
	if n := utf8.RuneCountInString(r.SummaryTLDR); n > MaxSummaryRunes {
		return fmt.Errorf("result %s: summary has %d characters, max %d", r.ID, n, MaxSummaryRunes)
	}

	return nil
}

func validAttackType(t AttackType) bool {
	for _, known := range AttackTypes {
		if t == known {
			return true
		}
	}
	return false
}

func validModality(m Modality) bool {
	for _, known := range Modalities {
		if m == known {
			return true
		}
	}
	return false
}

// Job carries one document through the processor chain. Processors fill in
// Relevance and Result as they accept it.
type Job struct {
	Doc       Envelope
	Relevance float64
	Reasoning string
	Result    *StructuredResult
}

// Verdict is either an accepted result or a rejection, never both.
type Verdict struct {
	Result    *StructuredResult
	Rejection *RejectionError
}

func Accepted(result *StructuredResult) Verdict {
	return Verdict{Result: result}
}

func Rejected(rejection *RejectionError) Verdict {
	return Verdict{Rejection: rejection}
}

func (v Verdict) IsAccepted() bool {
	return v.Result != nil && v.Rejection == nil
}

// Outcome reports what the consumer did with a single queue entry.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeRejected  Outcome = "rejected"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomePoison    Outcome = "poison"
	OutcomeDeferred  Outcome = "deferred"
)

// Rejection is the durable marker written for a document the pipeline refused.
type Rejection struct {
	DocID      string                 `json:"doc_id"`
	Title      string                 `json:"title"`
	Stage      string                 `json:"stage"`
	Reason     string                 `json:"reason"`
	Details    map[string]interface{} `json:"details,omitempty"`
	RejectedAt time.Time              `json:"rejected_at"`
}

// Digest is a curated summary over a batch of analyzed results.
type Digest struct {
	ID          string    `json:"id"`
	Headline    string    `json:"headline"`
	Summary     string    `json:"summary_markdown"`
	Highlighted []string  `json:"highlighted_threat_ids"`
	ResultIDs   []string  `json:"result_ids"`
	Caveat      string    `json:"caveat,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
