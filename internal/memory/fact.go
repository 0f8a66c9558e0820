package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Fact-related errors.
var (
	ErrEmptyFactText  = errors.New("fact text cannot be empty")
	ErrIncompleteFact = errors.New("fact requires subject, relation and object")
)

// Fact is one structured relation mined from text: "the api uses
// postgres" becomes (the api, uses, postgres). Facts enrich session
// summaries so the distilled memory carries searchable structure, not
// just the raw query stream.
type Fact struct {
	// Subject and Object are the related entities; Relation names the
	// edge between them (uses, requires, runs-on, migrated-to,
	// caused, is, prefers-over).
	Subject  string `json:"subject"`
	Relation string `json:"relation"`
	Object   string `json:"object"`

	// Confidence reflects how unambiguous the source phrasing was.
	Confidence float64 `json:"confidence"`

	// Source is the sentence the fact was mined from, kept for
	// verification.
	Source string `json:"source"`

	// ObservedAt anchors the fact in time: the reference date, shifted
	// when the source sentence carries a relative time phrase.
	ObservedAt time.Time `json:"observed_at"`
}

// Validate rejects structurally incomplete facts.
func (f *Fact) Validate() error {
	if strings.TrimSpace(f.Subject) == "" ||
		strings.TrimSpace(f.Relation) == "" ||
		strings.TrimSpace(f.Object) == "" {
		return ErrIncompleteFact
	}
	if f.Confidence < 0 || f.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", f.Confidence)
	}
	return nil
}

// String renders the triple for summaries.
func (f Fact) String() string {
	return fmt.Sprintf("%s %s %s", f.Subject, f.Relation, f.Object)
}

// FactExtractor mines structured relations from free text.
type FactExtractor interface {
	// Extract parses text into facts, resolving relative time phrases
	// against referenceDate.
	Extract(ctx context.Context, text string, referenceDate time.Time) ([]Fact, error)
}
