package memory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyMemoryID rejects signals that cannot be attributed to a memory.
var ErrEmptyMemoryID = errors.New("memory ID cannot be empty")

// SignalType identifies the source of a confidence signal.
type SignalType string

const (
	// SignalExplicit comes from submit_search_feedback: a client rated
	// a result helpful or not.
	SignalExplicit SignalType = "explicit"

	// SignalUsage comes from retrieval: the memory surfaced in a result
	// set. Weak evidence — surfacing is not endorsement.
	SignalUsage SignalType = "usage"

	// SignalOutcome comes from a client reporting that acting on the
	// memory worked or failed.
	SignalOutcome SignalType = "outcome"
)

// signalWeights fixes how much each signal type moves confidence. An
// explicit rating is worth four usage observations; an outcome sits in
// between since "the task failed" only loosely implicates one memory.
var signalWeights = map[SignalType]float64{
	SignalExplicit: 1.0,
	SignalOutcome:  0.75,
	SignalUsage:    0.25,
}

// Weight returns the type's fixed contribution weight; unknown types
// count like usage.
func (t SignalType) Weight() float64 {
	if w, ok := signalWeights[t]; ok {
		return w
	}
	return signalWeights[SignalUsage]
}

// Signal is one confidence-relevant event recorded against a memory.
type Signal struct {
	ID          string     `json:"id"`
	MemoryID    string     `json:"memory_id"`
	ProjectName string     `json:"project_name,omitempty"`
	Type        SignalType `json:"type"`
	Positive    bool       `json:"positive"`

	// SessionID correlates the signal back to the conversation session
	// that produced it, when known.
	SessionID string `json:"session_id,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// NewSignal creates a Signal with a fresh ID and the current timestamp.
func NewSignal(memoryID, projectName string, signalType SignalType, positive bool, sessionID string) (*Signal, error) {
	if memoryID == "" {
		return nil, ErrEmptyMemoryID
	}
	return &Signal{
		ID:          uuid.New().String(),
		MemoryID:    memoryID,
		ProjectName: projectName,
		Type:        signalType,
		Positive:    positive,
		SessionID:   sessionID,
		Timestamp:   time.Now(),
	}, nil
}
