package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ctxengine/internal/feedback"
	"github.com/fyrsmithlabs/ctxengine/internal/memory"
	"github.com/fyrsmithlabs/ctxengine/internal/session"
)

// OptInCrossProject implements opt_in_cross_project.
func (o *Orchestrator) OptInCrossProject(ctx context.Context, projectName string) error {
	if o.consent == nil {
		return fmt.Errorf("cross-project consent is not configured")
	}
	return o.consent.OptIn(ctx, projectName)
}

// OptOutCrossProject implements opt_out_cross_project.
func (o *Orchestrator) OptOutCrossProject(ctx context.Context, projectName string) error {
	if o.consent == nil {
		return fmt.Errorf("cross-project consent is not configured")
	}
	return o.consent.OptOut(ctx, projectName)
}

// ListOptedInProjects implements list_opted_in_projects.
func (o *Orchestrator) ListOptedInProjects(ctx context.Context) ([]string, error) {
	if o.consent == nil {
		return nil, fmt.Errorf("cross-project consent is not configured")
	}
	return o.consent.ListOptedIn(ctx)
}

// SubmitSearchFeedback implements submit_search_feedback. Beyond the
// append-only feedback record, each rated result gets an explicit
// confidence signal, and its provenance confidence is recomputed from
// the accumulated signal history.
func (o *Orchestrator) SubmitSearchFeedback(ctx context.Context, searchID, query string, resultIDs []string, rating feedback.Rating, comment, projectName string) (string, error) {
	if o.feedback == nil {
		return "", fmt.Errorf("feedback tracking is not configured")
	}
	id, err := o.feedback.Submit(ctx, searchID, query, resultIDs, rating, comment, projectName)
	if err != nil {
		return "", err
	}

	helpful := rating == feedback.RatingHelpful
	for _, memoryID := range resultIDs {
		signal, err := memory.NewSignal(memoryID, projectName, memory.SignalExplicit, helpful, "")
		if err != nil {
			continue
		}
		if err := o.confidence.Record(ctx, signal); err != nil {
			o.logger.Warn("recording feedback signal failed", zap.String("memory_id", memoryID), zap.Error(err))
			continue
		}
		o.refreshProvenanceConfidence(ctx, memoryID)
	}
	return id, nil
}

// refreshProvenanceConfidence recomputes a memory's provenance confidence
// from its signal history; best-effort, never fails the feedback call.
func (o *Orchestrator) refreshProvenanceConfidence(ctx context.Context, memoryID string) {
	m, collection, err := o.records.get(ctx, memoryID)
	if err != nil {
		return
	}
	conf, err := o.confidence.Confidence(ctx, memoryID)
	if err != nil {
		return
	}
	m.Provenance.Confidence = conf
	if err := o.records.put(ctx, collection, m); err != nil {
		o.logger.Warn("persisting recomputed confidence failed", zap.String("memory_id", memoryID), zap.Error(err))
	}
}

// GetQualityMetrics implements get_quality_metrics.
func (o *Orchestrator) GetQualityMetrics(ctx context.Context, timeRangeHours float64, projectName string) (*feedback.QualityMetrics, error) {
	if o.feedback == nil {
		return nil, fmt.Errorf("feedback tracking is not configured")
	}
	return o.feedback.GetQualityMetrics(ctx, timeRangeHours, projectName)
}

// StartConversationSession implements start_conversation_session.
func (o *Orchestrator) StartConversationSession(sessionID, projectID, description string) (session.Snapshot, error) {
	if o.sessions == nil {
		return session.Snapshot{}, fmt.Errorf("session tracking is not configured")
	}
	return o.sessions.StartSession(sessionID, projectID, description)
}

// EndConversationSession implements end_conversation_session. Before the
// session record is destroyed, its buffered query turns are distilled
// into one SESSION_STATE memory so the next session can pick up where
// this one left off; the scheduler's auto-prune reaps it after the TTL.
func (o *Orchestrator) EndConversationSession(ctx context.Context, sessionID string) (session.Snapshot, error) {
	if o.sessions == nil {
		return session.Snapshot{}, fmt.Errorf("session tracking is not configured")
	}
	snap, err := o.sessions.EndSession(sessionID)
	if err != nil {
		return session.Snapshot{}, err
	}
	o.distillSession(ctx, snap)
	return snap, nil
}

// distillSession summarizes a finished session's buffered turns into a
// SESSION_STATE memory; best-effort.
func (o *Orchestrator) distillSession(ctx context.Context, snap session.Snapshot) {
	buf := o.buffers.FlushBuffer(snap.ProjectID, snap.ID)
	summary, err := o.summarizer.Summarize(ctx, buf)
	if err != nil || summary == nil {
		return
	}
	scope := memory.ScopeProject
	if snap.ProjectID == "" {
		scope = memory.ScopeGlobal
	}
	m, err := memory.NewMemoryUnit(summary.Content, memory.CategoryContext, memory.LevelSessionState, scope, snap.ProjectID, o.embedder.ModelID())
	if err != nil {
		o.logger.Warn("session distillation failed", zap.String("session_id", snap.ID), zap.Error(err))
		return
	}
	m.Tags = summary.Tags
	m.Metadata = map[string]string{"title": summary.Title}
	m.Provenance = memory.Provenance{Source: "session_summary", Confidence: 0.6, SessionID: snap.ID}
	collection := memoryCollection(snap.ProjectID, scope)
	if err := o.persist(ctx, collection, m); err != nil {
		o.logger.Warn("persisting session summary failed", zap.String("session_id", snap.ID), zap.Error(err))
	}
}

// ListConversationSessions implements list_conversation_sessions.
func (o *Orchestrator) ListConversationSessions() []session.Snapshot {
	if o.sessions == nil {
		return nil
	}
	return o.sessions.ListSessions()
}
