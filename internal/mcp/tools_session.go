package mcp

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/ctxengine/internal/session"
)

type sessionView struct {
	ID            string   `json:"id"`
	ProjectID     string   `json:"project_id,omitempty"`
	Description   string   `json:"description,omitempty"`
	CreatedAt     string   `json:"created_at"`
	LastActivity  string   `json:"last_activity"`
	RecentQueries []string `json:"recent_queries,omitempty"`
	ShownCount    int      `json:"shown_count"`
}

func sessionViewOf(s session.Snapshot) sessionView {
	return sessionView{
		ID:            s.ID,
		ProjectID:     s.ProjectID,
		Description:   s.Description,
		CreatedAt:     s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		LastActivity:  s.LastActivity.Format("2006-01-02T15:04:05Z07:00"),
		RecentQueries: s.RecentQueries,
		ShownCount:    s.ShownCount,
	}
}

type startSessionInput struct {
	ProjectID   string `json:"project_id,omitempty"`
	Description string `json:"description,omitempty"`
}

type sessionOutput struct {
	Session sessionView `json:"session"`
}

type endSessionInput struct {
	SessionID string `json:"session_id" jsonschema:"required"`
}

type listSessionsOutput struct {
	Sessions []sessionView `json:"sessions"`
}

// registerSessionTools registers the conversation-session tool
// surface: start_conversation_session, end_conversation_session, and
// list_conversation_sessions.
func (s *Server) registerSessionTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "start_conversation_session",
		Description: "Start a new conversation session, enabling retrieval dedup and query expansion across turns",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args startSessionInput) (*mcp.CallToolResult, sessionOutput, error) {
		snap, err := s.orch.StartConversationSession(uuid.NewString(), args.ProjectID, args.Description)
		if err != nil {
			return nil, sessionOutput{}, fmt.Errorf("start_conversation_session: %w", err)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("started session %s", snap.ID)},
		}}, sessionOutput{Session: sessionViewOf(snap)}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "end_conversation_session",
		Description: "End a conversation session, returning its final state",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args endSessionInput) (*mcp.CallToolResult, sessionOutput, error) {
		snap, err := s.orch.EndConversationSession(ctx, args.SessionID)
		if err != nil {
			return nil, sessionOutput{}, fmt.Errorf("end_conversation_session: %w", err)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("ended session %s", snap.ID)},
		}}, sessionOutput{Session: sessionViewOf(snap)}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_conversation_sessions",
		Description: "List every currently tracked conversation session",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, listSessionsOutput, error) {
		snaps := s.orch.ListConversationSessions()
		out := listSessionsOutput{Sessions: make([]sessionView, len(snaps))}
		for i, snap := range snaps {
			out.Sessions[i] = sessionViewOf(snap)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d active sessions", len(snaps))},
		}}, out, nil
	})
}
