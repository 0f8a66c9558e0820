package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type statusReportOutput struct {
	Collections       []string `json:"collections"`
	MemoryCount       int      `json:"memory_count"`
	TrackedUsageItems int      `json:"tracked_usage_items"`
	ActiveSessions    int      `json:"active_sessions"`
	OptedInProjects   int      `json:"opted_in_projects"`
}

// registerStatusTools registers get_status, a coarse health/count
// summary across every subsystem the orchestrator wires together.
func (s *Server) registerStatusTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_status",
		Description: "Report collection, memory, session, and consent counts across the engine",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, statusReportOutput, error) {
		report, err := s.orch.GetStatus(ctx)
		if err != nil {
			return nil, statusReportOutput{}, fmt.Errorf("get_status: %w", err)
		}
		out := statusReportOutput{
			Collections:       report.Collections,
			MemoryCount:       report.MemoryCount,
			TrackedUsageItems: report.TrackedUsageItems,
			ActiveSessions:    report.ActiveSessions,
			OptedInProjects:   report.OptedInProjects,
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d collections, %d memories", len(out.Collections), out.MemoryCount)},
		}}, out, nil
	})
}
