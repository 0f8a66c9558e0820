package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/ctxengine/internal/feedback"
)

type listOptedInOutput struct {
	Projects []string `json:"projects"`
}

type submitFeedbackInput struct {
	SearchID    string   `json:"search_id" jsonschema:"required"`
	Query       string   `json:"query" jsonschema:"required"`
	ResultIDs   []string `json:"result_ids,omitempty"`
	Rating      string   `json:"rating" jsonschema:"required,helpful or not_helpful"`
	Comment     string   `json:"comment,omitempty"`
	ProjectName string   `json:"project_name,omitempty"`
}

type submitFeedbackOutput struct {
	FeedbackID string `json:"feedback_id"`
}

type qualityMetricsInput struct {
	TimeRangeHours float64 `json:"time_range_hours,omitempty" jsonschema:"Trailing window, default 24"`
	ProjectName    string  `json:"project_name,omitempty"`
}

type qualityMetricsOutput struct {
	TotalSearches   int     `json:"total_searches"`
	HelpfulCount    int     `json:"helpful_count"`
	NotHelpfulCount int     `json:"not_helpful_count"`
	HelpfulnessRate float64 `json:"helpfulness_rate"`
	WindowStart     string  `json:"window_start"`
	WindowEnd       string  `json:"window_end"`
}

// registerCrossProjectTools registers the consent-gate tool surface
// (opt_in_cross_project, opt_out_cross_project, list_opted_in_projects)
// and the feedback-store tool surface (submit_search_feedback,
// get_quality_metrics).
func (s *Server) registerCrossProjectTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "opt_in_cross_project",
		Description: "Opt a project in to being searched from other projects' cross-project queries",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args projectOnlyInput) (*mcp.CallToolResult, statusOutput, error) {
		if err := s.orch.OptInCrossProject(ctx, args.ProjectName); err != nil {
			return nil, statusOutput{}, fmt.Errorf("opt_in_cross_project: %w", err)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%s opted in", args.ProjectName)},
		}}, statusOutput{OK: true}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "opt_out_cross_project",
		Description: "Opt a project out of cross-project search",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args projectOnlyInput) (*mcp.CallToolResult, statusOutput, error) {
		if err := s.orch.OptOutCrossProject(ctx, args.ProjectName); err != nil {
			return nil, statusOutput{}, fmt.Errorf("opt_out_cross_project: %w", err)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%s opted out", args.ProjectName)},
		}}, statusOutput{OK: true}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_opted_in_projects",
		Description: "List every project currently opted in to cross-project search",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, listOptedInOutput, error) {
		projects, err := s.orch.ListOptedInProjects(ctx)
		if err != nil {
			return nil, listOptedInOutput{}, fmt.Errorf("list_opted_in_projects: %w", err)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d opted-in projects", len(projects))},
		}}, listOptedInOutput{Projects: projects}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "submit_search_feedback",
		Description: "Submit a helpful/not-helpful rating for a prior search's results",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args submitFeedbackInput) (*mcp.CallToolResult, submitFeedbackOutput, error) {
		id, err := s.orch.SubmitSearchFeedback(ctx, args.SearchID, args.Query, args.ResultIDs, feedback.Rating(args.Rating), args.Comment, args.ProjectName)
		if err != nil {
			return nil, submitFeedbackOutput{}, fmt.Errorf("submit_search_feedback: %w", err)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: "feedback recorded"},
		}}, submitFeedbackOutput{FeedbackID: id}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_quality_metrics",
		Description: "Aggregate search helpfulness feedback over a trailing time window",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args qualityMetricsInput) (*mcp.CallToolResult, qualityMetricsOutput, error) {
		window := args.TimeRangeHours
		if window <= 0 {
			window = 24
		}
		m, err := s.orch.GetQualityMetrics(ctx, window, args.ProjectName)
		if err != nil {
			return nil, qualityMetricsOutput{}, fmt.Errorf("get_quality_metrics: %w", err)
		}
		out := qualityMetricsOutput{
			TotalSearches:   m.TotalSearches,
			HelpfulCount:    m.HelpfulCount,
			NotHelpfulCount: m.NotHelpfulCount,
			HelpfulnessRate: m.HelpfulnessRate,
			WindowStart:     m.WindowStart.Format("2006-01-02T15:04:05Z07:00"),
			WindowEnd:       m.WindowEnd.Format("2006-01-02T15:04:05Z07:00"),
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%.0f%% helpful over %d searches", out.HelpfulnessRate*100, out.TotalSearches)},
		}}, out, nil
	})
}
