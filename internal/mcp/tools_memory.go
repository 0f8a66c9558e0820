package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/ctxengine/internal/memory"
	"github.com/fyrsmithlabs/ctxengine/internal/orchestrator"
	"github.com/fyrsmithlabs/ctxengine/internal/search"
)

// memoryUnitView is the client-facing projection of a memory.MemoryUnit,
// content pre-scrubbed of secrets.
type memoryUnitView struct {
	ID             string            `json:"id" jsonschema:"Memory identifier"`
	Content        string            `json:"content" jsonschema:"Memory content"`
	Category       string            `json:"category" jsonschema:"preference, fact, event, workflow, context, or code"`
	ContextLevel   string            `json:"context_level" jsonschema:"USER_PREFERENCE, PROJECT_CONTEXT, or SESSION_STATE"`
	Scope          string            `json:"scope" jsonschema:"global or project"`
	ProjectName    string            `json:"project_name,omitempty" jsonschema:"Owning project, if scope is project"`
	Importance     float64           `json:"importance" jsonschema:"0.0-1.0 importance score"`
	Tags           []string          `json:"tags,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	LifecycleState string            `json:"lifecycle_state" jsonschema:"ACTIVE or ARCHIVED"`
	CreatedAt      string            `json:"created_at"`
	UpdatedAt      string            `json:"updated_at"`
}

func (s *Server) viewOf(m *memory.MemoryUnit) memoryUnitView {
	return memoryUnitView{
		ID:             m.ID,
		Content:        s.scrub(m.Content),
		Category:       string(m.Category),
		ContextLevel:   string(m.ContextLevel),
		Scope:          string(m.Scope),
		ProjectName:    m.ProjectName,
		Importance:     m.Importance,
		Tags:           m.Tags,
		Metadata:       m.Metadata,
		LifecycleState: string(m.LifecycleState),
		CreatedAt:      m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:      m.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// ===== store_memory =====

type storeMemoryInput struct {
	Content      string            `json:"content" jsonschema:"required,Memory content to store"`
	Category     string            `json:"category,omitempty" jsonschema:"preference, fact, event, workflow, context, or code; auto-classified when omitted"`
	ContextLevel string            `json:"context_level,omitempty" jsonschema:"USER_PREFERENCE, PROJECT_CONTEXT, or SESSION_STATE; auto-classified from content when omitted"`
	Scope        string            `json:"scope" jsonschema:"required,global or project"`
	ProjectName  string            `json:"project_name,omitempty" jsonschema:"Required when scope is project"`
	Importance   float64           `json:"importance,omitempty" jsonschema:"0.0-1.0, defaults to 0.5"`
	Tags         []string          `json:"tags,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type storeMemoryOutput struct {
	Memory memoryUnitView `json:"memory"`
}

func (s *Server) registerMemoryTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "store_memory",
		Description: "Store a new memory unit, auto-classifying its category and context level when not given",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args storeMemoryInput) (*mcp.CallToolResult, storeMemoryOutput, error) {
		m, err := s.orch.StoreMemory(ctx, orchestrator.StoreMemoryInput{
			Content:      args.Content,
			Category:     memory.Category(args.Category),
			ContextLevel: memory.ContextLevel(args.ContextLevel),
			Scope:        memory.Scope(args.Scope),
			ProjectName:  args.ProjectName,
			Importance:   args.Importance,
			Tags:         args.Tags,
			Metadata:     args.Metadata,
		})
		if err != nil {
			return nil, storeMemoryOutput{}, fmt.Errorf("store_memory: %w", err)
		}
		out := storeMemoryOutput{Memory: s.viewOf(m)}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Stored memory %s", m.ID)},
		}}, out, nil
	})

	// retrieve_memories
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "retrieve_memories",
		Description: "Retrieve memories relevant to a query via hybrid dense+lexical search with usage/recency re-ranking",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args retrieveMemoriesInput) (*mcp.CallToolResult, retrieveMemoriesOutput, error) {
		in := orchestrator.RetrieveInput{
			Query:         args.Query,
			ProjectName:   args.ProjectName,
			ContextLevel:  memory.ContextLevel(args.ContextLevel),
			SessionID:     args.SessionID,
			K:             args.K,
			Mode:          search.Mode(args.Mode),
			Category:      memory.Category(args.Category),
			MinImportance: args.MinImportance,
			MaxImportance: args.MaxImportance,
			Tags:          args.Tags,
		}
		var err error
		if in.DateFrom, err = parseOptionalTime(args.DateFrom); err != nil {
			return nil, retrieveMemoriesOutput{}, fmt.Errorf("retrieve_memories: invalid date_from: %w", err)
		}
		if in.DateTo, err = parseOptionalTime(args.DateTo); err != nil {
			return nil, retrieveMemoriesOutput{}, fmt.Errorf("retrieve_memories: invalid date_to: %w", err)
		}
		results, err := s.orch.RetrieveMemories(ctx, in)
		if err != nil {
			return nil, retrieveMemoriesOutput{}, fmt.Errorf("retrieve_memories: %w", err)
		}
		out := retrieveMemoriesOutput{Results: make([]scoredMemoryView, len(results))}
		for i, r := range results {
			out.Results[i] = scoredMemoryView{Memory: s.viewOf(r.Memory), Score: r.Score}
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Found %d memories", len(results))},
		}}, out, nil
	})

	// get_memory_by_id
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_memory_by_id",
		Description: "Fetch a single memory by its id",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args idOnlyInput) (*mcp.CallToolResult, storeMemoryOutput, error) {
		m, err := s.orch.GetMemoryByID(ctx, args.ID)
		if err != nil {
			return nil, storeMemoryOutput{}, fmt.Errorf("get_memory_by_id: %w", err)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: m.ID}}}, storeMemoryOutput{Memory: s.viewOf(m)}, nil
	})

	// delete_memory
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "delete_memory",
		Description: "Delete a memory by its id",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args idOnlyInput) (*mcp.CallToolResult, statusOutput, error) {
		if err := s.orch.DeleteMemory(ctx, args.ID); err != nil {
			return nil, statusOutput{}, fmt.Errorf("delete_memory: %w", err)
		}
		out := statusOutput{OK: true}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: "deleted"}}}, out, nil
	})

	// update_memory
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "update_memory",
		Description: "Partially update a memory; content changes re-embed unless regenerate_embedding=false",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args updateMemoryInput) (*mcp.CallToolResult, storeMemoryOutput, error) {
		in := orchestrator.UpdateMemoryInput{
			ID:                  args.ID,
			Tags:                args.Tags,
			Metadata:            args.Metadata,
			RegenerateEmbedding: args.RegenerateEmbedding,
		}
		if args.Content != "" {
			in.Content = &args.Content
		}
		if args.Importance != 0 {
			in.Importance = &args.Importance
		}
		m, err := s.orch.UpdateMemory(ctx, in)
		if err != nil {
			return nil, storeMemoryOutput{}, fmt.Errorf("update_memory: %w", err)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: "updated"}}}, storeMemoryOutput{Memory: s.viewOf(m)}, nil
	})

	// list_memories
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_memories",
		Description: "List stored memories for a project, optionally including archived ones",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args listMemoriesInput) (*mcp.CallToolResult, listMemoriesOutput, error) {
		units, err := s.orch.ListMemories(ctx, args.ProjectName, memory.ContextLevel(args.ContextLevel), args.IncludeArchived, args.Limit)
		if err != nil {
			return nil, listMemoriesOutput{}, fmt.Errorf("list_memories: %w", err)
		}
		out := listMemoriesOutput{Memories: make([]memoryUnitView, len(units))}
		for i, m := range units {
			out.Memories[i] = s.viewOf(m)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d memories", len(units))},
		}}, out, nil
	})

	// export_memories: list_memories' query path plus JSON serialization.
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "export_memories",
		Description: "Export a project's memories as a JSON document",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args listMemoriesInput) (*mcp.CallToolResult, exportMemoriesOutput, error) {
		units, err := s.orch.ListMemories(ctx, args.ProjectName, memory.ContextLevel(args.ContextLevel), args.IncludeArchived, args.Limit)
		if err != nil {
			return nil, exportMemoriesOutput{}, fmt.Errorf("export_memories: %w", err)
		}
		blob, err := json.Marshal(units)
		if err != nil {
			return nil, exportMemoriesOutput{}, fmt.Errorf("export_memories: marshaling: %w", err)
		}
		out := exportMemoriesOutput{JSON: string(blob), Count: len(units)}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("exported %d memories", len(units))},
		}}, out, nil
	})

	// import_memories: the inverse of export_memories.
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "import_memories",
		Description: "Import memories from a JSON document produced by export_memories",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args importMemoriesInput) (*mcp.CallToolResult, statusOutput, error) {
		var units []*memory.MemoryUnit
		if err := json.Unmarshal([]byte(args.JSON), &units); err != nil {
			return nil, statusOutput{}, fmt.Errorf("import_memories: decoding: %w", err)
		}
		n, err := s.orch.ImportMemories(ctx, units)
		if err != nil {
			return nil, statusOutput{}, fmt.Errorf("import_memories: %w", err)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("imported %d memories", n)},
		}}, statusOutput{OK: true, Detail: fmt.Sprintf("%d imported", n)}, nil
	})

	// migrate_memory_scope
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "migrate_memory_scope",
		Description: "Move a memory between its project scope and the global scope",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args migrateScopeInput) (*mcp.CallToolResult, storeMemoryOutput, error) {
		m, err := s.orch.MigrateMemoryScope(ctx, args.ID, memory.Scope(args.NewScope), args.NewProjectName)
		if err != nil {
			return nil, storeMemoryOutput{}, fmt.Errorf("migrate_memory_scope: %w", err)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: "migrated"}}}, storeMemoryOutput{Memory: s.viewOf(m)}, nil
	})

	// bulk_reclassify
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "bulk_reclassify",
		Description: "Re-run category classification over every active memory in a project",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args projectOnlyInput) (*mcp.CallToolResult, countOutput, error) {
		n, err := s.orch.BulkReclassify(ctx, args.ProjectName)
		if err != nil {
			return nil, countOutput{}, fmt.Errorf("bulk_reclassify: %w", err)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("reclassified %d memories", n)},
		}}, countOutput{Count: n}, nil
	})
}

type retrieveMemoriesInput struct {
	Query        string `json:"query" jsonschema:"required,Search query"`
	ProjectName  string `json:"project_name,omitempty"`
	ContextLevel string `json:"context_level,omitempty" jsonschema:"USER_PREFERENCE, PROJECT_CONTEXT, or SESSION_STATE"`
	SessionID    string `json:"session_id,omitempty" jsonschema:"Conversation session id, enables query expansion and result dedup"`
	K            int    `json:"k,omitempty" jsonschema:"Maximum results, default 10"`
	Mode         string `json:"mode,omitempty" jsonschema:"semantic, keyword, or hybrid (default)"`

	Category      string   `json:"category,omitempty" jsonschema:"preference, fact, event, workflow, context, or code"`
	MinImportance *float64 `json:"min_importance,omitempty" jsonschema:"Lower importance bound, 0.0-1.0"`
	MaxImportance *float64 `json:"max_importance,omitempty" jsonschema:"Upper importance bound, 0.0-1.0"`
	Tags          []string `json:"tags,omitempty" jsonschema:"Match memories carrying any of these tags"`
	DateFrom      string   `json:"date_from,omitempty" jsonschema:"RFC3339 lower bound on creation time"`
	DateTo        string   `json:"date_to,omitempty" jsonschema:"RFC3339 upper bound on creation time"`
}

// parseOptionalTime parses an RFC3339 timestamp, mapping "" to nil.
func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type scoredMemoryView struct {
	Memory memoryUnitView `json:"memory"`
	Score  float64        `json:"score"`
}

type retrieveMemoriesOutput struct {
	Results []scoredMemoryView `json:"results"`
}

type idOnlyInput struct {
	ID string `json:"id" jsonschema:"required,Memory identifier"`
}

type projectOnlyInput struct {
	ProjectName string `json:"project_name" jsonschema:"required"`
}

type statusOutput struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

type countOutput struct {
	Count int `json:"count"`
}

type updateMemoryInput struct {
	ID         string            `json:"id" jsonschema:"required"`
	Content    string            `json:"content,omitempty" jsonschema:"New content; re-embedded unless regenerate_embedding is false"`
	Importance float64           `json:"importance,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`

	// RegenerateEmbedding defaults to true. Set false to update content
	// while keeping the previous vector.
	RegenerateEmbedding *bool `json:"regenerate_embedding,omitempty" jsonschema:"Re-embed on content change (default true)"`
}

type listMemoriesInput struct {
	ProjectName     string `json:"project_name,omitempty"`
	ContextLevel    string `json:"context_level,omitempty"`
	IncludeArchived bool   `json:"include_archived,omitempty"`
	Limit           int    `json:"limit,omitempty"`
}

type listMemoriesOutput struct {
	Memories []memoryUnitView `json:"memories"`
}

type exportMemoriesOutput struct {
	JSON  string `json:"json" jsonschema:"Exported memories as a JSON array"`
	Count int    `json:"count"`
}

type importMemoriesInput struct {
	JSON string `json:"json" jsonschema:"required,JSON array of memory units as produced by export_memories"`
}

type migrateScopeInput struct {
	ID             string `json:"id" jsonschema:"required"`
	NewScope       string `json:"new_scope" jsonschema:"required,global or project"`
	NewProjectName string `json:"new_project_name,omitempty"`
}
