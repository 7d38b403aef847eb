package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rmax-ai/spawnlord/pkg/client"
)

const promptName = "spawnlord-aware"

// Server exposes a spawnlord daemon over the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server instance talking to the daemon at apiURL.
func NewServer(apiURL string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"spawnlord",
			"1.0.0",
		),
		apiClient: client.NewClient(apiURL),
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		"spawnlord://schedulers",
		"Spawn Schedulers",
		mcp.WithResourceDescription("Every scheduler with its elapsed time, interval bounds, milestones and pool tiers"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadSchedulers)

	s.mcpServer.AddResource(mcp.NewResource(
		"spawnlord://events",
		"Spawn Event Log",
		mcp.WithResourceDescription("Recent milestone, spawn and gate events"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadEvents)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"set_spawning",
		mcp.WithDescription("Open or close a scheduler's spawn gate. Elapsed time and milestones keep advancing while closed."),
		mcp.WithString("scheduler_id", mcp.Required(), mcp.Description("The scheduler to change")),
		mcp.WithBoolean("enabled", mcp.Required(), mcp.Description("true to allow spawning, false to pause it")),
		mcp.WithString("reason", mcp.Description("Free-form note recorded in the daemon log")),
	), s.handleSetSpawning)

	s.mcpServer.AddTool(mcp.NewTool(
		"toggle_spawning",
		mcp.WithDescription("Flip a scheduler's spawn gate and report the new state."),
		mcp.WithString("scheduler_id", mcp.Required(), mcp.Description("The scheduler to change")),
	), s.handleToggleSpawning)
}

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		promptName,
		mcp.WithPromptDescription("Explains spawnlord concepts (schedulers, milestones, tiers, the spawn gate)"),
	), s.handleGetPrompt)
}

func (s *Server) handleReadSchedulers(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	schedulers, err := s.apiClient.ListSchedulers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schedulers: %w", err)
	}
	return jsonContents(request.Params.URI, schedulers)
}

func (s *Server) handleReadEvents(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	events, err := s.apiClient.GetEvents(ctx, client.EventsOptions{Limit: 50})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}
	return jsonContents(request.Params.URI, events)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleSetSpawning(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(request, "scheduler_id", "")
	if id == "" {
		return mcp.NewToolResultError("scheduler_id is required"), nil
	}
	enabled := mcp.ParseBoolean(request, "enabled", false)
	reason := mcp.ParseString(request, "reason", "mcp")

	if err := s.apiClient.SetSpawning(ctx, id, enabled, reason); err != nil {
		return toolError(id, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Scheduler %s: spawning_enabled=%t", id, enabled)), nil
}

func (s *Server) handleToggleSpawning(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(request, "scheduler_id", "")
	if id == "" {
		return mcp.NewToolResultError("scheduler_id is required"), nil
	}
	enabled, err := s.apiClient.Toggle(ctx, id)
	if err != nil {
		return toolError(id, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Scheduler %s: spawning_enabled=%t", id, enabled)), nil
}

func toolError(id string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, client.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("unknown scheduler %q", id))
	case errors.Is(err, client.ErrNoLeader):
		return mcp.NewToolResultError("no daemon currently holds leadership; retry shortly")
	}
	return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err))
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	if request.Params.Name != promptName {
		return nil, fmt.Errorf("prompt not found: %s", request.Params.Name)
	}

	promptText := `You are operating spawnlord, a timed spawn scheduler for game worlds.

Concepts:
- Scheduler: spawns batches of entities at random intervals drawn from [min, max] seconds.
- Milestone: at a fixed elapsed time a pool tier is unlocked. Every milestone after the first shrinks the interval bounds by the decay factor.
- Tier: a named group of pooled entities. Locked tiers hand out nothing.
- Spawn gate: when closed, no entities spawn but elapsed time and milestones still advance.
- Frozen: after the last milestone fires, elapsed time stops.

Read spawnlord://schedulers before changing anything. Use set_spawning or toggle_spawning to pause or resume a scheduler.
`

	return mcp.NewGetPromptResult(
		promptName,
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}
