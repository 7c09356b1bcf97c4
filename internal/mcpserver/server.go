// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Guidepost tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ashby/guidepost/internal/guideservice"
	"github.com/ashby/guidepost/internal/models"
	"github.com/ashby/guidepost/internal/session"
)

// Server wraps the MCP server with Guidepost tools.
type Server struct {
	mcp      *server.MCPServer
	guides   *guideservice.Service
	sessions *session.Manager
}

// New creates a new MCP server with all Guidepost tools registered.
func New(guides *guideservice.Service, sessions *session.Manager) *Server {
	s := &Server{guides: guides, sessions: sessions}

	s.mcp = server.NewMCPServer(
		"Guidepost",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_guides",
		mcp.WithDescription("Full-text search through saved guide sections."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchGuides)

	s.mcp.AddTool(mcp.NewTool("read_guide",
		mcp.WithDescription("Read a saved guide with all its sections."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Guide id (e.g. guide_a1b2c3d4e5f6)")),
	), s.readGuide)

	s.mcp.AddTool(mcp.NewTool("list_guides",
		mcp.WithDescription("List saved guides, newest first."),
		mcp.WithString("state", mcp.Description("Optional state filter: candidate, needs_review, published, discarded")),
	), s.listGuides)

	s.mcp.AddTool(mcp.NewTool("list_drafts",
		mcp.WithDescription("List in-progress research drafts."),
	), s.listDrafts)

	s.mcp.AddTool(mcp.NewTool("read_draft",
		mcp.WithDescription("Read one research draft: its search unit tree and saved items."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Draft id")),
	), s.readDraft)

	s.mcp.AddTool(mcp.NewTool("submit_guide",
		mcp.WithDescription("Submit a guide through the quality gate. Sections MUST follow "+
			"the recommendation format; read the contract first via the get_guide_contract "+
			"tool or the guidepost://guide-format resource. Thin or duplicate content is "+
			"rejected with an explicit verdict."),
		mcp.WithString("destination", mcp.Required(), mcp.Description("Destination name (e.g. Tokyo)")),
		mcp.WithString("title", mcp.Description("Guide title; defaults to '<destination> Guide'")),
		mcp.WithString("sections", mcp.Required(), mcp.Description(
			`JSON array of sections: [{"title": "...", "query": "...", "body": "..."}]`)),
	), s.submitGuide)

	s.mcp.AddTool(mcp.NewTool("get_guide_contract",
		mcp.WithDescription("Returns the canonical recommendation Markdown format contract. "+
			"Call this before producing guide sections to ensure parseable structure."),
	), s.getGuideContract)

	// Resource: guide format contract.
	s.mcp.AddResource(
		mcp.NewResource("guidepost://guide-format", "Guide Format Contract",
			mcp.WithResourceDescription("Canonical recommendation Markdown format for guide sections."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readGuideFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchGuides(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.guides.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readGuide(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	guide, err := s.guides.GetGuide(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(guide, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listGuides(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state := ""
	if v, err := req.RequireString("state"); err == nil {
		state = v
	}
	guides, _, err := s.guides.ListGuides(ctx, 50, 0, state, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var lines []string
	for _, g := range guides {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s\t%.3f", g.ID, g.Title, g.State, g.QualityScore))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no guides found"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) listDrafts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	drafts, err := s.sessions.List()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var lines []string
	for _, d := range drafts {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%d units\t%d saved", d.ID, d.Destination, len(d.Units), len(d.SavedItems)))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no drafts found"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readDraft(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(sess.Snapshot(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) submitGuide(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	destination, err := req.RequireString("destination")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sectionsJSON, err := req.RequireString("sections")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var payload []struct {
		Title string `json:"title"`
		Query string `json:"query"`
		Body  string `json:"body"`
	}
	if err := json.Unmarshal([]byte(sectionsJSON), &payload); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sections is not valid JSON: %v", err)), nil
	}

	sections := make([]models.GuideSection, len(payload))
	for i, p := range payload {
		sections[i] = models.GuideSection{Heading: p.Title, Query: p.Query, Body: p.Body}
	}
	title := ""
	if v, rErr := req.RequireString("title"); rErr == nil {
		title = v
	}

	res, err := s.guides.SaveGuide(ctx, guideservice.Submission{
		Destination: destination,
		Title:       title,
		Sections:    sections,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getGuideContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(GuideFormatContract), nil
}

func (s *Server) readGuideFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "guidepost://guide-format",
			MIMEType: "text/markdown",
			Text:     GuideFormatContract,
		},
	}, nil
}
