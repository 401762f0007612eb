// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the note collection to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/bloc/internal/codec"
	"github.com/starford/bloc/internal/durability"
	"github.com/starford/bloc/internal/models"
	"github.com/starford/bloc/internal/notes"
)

const formatURI = "bloc://export-format"

// Notes is the manager surface the tools drive.
type Notes interface {
	List() []models.Note
	Get(id int64) (models.Note, bool)
	CreateNote(ctx context.Context) models.Note
	UpdateContent(id int64, content string) (models.Note, bool)
	UpdateTitle(id int64, title string) (models.Note, bool)
	DeleteNotes(ctx context.Context, ids models.IDSet) error
	Import(ctx context.Context, data []byte) (notes.ImportSummary, error)
	Export(ids models.IDSet) (codec.Export, error)
	Flush(ctx context.Context) error
	Durable() bool
}

var _ Notes = (*notes.Manager)(nil)

// Server wraps the MCP server with note tools.
type Server struct {
	mcp     *server.MCPServer
	notes   Notes
	policy  *durability.Policy
	storeID string
}

// New creates a new MCP server with all tools registered. policy may be nil.
func New(n Notes, policy *durability.Policy, storeID string) *Server {
	s := &Server{notes: n, policy: policy, storeID: storeID}

	s.mcp = server.NewMCPServer(
		"Bloc",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List every note with its id, title and timestamps, in collection order."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note including its HTML content."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Numeric note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note. Without a title it is named \"<date> note <n>\"."),
		mcp.WithString("title", mcp.Description("Optional title")),
		mcp.WithString("content", mcp.Description("Optional HTML content")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Change the title and/or content of a note. A blank title becomes \"Untitled\"."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Numeric note id")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("content", mcp.Description("New HTML content")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("delete_notes",
		mcp.WithDescription("Delete notes by id. At least one note must remain in the collection."),
		mcp.WithString("ids", mcp.Required(), mcp.Description("Comma-separated note ids")),
	), s.deleteNotes)

	s.mcp.AddTool(mcp.NewTool("export_notes",
		mcp.WithDescription("Export the selected notes as a JSON array. See "+formatURI+"."),
		mcp.WithString("ids", mcp.Required(), mcp.Description("Comma-separated note ids")),
	), s.exportNotes)

	s.mcp.AddTool(mcp.NewTool("import_notes",
		mcp.WithDescription("Append notes from an export JSON array. Existing notes are never replaced."),
		mcp.WithString("data", mcp.Required(), mcp.Description("Export file contents")),
	), s.importNotes)

	s.mcp.AddTool(mcp.NewTool("storage_status",
		mcp.WithDescription("Report whether the collection is protected from eviction and whether the last save succeeded."),
	), s.storageStatus)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Export Format",
			mcp.WithResourceDescription("JSON interchange format for export_notes and import_notes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
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

type noteSummary struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list := s.notes.List()
	out := make([]noteSummary, 0, len(list))
	for _, n := range list {
		out = append(out, noteSummary{ID: n.ID, Title: n.Title, CreatedAt: n.CreatedAt, LastModified: n.LastModified})
	}
	return jsonResult(out)
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errRes := requireID(req)
	if errRes != nil {
		return errRes, nil
	}
	n, ok := s.notes.Get(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %d", id)), nil
	}
	return jsonResult(n)
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n := s.notes.CreateNote(ctx)
	args := req.GetArguments()
	if title, ok := args["title"].(string); ok {
		n, _ = s.notes.UpdateTitle(n.ID, title)
	}
	if content, ok := args["content"].(string); ok {
		n, _ = s.notes.UpdateContent(n.ID, content)
	}
	if err := s.notes.Flush(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("created %d in memory but save failed: %v", n.ID, err)), nil
	}
	return jsonResult(n)
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errRes := requireID(req)
	if errRes != nil {
		return errRes, nil
	}
	args := req.GetArguments()
	title, hasTitle := args["title"].(string)
	content, hasContent := args["content"].(string)
	if !hasTitle && !hasContent {
		return mcp.NewToolResultError("nothing to update: pass title and/or content"), nil
	}

	n, ok := s.notes.Get(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %d", id)), nil
	}
	if hasTitle {
		n, _ = s.notes.UpdateTitle(id, title)
	}
	if hasContent {
		n, _ = s.notes.UpdateContent(id, content)
	}
	if err := s.notes.Flush(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("updated in memory but save failed: %v", err)), nil
	}
	return jsonResult(n)
}

func (s *Server) deleteNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, errRes := requireIDs(req)
	if errRes != nil {
		return errRes, nil
	}
	if err := s.notes.DeleteNotes(ctx, ids); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted; %d notes remain", len(s.notes.List()))), nil
}

func (s *Server) exportNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, errRes := requireIDs(req)
	if errRes != nil {
		return errRes, nil
	}
	exp, err := s.notes.Export(ids)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(exp.Data)), nil
}

func (s *Server) importNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := req.RequireString("data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sum, err := s.notes.Import(ctx, []byte(data))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(sum)
}

func (s *Server) storageStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := durability.Unsupported
	if s.policy != nil {
		status = s.policy.Status()
	}
	return jsonResult(map[string]any{
		"status":    status,
		"indicator": status.Indicator(),
		"durable":   s.notes.Durable(),
		"storeId":   s.storeID,
	})
}

func (s *Server) readFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     ExportFormatContract,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func requireID(req mcp.CallToolRequest) (int64, *mcp.CallToolResult) {
	raw, err := req.RequireString("id")
	if err != nil {
		return 0, mcp.NewToolResultError(err.Error())
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, mcp.NewToolResultError(fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}

// requireIDs parses a comma-separated id list. Blank entries are skipped so
// an empty list reaches the manager and yields its no-selection error.
func requireIDs(req mcp.CallToolRequest) (models.IDSet, *mcp.CallToolResult) {
	raw, err := req.RequireString("ids")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	ids := models.NewIDSet()
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, mcp.NewToolResultError(fmt.Sprintf("invalid id %q", part))
		}
		ids[id] = struct{}{}
	}
	return ids, nil
}
