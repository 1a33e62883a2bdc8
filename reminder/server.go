// Package reminder implements an in-memory reminder tool server speaking
// MCP over stdio. It is the default child process for the pipe.
package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Server wraps the MCP server and the reminder store.
type Server struct {
	mcpServer *server.MCPServer
	store     *Store
	log       *zap.SugaredLogger
}

// NewServer builds the reminder MCP server. The logger must write to
// stderr: stdout is the protocol channel.
func NewServer(version string, log *zap.SugaredLogger) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer("reminder-server", version),
		store:     NewStore(),
		log:       log.Named("reminder"),
	}
	s.registerTools()
	return s
}

// ServeStdio serves MCP over stdin/stdout until the peer disconnects.
func (s *Server) ServeStdio() error {
	s.log.Info("reminder server listening on stdio")
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("serving stdio: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	str := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "string", "description": desc}
	}

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "add_reminder",
		Description: "Add a new reminder with title, datetime (YYYY-MM-DD HH:MM), and optional description",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"title":        str("Short title for the reminder"),
				"datetime_str": str("Due time, e.g. 2026-01-02 15:04"),
				"description":  str("Optional longer description"),
			},
			Required: []string{"title", "datetime_str"},
		},
	}, s.handleAdd)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_reminders",
		Description: "List all reminders, optionally include completed ones (true/false)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"include_completed": str("Set to \"true\" to include completed reminders"),
			},
		},
	}, s.handleList)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "get_upcoming_reminders",
		Description: "Get reminders due within the next N hours (default 24)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"hours": str("Size of the time window in hours"),
			},
		},
	}, s.handleUpcoming)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "check_overdue_reminders",
		Description: "Check for overdue reminders that need immediate attention",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleOverdue)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "complete_reminder",
		Description: "Mark a reminder as completed by its ID",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"reminder_id": str("ID of the reminder"),
			},
			Required: []string{"reminder_id"},
		},
	}, s.handleComplete)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "delete_reminder",
		Description: "Delete a reminder by its ID",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"reminder_id": str("ID of the reminder"),
			},
			Required: []string{"reminder_id"},
		},
	}, s.handleDelete)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "search_reminders",
		Description: "Search reminders by title or description",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": str("Substring to search for, case-insensitive"),
			},
			Required: []string{"query"},
		},
	}, s.handleSearch)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "get_reminder_stats",
		Description: "Get statistics about all reminders",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleStats)
}

func (s *Server) handleAdd(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return failure(err.Error()), nil
	}
	dtStr, err := request.RequireString("datetime_str")
	if err != nil {
		return failure(err.Error()), nil
	}
	description := request.GetString("description", "")

	due, err := parseDateTime(dtStr)
	if err != nil {
		return failure(err.Error()), nil
	}

	r, err := s.store.Add(title, description, due)
	if err != nil {
		return failure(err.Error()), nil
	}
	s.log.Infof("added reminder %s - %s", r.ID, r.Title)

	return jsonResult(map[string]interface{}{
		"success":  true,
		"message":  "Reminder added successfully",
		"reminder": r,
	})
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	includeCompleted := request.GetString("include_completed", "false") == "true"

	rs := s.store.List(includeCompleted)
	if len(rs) == 0 {
		return jsonResult(map[string]interface{}{
			"success":   true,
			"message":   "No reminders found",
			"reminders": []Reminder{},
		})
	}
	return jsonResult(map[string]interface{}{
		"success":   true,
		"count":     len(rs),
		"reminders": rs,
	})
}

func (s *Server) handleUpcoming(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hoursStr := request.GetString("hours", "24")
	hours, err := strconv.Atoi(hoursStr)
	if err != nil {
		return failure("Hours must be a valid number"), nil
	}

	rs := s.store.Upcoming(time.Duration(hours) * time.Hour)
	if rs == nil {
		rs = []Reminder{}
	}
	return jsonResult(map[string]interface{}{
		"success":           true,
		"count":             len(rs),
		"time_window_hours": hours,
		"reminders":         rs,
	})
}

func (s *Server) handleOverdue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rs := s.store.Overdue()
	if len(rs) == 0 {
		return jsonResult(map[string]interface{}{
			"success":   true,
			"message":   "No overdue reminders",
			"reminders": []Reminder{},
		})
	}
	return jsonResult(map[string]interface{}{
		"success":   true,
		"count":     len(rs),
		"message":   fmt.Sprintf("ALERT: You have %d overdue reminder(s)!", len(rs)),
		"reminders": rs,
	})
}

func (s *Server) handleComplete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("reminder_id")
	if err != nil {
		return failure(err.Error()), nil
	}

	r, err := s.store.Complete(id)
	if err != nil {
		return failure(err.Error()), nil
	}
	s.log.Infof("completed reminder %s", id)

	return jsonResult(map[string]interface{}{
		"success":  true,
		"message":  "Reminder marked as completed",
		"reminder": r,
	})
}

func (s *Server) handleDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("reminder_id")
	if err != nil {
		return failure(err.Error()), nil
	}

	r, err := s.store.Delete(id)
	if err != nil {
		return failure(err.Error()), nil
	}
	s.log.Infof("deleted reminder %s", id)

	return jsonResult(map[string]interface{}{
		"success":          true,
		"message":          "Reminder deleted successfully",
		"deleted_reminder": r,
	})
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return failure(err.Error()), nil
	}

	rs := s.store.Search(query)
	if len(rs) == 0 {
		return jsonResult(map[string]interface{}{
			"success":   true,
			"message":   fmt.Sprintf("No reminders found matching %q", query),
			"reminders": []Reminder{},
		})
	}
	return jsonResult(map[string]interface{}{
		"success":   true,
		"count":     len(rs),
		"query":     query,
		"reminders": rs,
	})
}

func (s *Server) handleStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]interface{}{
		"success": true,
		"stats":   s.store.Stats(),
	})
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %s", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func failure(msg string) *mcp.CallToolResult {
	b, _ := json.MarshalIndent(map[string]interface{}{
		"success": false,
		"error":   msg,
	}, "", "  ")
	return mcp.NewToolResultText(string(b))
}
