// Package mcpserver exposes the query pipeline as a single MCP tool so
// IDE/agent clients can ask case-document questions the same way the HTTP
// API answers them.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

const toolName = "ask_tax_case_question"

// New builds the MCP server wrapping queryService behind one tool call.
func New(queryService ports.QueryService, logger *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("tax-case-qa", "1.0.0",
		server.WithToolCapabilities(false),
	)

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("Answer a question about tax-audit case documents, citing the source findings and technique sections it is grounded on."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The natural-language question, in Korean, about a tax-audit case."),
		),
	)

	s.AddTool(tool, handleAskTaxCaseQuestion(queryService, logger))
	return s
}

func handleAskTaxCaseQuestion(queryService ports.QueryService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := request.RequireString("question")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		answer, err := queryService.RunQuery(ctx, question)
		if err != nil {
			logger.Error("mcp_tool_failed", "tool", toolName, "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(answer), nil
	}
}

// ServeStdio runs the MCP server over stdio until ctx is cancelled or the
// transport closes.
func ServeStdio(ctx context.Context, s *server.MCPServer) error {
	return server.ServeStdio(s, server.WithStdioContextFunc(func(context.Context) context.Context {
		return ctx
	}))
}

// ServeSSE runs the MCP server over HTTP+SSE on addr, for clients that can't
// spawn a stdio subprocess. It starts the listener in a background goroutine
// and returns immediately; the caller stops it with the returned server's
// Shutdown. A listener error is discarded.
func ServeSSE(s *server.MCPServer, addr string) *server.SSEServer {
	sse := server.NewSSEServer(s)
	go func() {
		_ = sse.Start(addr)
	}()
	return sse
}
