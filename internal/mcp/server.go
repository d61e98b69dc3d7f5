// Package mcp exposes test-case generation as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/internal/service/testcase"
	"github.com/feichai0017/testcase-generator/pkg/logger"
)

const (
	ServerName    = "qagen"
	ServerVersion = "0.1.0"
)

// Runner is the local pipeline the generate tool drives.
type Runner interface {
	Run(ctx context.Context, docs []models.Document) (*testcase.Result, error)
}

type Server struct {
	runner Runner
	parser testcase.ReplyParser
	logger logger.Logger
}

func NewServer(runner Runner, parser testcase.ReplyParser, log logger.Logger) *Server {
	return &Server{runner: runner, parser: parser, logger: log}
}

// MCPServer registers the tools on a fresh MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer(ServerName, ServerVersion, server.WithLogging())

	srv.AddTool(
		mcp.NewTool(
			"generate_test_cases",
			mcp.WithDescription("Generate QA test cases from local PDF, DOCX, PNG or JPG requirement documents."),
			mcp.WithArray("paths", mcp.Required(), mcp.Description("Document paths, processed in the given order")),
			mcp.WithString("output", mcp.Description("Optional path to write the export artifact to")),
		),
		s.handleGenerate,
	)

	srv.AddTool(
		mcp.NewTool(
			"parse_test_cases",
			mcp.WithDescription("Parse pipe-delimited model output into test case records."),
			mcp.WithString("reply", mcp.Required(), mcp.Description("Raw model output, one test case per line")),
		),
		s.handleParse,
	)
	return srv
}

// ServeStdio blocks serving MCP on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("Starting MCP server on stdio")
	return server.ServeStdio(s.MCPServer())
}

func (s *Server) handleGenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	paths := stringList(args["paths"])
	if len(paths) == 0 {
		return mcp.NewToolResultError("paths argument required"), nil
	}

	docs := make([]models.Document, len(paths))
	for i, p := range paths {
		docs[i] = models.Document{Name: filepath.Base(p), Path: p}
	}

	res, err := s.runner.Run(ctx, docs)
	if err != nil {
		s.logger.Warn("generate_test_cases failed", logger.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("generation failed: %v", err)), nil
	}

	if out, _ := args["output"].(string); out != "" {
		if err := os.WriteFile(out, res.Artifact, 0o644); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to write %s: %v", out, err)), nil
		}
	}
	return recordsResult(res.Records)
}

func (s *Server) handleParse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reply, ok := request.GetArguments()["reply"].(string)
	if !ok {
		return mcp.NewToolResultError("reply argument required"), nil
	}
	return recordsResult(s.parser.Parse(reply))
}

func recordsResult(records []models.TestCaseRecord) (*mcp.CallToolResult, error) {
	if records == nil {
		records = []models.TestCaseRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal records: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// stringList accepts a JSON array of strings or a single comma separated string.
func stringList(v any) []string {
	var out []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range t {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
