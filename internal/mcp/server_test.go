package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/testcase-generator/internal/agent/parser"
	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/internal/service/testcase"
	"github.com/feichai0017/testcase-generator/pkg/logger"
)

type fakeRunner struct {
	docs []models.Document
	err  error
}

func (f *fakeRunner) Run(_ context.Context, docs []models.Document) (*testcase.Result, error) {
	f.docs = docs
	if f.err != nil {
		return nil, f.err
	}
	return &testcase.Result{
		Reply:    "TC01 | a | b | c | d",
		Records:  []models.TestCaseRecord{models.NewTestCaseRecord("TC01", "a", "b", "c", "d")},
		Artifact: []byte("artifact"),
	}, nil
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func newServer(r Runner) *Server {
	return NewServer(r, parser.NewResponseParser(logger.NewNop()), logger.NewNop())
}

func TestGenerateTool(t *testing.T) {
	runner := &fakeRunner{}
	out := filepath.Join(t.TempDir(), "cases.xlsx")

	res, err := newServer(runner).handleGenerate(context.Background(), call(map[string]any{
		"paths":  []any{"/docs/spec.pdf", "/docs/login.png"},
		"output": out,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	require.Len(t, runner.docs, 2)
	assert.Equal(t, models.Document{Name: "spec.pdf", Path: "/docs/spec.pdf"}, runner.docs[0])

	var records []models.TestCaseRecord
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &records))
	assert.Equal(t, "TC01", records[0].ID)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "artifact", string(data))
}

func TestGenerateToolErrors(t *testing.T) {
	res, err := newServer(&fakeRunner{}).handleGenerate(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = newServer(&fakeRunner{err: errors.New("boom")}).handleGenerate(context.Background(),
		call(map[string]any{"paths": "a.pdf"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "boom")
}

func TestParseTool(t *testing.T) {
	res, err := newServer(&fakeRunner{}).handleParse(context.Background(), call(map[string]any{
		"reply": "TC01 | Login | none | open | ok\nbad | line\n",
	}))
	require.NoError(t, err)

	var records []models.TestCaseRecord
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "Not yet executed", records[0].Status)
	assert.Equal(t, "-", records[0].Comments)

	res, err = newServer(&fakeRunner{}).handleParse(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestStringList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, stringList([]any{"a", " ", "b", 3}))
	assert.Equal(t, []string{"a", "b"}, stringList("a, b,"))
	assert.Nil(t, stringList(nil))
}

func TestMCPServerBuilds(t *testing.T) {
	assert.NotNil(t, newServer(&fakeRunner{}).MCPServer())
}
