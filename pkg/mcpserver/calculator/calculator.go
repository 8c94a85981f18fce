// Package calculator provides a small MCP server with arithmetic tools.
// It doubles as a local server relay can be pointed at for trying out the
// MCP integration end to end.
package calculator

import (
	"context"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SumInput is the input for the sum tool.
type SumInput struct {
	Numbers []float64 `json:"numbers" jsonschema:"the numbers to add"`
}

// NewServer creates an MCP server exposing the calculator tools.
func NewServer() *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    "calculator",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "sum",
		Description: "Calculates the sum of an array of numbers",
	}, Sum)

	return s
}

// Sum handles the sum tool call.
func Sum(_ context.Context, _ *mcp.CallToolRequest, input SumInput) (*mcp.CallToolResult, any, error) {
	var total float64
	for _, n := range input.Numbers {
		total += n
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: formatFloat(total)}},
	}, nil, nil
}

// formatFloat formats a float64 as a string, removing trailing zeros.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
