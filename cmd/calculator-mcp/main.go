// Command calculator-mcp runs the calculator MCP server over stdio.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/relay-ai/relay/pkg/mcpserver/calculator"
)

func main() {
	if err := calculator.NewServer().Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
