// Package tools implements the tool registry offered to the tutoring model.
//
// A [Host] holds two kinds of tools behind one registry: built-ins implemented
// as Go functions that run in-process, and tools imported from external MCP
// servers reached over stdio or streamable-HTTP via the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk). The engine sees both through the
// same two calls — AvailableTools lists definitions for the completion
// request, ExecuteTool dispatches a call the model made.
//
// Typical usage:
//
//	h := tools.NewHost()
//
//	// Register the built-in curriculum and note tools.
//	for _, b := range tools.CurriculumTools(catalog) {
//	    err := h.RegisterBuiltin(b)
//	}
//
//	// Register an external MCP server.
//	err := h.RegisterServer(ctx, tools.ServerConfig{
//	    Name:      "dictionary",
//	    Transport: tools.TransportStdio,
//	    Command:   "/usr/local/bin/mcp-dictionary",
//	})
//
//	// Execute a tool the model requested.
//	out, err := h.ExecuteTool(ctx, "lookup_word", `{"word":"gato","language":"es"}`)
//
//	// Shut down when done.
//	h.Close()
package tools

import (
	"context"

	"github.com/nabu-app/nabu/pkg/provider/llm"
)

// Transport identifies how the host reaches an external MCP server.
type Transport string

const (
	// TransportStdio launches the server as a subprocess and speaks MCP over
	// its stdin/stdout.
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP connects to a server over the MCP
	// streamable-HTTP transport.
	TransportStreamableHTTP Transport = "streamable-http"
)

// IsValid reports whether t is a known transport.
func (t Transport) IsValid() bool {
	switch t {
	case TransportStdio, TransportStreamableHTTP:
		return true
	}
	return false
}

// ServerConfig describes one external MCP server to register with the host.
type ServerConfig struct {
	// Name uniquely identifies the server within the host. Registering a
	// second server under the same name replaces the first.
	Name string

	// Transport selects stdio or streamable-http.
	Transport Transport

	// Command is the full command line for stdio servers, split on spaces
	// into executable + args.
	Command string

	// URL is the endpoint address for streamable-http servers.
	URL string

	// Env holds additional environment variables passed to stdio servers.
	Env map[string]string
}

// Builtin is a tool implemented as a Go function that runs in-process.
// Built-ins bypass MCP protocol overhead: ExecuteTool calls the Handler
// directly without any subprocess or network round-trip.
type Builtin struct {
	// Definition is the tool's LLM-facing schema including its name,
	// description, and JSON Schema parameter specification.
	Definition llm.ToolDefinition

	// Handler executes the tool with a JSON object string as args (e.g. "{}"
	// or `{"word":"gato"}`) and returns a JSON-encoded result. Implementations
	// must be safe for concurrent use and must respect context cancellation.
	Handler func(ctx context.Context, args string) (string, error)
}
