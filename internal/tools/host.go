package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nabu-app/nabu/internal/engine"
	"github.com/nabu-app/nabu/pkg/provider/llm"
)

// toolEntry holds the registry metadata for a single tool.
type toolEntry struct {
	def        llm.ToolDefinition
	serverName string

	// builtinFn is non-nil for in-process tools registered via RegisterBuiltin.
	builtinFn func(ctx context.Context, args string) (string, error)
}

// serverConn holds a live connection to an external MCP server.
type serverConn struct {
	session *mcpsdk.ClientSession
}

// builtinServerName is the pseudo server name used for in-process tools.
const builtinServerName = "__builtin__"

// Host is the concrete tool registry handed to the engine. It manages
// built-in Go tools and connections to external MCP servers behind a single
// name-keyed registry.
//
// The zero value is NOT usable; create instances with [NewHost].
type Host struct {
	mu      sync.RWMutex
	tools   map[string]toolEntry  // key: tool name
	servers map[string]serverConn // key: server name

	// client is reused across all server connections. The official SDK allows
	// a single Client to manage multiple sessions concurrently.
	client *mcpsdk.Client
}

// Compile-time check: Host must satisfy the engine's tool contract.
var _ engine.ToolHost = (*Host)(nil)

// NewHost creates and returns a ready-to-use Host with an empty registry.
func NewHost() *Host {
	client := mcpsdk.NewClient(
		&mcpsdk.Implementation{Name: "nabu-tools", Version: "1.0.0"},
		nil,
	)
	return &Host{
		tools:   make(map[string]toolEntry),
		servers: make(map[string]serverConn),
		client:  client,
	}
}

// RegisterBuiltin adds an in-process tool to the registry. If a tool with the
// same name is already registered it is replaced.
//
// RegisterBuiltin is safe for concurrent use.
func (h *Host) RegisterBuiltin(b Builtin) error {
	if b.Definition.Name == "" {
		return fmt.Errorf("tools: builtin must have a non-empty name")
	}
	if b.Handler == nil {
		return fmt.Errorf("tools: builtin %q must have a non-nil handler", b.Definition.Name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.tools[b.Definition.Name] = toolEntry{
		def:        b.Definition,
		serverName: builtinServerName,
		builtinFn:  b.Handler,
	}
	return nil
}

// RegisterServer connects to the MCP server described by cfg and imports its
// tool catalogue into the registry. If a server with the same Name is already
// registered, the old connection is closed and replaced.
//
// For [TransportStdio]: cfg.Command is split on spaces into executable + args;
// cfg.Env entries are added on top of the current process environment.
//
// For [TransportStreamableHTTP]: cfg.URL is the endpoint address.
//
// Returns an error if the transport cannot be established or the initial tool
// listing fails.
func (h *Host) RegisterServer(ctx context.Context, cfg ServerConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("tools: server config must have a non-empty name")
	}
	if !cfg.Transport.IsValid() {
		return fmt.Errorf("tools: unknown transport %q for server %q", cfg.Transport, cfg.Name)
	}

	var transport mcpsdk.Transport

	switch cfg.Transport {
	case TransportStdio:
		executable, args := splitCommand(cfg.Command)
		if executable == "" {
			return fmt.Errorf("tools: stdio server %q requires a non-empty Command", cfg.Name)
		}
		cmd := exec.CommandContext(ctx, executable, args...)
		if len(cfg.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range cfg.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		transport = &mcpsdk.CommandTransport{Command: cmd}

	case TransportStreamableHTTP:
		if cfg.URL == "" {
			return fmt.Errorf("tools: streamable-http server %q requires a non-empty URL", cfg.Name)
		}
		transport = &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}
	}

	session, err := h.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("tools: failed to connect to server %q: %w", cfg.Name, err)
	}

	// Discover tools using the iterator.
	var discovered []mcpsdk.Tool
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			_ = session.Close()
			return fmt.Errorf("tools: failed to list tools for server %q: %w", cfg.Name, err)
		}
		discovered = append(discovered, *tool)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Close the old connection if it exists, dropping its tools.
	if old, ok := h.servers[cfg.Name]; ok {
		_ = old.session.Close()
		for name, t := range h.tools {
			if t.serverName == cfg.Name {
				delete(h.tools, name)
			}
		}
	}

	h.servers[cfg.Name] = serverConn{session: session}

	for _, mcpTool := range discovered {
		h.tools[mcpTool.Name] = toolEntry{
			def: llm.ToolDefinition{
				Name:        mcpTool.Name,
				Description: mcpTool.Description,
				Parameters:  schemaToMap(mcpTool.InputSchema),
			},
			serverName: cfg.Name,
		}
	}

	return nil
}

// AvailableTools returns the definitions of every registered tool, sorted by
// name so repeated calls present the model a stable listing.
func (h *Host) AvailableTools() []llm.ToolDefinition {
	h.mu.RLock()
	defs := make([]llm.ToolDefinition, 0, len(h.tools))
	for _, e := range h.tools {
		defs = append(defs, e.def)
	}
	h.mu.RUnlock()

	slices.SortFunc(defs, func(a, b llm.ToolDefinition) int {
		return strings.Compare(a.Name, b.Name)
	})
	return defs
}

// ExecuteTool calls the named tool with JSON-encoded args and returns its
// textual result. name must exactly match a [llm.ToolDefinition.Name]
// returned by [Host.AvailableTools].
//
// args must be a valid JSON object string. An empty object ("{}") is valid
// for parameter-less tools.
func (h *Host) ExecuteTool(ctx context.Context, name string, args string) (string, error) {
	h.mu.RLock()
	entry, ok := h.tools[name]
	h.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("tools: tool %q not found", name)
	}

	if entry.builtinFn != nil {
		return entry.builtinFn(ctx, args)
	}
	return h.executeMCPTool(ctx, entry, args)
}

// executeMCPTool routes the call to the appropriate server session.
func (h *Host) executeMCPTool(ctx context.Context, entry toolEntry, args string) (string, error) {
	h.mu.RLock()
	conn, ok := h.servers[entry.serverName]
	h.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("tools: server %q not found for tool %q", entry.serverName, entry.def.Name)
	}

	// Decode args into a map for the SDK.
	var argsMap map[string]any
	if args != "" && args != "{}" {
		if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
			return "", fmt.Errorf("tools: invalid args JSON for tool %q: %w", entry.def.Name, err)
		}
	}

	callResult, err := conn.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      entry.def.Name,
		Arguments: argsMap,
	})
	if err != nil {
		return "", fmt.Errorf("tools: call to tool %q failed: %w", entry.def.Name, err)
	}

	// Concatenate all text content from the result.
	var sb strings.Builder
	for _, c := range callResult.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}

	if callResult.IsError {
		msg := sb.String()
		if msg == "" {
			msg = "tool reported an error"
		}
		return "", fmt.Errorf("tools: %s: %s", entry.def.Name, msg)
	}
	return sb.String(), nil
}

// Close shuts down all server connections and empties the registry. After
// Close returns the Host must not be used again.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	for name, conn := range h.servers {
		if err := conn.session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("tools: error closing server %q: %w", name, err)
		}
		delete(h.servers, name)
	}

	h.tools = make(map[string]toolEntry)

	return firstErr
}

// splitCommand splits a command string into executable and arguments.
// e.g. "/bin/foo --bar baz" → ("/bin/foo", ["--bar", "baz"]).
func splitCommand(command string) (executable string, args []string) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}

// schemaToMap converts any schema value to a map[string]any.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object"}
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}
