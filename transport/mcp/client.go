package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"
	"github.com/wricardo/arena-relay/game/relay"
	"github.com/wricardo/arena-relay/transport/console"
)

const (
	ServerName    = "Arena Relay"
	ServerVersion = "1.0.0"
)

// Client is a thin MCP client that proxies to the REST admin API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API. token is sent
// as a bearer token on admin calls.
func NewClient(baseURL, token string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(true),
		server.WithInstructions(`Arena Relay - MCP Interface

Operator tools for a running multiplayer relay server. Every call is proxied
to the server's REST admin API.

AVAILABLE TOOLS:
- server_status: uptime, room and game player counts, items, memory
- list_players: players waiting in the room and players in the game
- stop_server: send server_shutdown to every player and stop the server
- console_help: commands accepted by the server's stdin console`),
	)

	c.registerTools()
}

func (c *Client) registerTools() {
	empty := mcp.ToolInputSchema{
		Type:       "object",
		Properties: map[string]interface{}{},
	}

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "server_status",
		Description: "Get uptime, player counts, spawned items and memory usage",
		InputSchema: empty,
	}, c.handleServerStatus)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_players",
		Description: "List players in the room and in the active game",
		InputSchema: empty,
	}, c.handleListPlayers)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "stop_server",
		Description: "Notify every player and shut the relay server down",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"reason": map[string]interface{}{
					"type":        "string",
					"description": "Why the server is being stopped (logged by the server)",
				},
			},
		},
	}, c.handleStopServer)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "console_help",
		Description: "List the commands accepted by the server console",
		InputSchema: empty,
	}, c.handleConsoleHelp)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// ServeHTTP handles one JSON-RPC message per POST request
func (c *Client) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	response := c.mcpServer.HandleMessage(r.Context(), body)

	w.Header().Set("Content-Type", "application/json")
	responseData, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Write(responseData)
}

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func (c *Client) handleServerStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var st relay.Status
	if err := c.apiCall(ctx, http.MethodGet, "/api/status", nil, &st); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatStatus(&st)), nil
}

func (c *Client) handleListPlayers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var roster relay.Roster
	if err := c.apiCall(ctx, http.MethodGet, "/api/players", nil, &roster); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRoster(&roster)), nil
}

func (c *Client) handleStopServer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reason, _ := request.GetArguments()["reason"].(string)

	body := map[string]string{}
	if reason != "" {
		body["reason"] = reason
	}

	if err := c.apiCall(ctx, http.MethodPost, "/api/shutdown", body, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	log.Info().Str("reason", reason).Msg("stop requested over MCP")
	return mcp.NewToolResultText("Shutdown requested. Connected players were notified."), nil
}

func (c *Client) handleConsoleHelp(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var sb strings.Builder
	sb.WriteString("Console commands:\n")
	for _, cmd := range console.Commands {
		fmt.Fprintf(&sb, "  %-8s %s\n", cmd.Name, cmd.Help)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func formatStatus(st *relay.Status) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Uptime: %s\n", st.Uptime)
	fmt.Fprintf(&sb, "Room: %d\n", st.RoomPlayers)
	fmt.Fprintf(&sb, "Active: %d/%d\n", st.ActivePlayers, st.MaxPlayers)
	fmt.Fprintf(&sb, "Connections: %d\n", st.Connections)
	fmt.Fprintf(&sb, "Items: %d (spawning: %t)\n", st.Items, st.Spawning)
	fmt.Fprintf(&sb, "Memory: %d MB\n", st.MemoryMB)
	return sb.String()
}

func formatRoster(r *relay.Roster) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Room (%d):\n", len(r.Room))
	for _, m := range r.Room {
		ready := "waiting"
		if m.Ready {
			ready = "ready"
		}
		fmt.Fprintf(&sb, "- %s [%s] %s\n", m.Name, m.ID, ready)
	}

	fmt.Fprintf(&sb, "\nActive (%d/%d):\n", len(r.Active), r.MaxPlayers)
	for _, p := range r.Active {
		fmt.Fprintf(&sb, "- %s [%s] at (%.0f, %.0f)\n", p.Name, p.ID, p.Position.X, p.Position.Y)
	}

	return sb.String()
}
