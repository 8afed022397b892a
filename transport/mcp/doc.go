// Package mcp exposes the relay's operator commands as Model Context Protocol
// tools.
//
// The Client is a thin proxy: every tool calls the REST admin API of a
// running server, so the same tool set works over stdio against a remote
// process and over HTTP at /mcp on the server itself.
//
// Tools:
//   - server_status: uptime, player counts, memory
//   - list_players: room members and active players
//   - stop_server: notify clients and shut the server down (admin token)
//   - console_help: the operator console command list
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080", adminToken)
//	server.ServeStdio(client.GetMCPServer())
//
//	router.Handle("/mcp", client)
package mcp
