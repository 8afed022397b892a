// Package api provides the HTTP surface of the relay server.
//
// Endpoints:
//   - GET /ws - WebSocket upgrade for game clients
//   - GET /healthz - liveness probe
//   - GET /version - server name and version
//   - GET /api/status - uptime, player counts, items, memory
//   - GET /api/players - room members and active players
//   - POST /api/shutdown - notify clients and stop (admin bearer token)
//   - GET /qr - PNG QR code of the public WebSocket URL
//   - POST /mcp - MCP JSON-RPC endpoint
//
// The admin endpoint is disabled (403) unless an admin token is configured.
// Read endpoints are open.
package api
