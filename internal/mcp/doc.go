// Package mcp serves the agent loop to MCP hosts over stdio.
//
// Tools registered: process_message, approve_tools, reject_tools,
// run_state and list_tools. Each returns the run (or catalog) both as
// structured content and as JSON text for hosts that only read text.
package mcp
