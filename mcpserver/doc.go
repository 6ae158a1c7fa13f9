// Package mcpserver exposes a capability database as Model Context Protocol
// tools: capability_search, capability_register, capability_get and
// capability_disable. Handlers report caller mistakes as tool errors
// (IsError results) and reserve Go errors for protocol failures.
package mcpserver
