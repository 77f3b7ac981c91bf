// Package tools implements the four agent-facing operations (§4.6-§4.8):
// list_notes, get_note, save_note, manage_notes. Each is registered as a
// named handler in a Registry, adapted from the bridge's original
// generic-entity tool registry into a notes-specific one.
package tools

import (
	"context"
	"encoding/json"
)

// Definition describes a tool with its name, description, and input schema.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Handler processes a tool invocation against the shared Context.
type Handler func(context.Context, *Context, json.RawMessage) (any, error)

// Descriptor is returned by tools/list.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// CallRequest is the decoded form of a tools/call request.
type CallRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CallResult wraps a tool's result in the agent protocol's content-block
// envelope.
type CallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}
