package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/erauner12/notarium-bridge/internal/errs"
)

// Registry dispatches tools/call requests by name, preserving registration
// order for tools/list responses.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	ordering []string
}

type entry struct {
	def     Definition
	handler Handler
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

func (r *Registry) MustRegister(def Definition, handler Handler) {
	if def.Name == "" {
		panic("tool name cannot be empty")
	}
	if handler == nil {
		panic(fmt.Sprintf("tool %s: nil handler", def.Name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[def.Name]; exists {
		panic(fmt.Sprintf("tool %s already registered", def.Name))
	}
	r.entries[def.Name] = &entry{def: def, handler: handler}
	r.ordering = append(r.ordering, def.Name)
}

func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.ordering))
	for _, name := range r.ordering {
		e := r.entries[name]
		out = append(out, Descriptor{Name: e.def.Name, Description: e.def.Description, InputSchema: e.def.InputSchema})
	}
	return out
}

// Call executes a registered tool and wraps its result in the agent
// protocol's content-block envelope. A handler error is returned as-is,
// not wrapped in the envelope.
func (r *Registry) Call(ctx context.Context, toolCtx *Context, req CallRequest) (CallResult, error) {
	r.mu.RLock()
	e, exists := r.entries[req.Name]
	r.mu.RUnlock()

	if !exists {
		return CallResult{}, errs.NewValidation("name", fmt.Sprintf("unknown tool: %s", req.Name))
	}

	result, err := e.handler(ctx, toolCtx, req.Arguments)
	if err != nil {
		return CallResult{}, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return CallResult{}, errs.NewInternal("failed to serialize tool result", err)
	}

	return CallResult{Content: []ContentBlock{{Type: "text", Text: string(payload)}}}, nil
}
