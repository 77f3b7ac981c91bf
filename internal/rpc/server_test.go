package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/erauner12/notarium-bridge/internal/backend"
	"github.com/erauner12/notarium-bridge/internal/cache"
	"github.com/erauner12/notarium-bridge/internal/tools"
)

func newTestServer(t *testing.T) (*Server, *bytes.Buffer) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	store, _, err := cache.Open(path, cache.Config{Username: "alice"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	toolCtx := tools.NewContext(store, backend.NewFakeClient(), "bucket")
	registry := tools.RegisterAll()

	var out bytes.Buffer
	return NewServer(registry, toolCtx, &out, zerolog.Nop()), &out
}

func decodeResponses(t *testing.T, out *bytes.Buffer) []Response {
	t.Helper()
	var responses []Response
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var resp Response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("decode response line %q: %v", line, err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func TestServer_InitializeReturnsServerInfo(t *testing.T) {
	s, out := newTestServer(t)
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}` + "\n")

	if err := s.Run(context.Background(), in); err != nil {
		t.Fatalf("run: %v", err)
	}

	responses := decodeResponses(t, out)
	if len(responses) != 1 || responses[0].Error != nil {
		t.Fatalf("unexpected responses: %+v", responses)
	}
	var body struct {
		ProtocolVersion string `json:"protocolVersion"`
		Capabilities    struct {
			Tools map[string]bool `json:"tools"`
		} `json:"capabilities"`
	}
	if err := json.Unmarshal(responses[0].Result, &body); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if body.ProtocolVersion != mcpProtocolDate {
		t.Errorf("expected protocolVersion %q, got %q", mcpProtocolDate, body.ProtocolVersion)
	}
	for _, name := range []string{"list", "get", "save", "manage"} {
		if !body.Capabilities.Tools[name] {
			t.Errorf("expected capabilities.tools.%s to be true", name)
		}
	}
}

func TestServer_ShutdownReturnsNullResult(t *testing.T) {
	s, out := newTestServer(t)
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"shutdown"}` + "\n")

	if err := s.Run(context.Background(), in); err != nil {
		t.Fatalf("run: %v", err)
	}
	responses := decodeResponses(t, out)
	if len(responses) != 1 || string(responses[0].Result) != "null" {
		t.Fatalf("expected a null result, got %+v", responses)
	}
}

func TestServer_NotificationGetsNoResponse(t *testing.T) {
	s, out := newTestServer(t)
	in := strings.NewReader(`{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n")

	if err := s.Run(context.Background(), in); err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output for a notification, got %q", out.String())
	}
}

func TestServer_ExitStopsTheLoop(t *testing.T) {
	s, out := newTestServer(t)
	in := strings.NewReader(`{"jsonrpc":"2.0","method":"exit"}` + "\n" + `{"jsonrpc":"2.0","id":1,"method":"tools/list"}` + "\n")

	if err := s.Run(context.Background(), in); err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected exit to stop processing before tools/list, got %q", out.String())
	}
}

func TestServer_ToolsListReturnsFourTools(t *testing.T) {
	s, out := newTestServer(t)
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}` + "\n")

	if err := s.Run(context.Background(), in); err != nil {
		t.Fatalf("run: %v", err)
	}

	responses := decodeResponses(t, out)
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	var body struct {
		Tools []tools.Descriptor `json:"tools"`
	}
	if err := json.Unmarshal(responses[0].Result, &body); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(body.Tools) != 4 {
		t.Errorf("expected 4 tools, got %d", len(body.Tools))
	}
}

func TestServer_ToolsCallSaveNote(t *testing.T) {
	s, out := newTestServer(t)
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"save_note","arguments":{"text":"hello"}}}` + "\n")

	if err := s.Run(context.Background(), in); err != nil {
		t.Fatalf("run: %v", err)
	}

	responses := decodeResponses(t, out)
	if len(responses) != 1 || responses[0].Error != nil {
		t.Fatalf("unexpected responses: %+v", responses)
	}
}

func TestServer_UnknownMethodReturnsMethodNotFound(t *testing.T) {
	s, out := newTestServer(t)
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"does/not-exist"}` + "\n")

	if err := s.Run(context.Background(), in); err != nil {
		t.Fatalf("run: %v", err)
	}

	responses := decodeResponses(t, out)
	if len(responses) != 1 || responses[0].Error == nil || responses[0].Error.Code != CodeMethodNotFound {
		t.Fatalf("unexpected responses: %+v", responses)
	}
}
