package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/erauner12/notarium-bridge/internal/errs"
	"github.com/erauner12/notarium-bridge/internal/tools"
)

const (
	protocolName    = "notarium-bridge"
	protocolVersion = "0.1.0"
	mcpProtocolDate = "2024-11-05"

	maxLineBytes = 10 << 20 // 10MiB, generous headroom over any plausible save_note payload
)

// ErrExit is returned by Run when an "exit" notification ends the session
// cleanly; callers should treat it the same as a nil error.
var ErrExit = errors.New("rpc: exit requested")

// Server reads line-delimited JSON-RPC requests from stdin and writes
// line-delimited responses to stdout, dispatching tools/list and tools/call
// against a tools.Registry.
type Server struct {
	registry *tools.Registry
	toolCtx  *tools.Context
	logger   zerolog.Logger

	out   io.Writer
	outMu sync.Mutex
}

func NewServer(registry *tools.Registry, toolCtx *tools.Context, out io.Writer, logger zerolog.Logger) *Server {
	return &Server{registry: registry, toolCtx: toolCtx, out: out, logger: logger}
}

// Run reads requests from in, one JSON value per line, until in reaches
// EOF, an "exit" notification is received, or ctx is found cancelled when
// the next line arrives. A read blocked on in is not interrupted by ctx.
func (s *Server) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := s.handleLine(ctx, line); err != nil {
			if errors.Is(err, ErrExit) {
				return nil
			}
			return err
		}
	}
	return scanner.Err()
}

func (s *Server) handleLine(ctx context.Context, line string) error {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		s.write(newError(nil, CodeParseError, "invalid JSON", nil))
		return nil
	}
	if req.JSONRPC != JSONRPCVersion {
		s.write(newError(req.ID, CodeInvalidRequest, "invalid jsonrpc version", nil))
		return nil
	}

	resp, exit := s.dispatch(ctx, req)
	if req.isNotification() {
		return exit
	}
	s.write(resp)
	return exit
}

func (s *Server) dispatch(ctx context.Context, req Request) (Response, error) {
	switch req.Method {
	case "initialize":
		return newResult(req.ID, initializeResult()), nil

	case "notifications/initialized":
		s.logger.Debug().Msg("client reported initialized")
		return Response{}, nil

	case "shutdown":
		return newResult(req.ID, nil), nil

	case "exit":
		return Response{}, ErrExit

	case "tools/list":
		return newResult(req.ID, map[string]any{"tools": s.registry.List()}), nil

	case "tools/call":
		return s.handleToolsCall(ctx, req), nil

	default:
		return newError(req.ID, CodeMethodNotFound, "method not found: "+req.Method, nil), nil
	}
}

func (s *Server) handleToolsCall(ctx context.Context, req Request) Response {
	var callReq tools.CallRequest
	if err := json.Unmarshal(req.Params, &callReq); err != nil {
		return newError(req.ID, CodeInvalidParams, "invalid tools/call parameters", nil)
	}

	result, err := s.registry.Call(ctx, s.toolCtx, callReq)
	if err != nil {
		if e, ok := errs.As(err); ok {
			code, message, data := e.ToJSONRPC()
			return newError(req.ID, code, message, data)
		}
		return newError(req.ID, CodeInternalError, err.Error(), nil)
	}
	return newResult(req.ID, result)
}

func initializeResult() map[string]any {
	return map[string]any{
		"protocolVersion": mcpProtocolDate,
		"capabilities": map[string]any{
			"tools": map[string]any{
				"list":   true,
				"get":    true,
				"save":   true,
				"manage": true,
			},
		},
		"serverInfo": map[string]any{"name": protocolName, "version": protocolVersion},
	}
}

func (s *Server) write(resp Response) {
	if resp.JSONRPC == "" {
		return // notification: nothing to write
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to marshal response")
		return
	}

	s.outMu.Lock()
	defer s.outMu.Unlock()
	s.out.Write(payload)
	s.out.Write([]byte("\n"))
}
