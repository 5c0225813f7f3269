// Package mcp serves registered tools over the Model Context Protocol's
// stdio JSON-RPC transport.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/toolpipe/toolpipe/pkg/pipeline"
)

const protocolVersion = "2024-11-05"

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id,omitempty"`
}

type response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type callParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type callResult struct {
	Content []contentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// Server answers MCP requests against a tool pipeline. Tool failures are
// reported as tool results with isError set; only malformed requests become
// JSON-RPC protocol errors.
type Server struct {
	pipeline *pipeline.Pipeline
	name     string
	version  string

	writeMu sync.Mutex
	out     io.Writer
}

// NewServer creates an MCP server over a pipeline.
func NewServer(p *pipeline.Pipeline, name, version string) *Server {
	return &Server{
		pipeline: p,
		name:     name,
		version:  version,
	}
}

// Serve reads newline-delimited JSON-RPC requests from in and writes
// responses to out until in is exhausted or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.out = out

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeError(nil, codeParseError, "parse error", err.Error())
			continue
		}

		s.handle(ctx, req)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("mcp transport read failed: %w", err)
	}
	return nil
}

func (s *Server) handle(ctx context.Context, req request) {
	log.Debug().Str("method", req.Method).Msg("MCP request")

	switch req.Method {
	case "initialize":
		s.writeResult(req.ID, map[string]interface{}{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    s.name,
				"version": s.version,
			},
		})

	case "notifications/initialized":
		// Notification, no response.

	case "ping":
		s.writeResult(req.ID, map[string]interface{}{})

	case "tools/list":
		s.writeResult(req.ID, map[string]interface{}{
			"tools": s.toolList(),
		})

	case "tools/call":
		s.handleCall(ctx, req)

	default:
		if req.ID == nil {
			return
		}
		s.writeError(req.ID, codeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil)
	}
}

func (s *Server) toolList() []map[string]interface{} {
	tools := s.pipeline.Registry().All()
	listed := make([]map[string]interface{}, 0, len(tools))
	for _, tool := range tools {
		listed = append(listed, map[string]interface{}{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": tool.Schema.Describe(),
		})
	}
	return listed
}

func (s *Server) handleCall(ctx context.Context, req request) {
	var params callParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.writeError(req.ID, codeInvalidParams, "invalid tools/call params", err.Error())
		return
	}
	if params.Name == "" {
		s.writeError(req.ID, codeInvalidParams, "tool name is required", nil)
		return
	}

	result, err := s.pipeline.Execute(ctx, params.Name, params.Arguments)
	if err != nil {
		var toolErr pipeline.ToolExecutionError
		if errors.As(err, &toolErr) {
			s.writeResult(req.ID, callResult{
				Content: []contentBlock{{Type: "text", Text: toolErr.Error()}},
				IsError: true,
			})
			return
		}
		s.writeError(req.ID, codeInternalError, err.Error(), nil)
		return
	}

	text, err := json.Marshal(result.Output)
	if err != nil {
		s.writeError(req.ID, codeInternalError, "failed to encode tool output", err.Error())
		return
	}

	s.writeResult(req.ID, callResult{
		Content: []contentBlock{{Type: "text", Text: string(text)}},
	})
}

func (s *Server) writeResult(id, result interface{}) {
	s.write(response{JSONRPC: "2.0", Result: result, ID: id})
}

func (s *Server) writeError(id interface{}, code int, message string, data interface{}) {
	s.write(response{
		JSONRPC: "2.0",
		Error:   &rpcError{Code: code, Message: message, Data: data},
		ID:      id,
	})
}

func (s *Server) write(resp response) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode MCP response")
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.out.Write(append(data, '\n')); err != nil {
		log.Error().Err(err).Msg("Failed to write MCP response")
	}
}
