package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mail-agent/internal/tools"
)

const protocolVersion = "2024-11-05"

// JSON-RPC error codes
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Request is a JSON-RPC 2.0 request or notification
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

type callParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Server represents the MCP server
type Server struct {
	name    string
	version string
	logger  *logrus.Logger
	tools   *tools.Registry
}

// NewServer creates a new MCP server instance
func NewServer(registry *tools.Registry, name, version string, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{
		name:    name,
		version: version,
		logger:  logger,
		tools:   registry,
	}
}

// Run serves newline-delimited JSON-RPC from in to out until in is
// exhausted or ctx is cancelled. Requests are handled one at a time.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("Starting MCP server with stdio transport")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	encoder := json.NewEncoder(out)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := s.handleLine(ctx, line)
		if resp == nil {
			continue
		}
		if err := encoder.Encode(resp); err != nil {
			return fmt.Errorf("failed to encode response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read request: %w", err)
	}
	return nil
}

func (s *Server) handleLine(ctx context.Context, line []byte) map[string]interface{} {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.logger.WithError(err).Error("Failed to decode request")
		return errorResponse(nil, codeParseError, "Parse error")
	}
	if req.Method == "" {
		if req.IsNotification() {
			return nil
		}
		return errorResponse(req.ID, codeInvalidRequest, "Invalid request")
	}

	resp := s.handleRequest(ctx, &req)
	if req.IsNotification() {
		return nil
	}
	return resp
}

// handleRequest processes an MCP request
func (s *Server) handleRequest(ctx context.Context, req *Request) map[string]interface{} {
	log := s.logger.WithField("method", req.Method)

	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, map[string]interface{}{
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
		log.Debug("Client initialized")
		return nil

	case "ping":
		return resultResponse(req.ID, map[string]interface{}{})

	case "tools/list":
		return resultResponse(req.ID, map[string]interface{}{
			"tools": s.tools.GetToolDefinitions(),
		})

	case "tools/call":
		var params callParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				return errorResponse(req.ID, codeInvalidParams, fmt.Sprintf("Invalid params: %v", err))
			}
		}

		tool, exists := s.tools.GetTool(params.Name)
		if !exists {
			return errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("Tool not found: %s", params.Name))
		}
		if params.Arguments == nil {
			params.Arguments = map[string]interface{}{}
		}

		log = log.WithField("tool", params.Name)
		result, err := tool.Execute(ctx, params.Arguments)
		if err != nil {
			log.WithError(err).Warn("Tool failed")
			return resultResponse(req.ID, toolContent(err.Error(), true))
		}

		// Serialize result to JSON string for text content
		resultJSON, err := json.Marshal(result)
		if err != nil {
			log.WithError(err).Error("Failed to encode tool result")
			return resultResponse(req.ID, toolContent(fmt.Sprintf("failed to encode result: %v", err), true))
		}
		log.Debug("Tool succeeded")
		return resultResponse(req.ID, toolContent(string(resultJSON), false))
	}

	return errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
}

func toolContent(text string, isError bool) map[string]interface{} {
	result := map[string]interface{}{
		"content": []map[string]interface{}{
			{
				"type": "text",
				"text": text,
			},
		},
	}
	if isError {
		result["isError"] = true
	}
	return result
}

func resultResponse(id json.RawMessage, result interface{}) map[string]interface{} {
	return map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	}
}

func errorResponse(id json.RawMessage, code int, message string) map[string]interface{} {
	var rawID interface{}
	if len(id) > 0 {
		rawID = id
	}
	return map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      rawID,
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	}
}
