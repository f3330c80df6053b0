package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/richard-senior/football-analyzer/internal/logger"
	"github.com/richard-senior/football-analyzer/pkg/protocol"
	"github.com/richard-senior/football-analyzer/pkg/transport"
)

const (
	serverName    = "football-analyzer"
	serverVersion = "1.0.0"
	// toolPrefix is prepended to tool names by some clients
	toolPrefix = "mcp___"
)

// HandlerFunc handles an MCP request. A nil result with a nil error means no response.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// ToolHandler runs a tool with the arguments of a tools/call request
type ToolHandler func(ctx context.Context, args map[string]any) (*protocol.ToolResult, error)

// Server represents an MCP server
type Server struct {
	transport transport.Transport
	handlers  map[string]HandlerFunc
	tools     []protocol.Tool
	toolFuncs map[string]ToolHandler
	mu        sync.RWMutex
}

// New creates a server answering the MCP lifecycle methods on t. Tools are added with RegisterTool.
func New(t transport.Transport) *Server {
	s := &Server{
		transport: t,
		handlers:  make(map[string]HandlerFunc),
		toolFuncs: make(map[string]ToolHandler),
	}
	s.handlers[string(protocol.MethodInitialize)] = s.handleInitialize
	s.handlers[string(protocol.MethodInitialized)] = s.handleInitialized
	s.handlers[string(protocol.MethodPing)] = s.handlePing
	s.handlers[string(protocol.MethodToolsList)] = s.handleToolsList
	s.handlers[string(protocol.MethodToolsCall)] = s.handleToolsCall
	s.handlers[string(protocol.MethodShutdown)] = s.handlePing
	return s
}

// RegisterTool registers a tool with the server
func (s *Server) RegisterTool(tool protocol.Tool, handler ToolHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, tool)
	s.toolFuncs[tool.Name] = handler
	logger.Info("Registered tool:", tool.Name)
}

// GetTools returns the list of registered tools
func (s *Server) GetTools() []protocol.Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]protocol.Tool(nil), s.tools...)
}

// Start processes requests until the client disconnects, a shutdown request
// is answered or ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	logger.Info("Starting MCP server")
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.ProcessRequests(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("MCP server cancelled")
		return nil
	}
}

// ProcessRequests continuously processes incoming requests
func (s *Server) ProcessRequests(ctx context.Context) error {
	for {
		req, err := s.transport.ReadRequest()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var rpcErr *protocol.JsonRpcError
		if errors.As(err, &rpcErr) {
			// the stream is still in sync, answer and carry on
			if werr := s.transport.WriteResponse(protocol.NewJsonRpcErrorResponse(rpcErr.Code, rpcErr.Message, nil, nil)); werr != nil {
				return werr
			}
			continue
		}
		if err != nil {
			s.transport.WriteResponse(protocol.NewJsonRpcErrorResponse(protocol.ErrParse, err.Error(), nil, nil))
			return fmt.Errorf("failed to read request: %w", err)
		}

		// if it is nil then no response is required
		resp := s.HandleRequest(ctx, req)
		if resp != nil {
			if err := s.transport.WriteResponse(resp); err != nil {
				return err
			}
		}
		if req.Method == string(protocol.MethodShutdown) {
			logger.Info("Shutdown requested")
			return nil
		}
	}
}

// HandleRequest processes a request and returns a response
func (s *Server) HandleRequest(ctx context.Context, req *protocol.JsonRpcRequest) *protocol.JsonRpcResponse {
	logger.Info(">> ", req.Method)

	// Handle notifications (no response required)
	if strings.HasPrefix(req.Method, "notifications/") {
		logger.Debug("Received notification:", req.Method)
		return nil
	}

	handler := s.handlers[req.Method]
	if handler == nil {
		if req.IsNotification() {
			return nil
		}
		return protocol.NewJsonRpcErrorResponse(protocol.ErrMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil, req.ID)
	}

	result, err := handler(ctx, req.Params)
	if req.IsNotification() {
		return nil
	}
	if err != nil {
		var rpcErr *protocol.JsonRpcError
		if errors.As(err, &rpcErr) {
			return protocol.NewJsonRpcErrorResponse(rpcErr.Code, rpcErr.Message, rpcErr.Data, req.ID)
		}
		return protocol.NewJsonRpcErrorResponse(protocol.ErrToolExecutionFailed, err.Error(), nil, req.ID)
	}
	if result == nil {
		result = struct{}{}
	}

	resp, err := protocol.NewJsonRpcResponse(result, req.ID)
	if err != nil {
		return protocol.NewJsonRpcErrorResponse(protocol.ErrInternal, "Failed to marshal result: "+err.Error(), nil, req.ID)
	}
	logger.Debug("Response:", string(resp.Result))
	return resp
}

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

// handleInitialize echoes the client's protocol version and advertises tools
func (s *Server) handleInitialize(_ context.Context, params json.RawMessage) (any, error) {
	version := protocol.DefaultProtocolVersion
	if len(params) > 0 {
		var p initializeParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &protocol.JsonRpcError{Code: protocol.ErrInvalidParams, Message: "invalid initialize parameters: " + err.Error()}
		}
		if p.ProtocolVersion != "" {
			version = p.ProtocolVersion
		}
	}
	logger.Info("Initializing with protocol version", version, "and tools", len(s.GetTools()))

	return initializeResult{
		ProtocolVersion: version,
		Capabilities:    map[string]any{"tools": map[string]any{"listChanged": false}},
		ServerInfo:      serverInfo{Name: serverName, Version: serverVersion},
	}, nil
}

// handleInitialized handles the initialized notification
func (s *Server) handleInitialized(context.Context, json.RawMessage) (any, error) {
	logger.Info("Client initialized")
	return nil, nil
}

func (s *Server) handlePing(context.Context, json.RawMessage) (any, error) {
	return struct{}{}, nil
}

// handleToolsList handles the tools/list method
func (s *Server) handleToolsList(context.Context, json.RawMessage) (any, error) {
	return struct {
		Tools []protocol.Tool `json:"tools"`
	}{Tools: s.GetTools()}, nil
}

type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// handleToolsCall runs a tool. Tool failures are returned in band as an error result.
func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (any, error) {
	var p toolCallParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &protocol.JsonRpcError{Code: protocol.ErrInvalidParams, Message: "invalid tools/call parameters: " + err.Error()}
	}
	logger.Info("Tool call requested for:", p.Name)

	s.mu.RLock()
	handler := s.toolFuncs[p.Name]
	if handler == nil {
		handler = s.toolFuncs[strings.TrimPrefix(p.Name, toolPrefix)]
	}
	s.mu.RUnlock()
	if handler == nil {
		return nil, &protocol.JsonRpcError{Code: protocol.ErrInvalidParams, Message: "tool not found: " + p.Name}
	}
	if p.Arguments == nil {
		p.Arguments = map[string]any{}
	}

	result, err := handler(ctx, p.Arguments)
	if err != nil {
		logger.Warn("Tool failed:", p.Name, err)
		return protocol.ErrorResult(err), nil
	}
	return result, nil
}
