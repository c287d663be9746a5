// Package mcp provides the MCP (Model Context Protocol) tool server for
// Munin's relationship graphs.
//
// The server exposes the session store's graphs as MCP tools over JSON-RPC
// 2.0 (initialize, tools/list, tools/call), plus plain-HTTP helper routes
// for the same operations and a /health endpoint.
//
// Key Design Principles:
//   - One dispatch table: every tool is a ToolHandler in a map keyed by tool
//     name; adding a tool is one map entry plus a definition in tools.go.
//   - Approximate names in, canonical names out: handlers accept whatever
//     label the agent used and report the label resolution actually picked.
//   - Failures an agent can act on: not-found errors carry example labels,
//     ambiguity errors carry the scored candidates.
//
// Example Usage:
//
//	store := session.NewStore(match.DefaultConfig(), logger)
//	server := mcp.NewServer(store, nil, logger)
//	if err := server.Start(":8080"); err != nil {
//	    log.Fatal(err)
//	}
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/orneryd/munin/pkg/session"
)

// ProtocolVersion is the MCP protocol revision the server speaks.
const ProtocolVersion = "2024-11-05"

// Version is the server version reported in initialize and /health.
const Version = "1.0.0"

// ToolHandler is a function that handles a tool call.
type ToolHandler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// ServerConfig holds MCP server configuration.
type ServerConfig struct {
	// ReadTimeout for requests
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// WriteTimeout for responses
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// MaxRequestSize in bytes (default: 10MB)
	MaxRequestSize int64 `yaml:"max_request_size"`
	// EnableCORS for cross-origin requests
	EnableCORS bool `yaml:"enable_cors"`
}

// DefaultServerConfig returns sensible defaults for the MCP server.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		MaxRequestSize: 10 * 1024 * 1024, // 10MB
		EnableCORS:     true,
	}
}

// Server implements the MCP protocol over the session store.
type Server struct {
	store  *session.Store
	config *ServerConfig
	logger *zap.Logger

	httpServer *http.Server
	mu         sync.Mutex
	started    time.Time
	closed     bool

	// Tool dispatch table
	handlers map[string]ToolHandler
}

// NewServer creates an MCP server over store. config and logger may be nil.
func NewServer(store *session.Store, config *ServerConfig, logger *zap.Logger) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		store:    store,
		config:   config,
		logger:   logger,
		handlers: make(map[string]ToolHandler),
	}
	s.registerHandlers()
	return s
}

// registerHandlers fills the dispatch table. Every tool in tools.go must
// have an entry here.
func (s *Server) registerHandlers() {
	s.handlers[ToolAddFacts] = s.handleAddFacts
	s.handlers[ToolAddKnowledge] = s.handleAddKnowledge
	s.handlers[ToolAddNodes] = s.handleAddNodes
	s.handlers[ToolAddRelationship] = s.handleAddRelationship
	s.handlers[ToolFindNode] = s.handleFindNode
	s.handlers[ToolListNodes] = s.handleListNodes
	s.handlers[ToolListGraphs] = s.handleListGraphs
	s.handlers[ToolDeleteGraph] = s.handleDeleteGraph
	s.handlers[ToolGetGraphInfo] = s.handleGetGraphInfo
	s.handlers[ToolForget] = s.handleForget
	s.handlers[ToolForgetRelationship] = s.handleForgetRelationship
	s.handlers[ToolShortestPath] = s.handleShortestPath
	s.handlers[ToolAllPaths] = s.handleAllPaths
	s.handlers[ToolPageRank] = s.handlePageRank
	s.handlers[ToolConnectedComponents] = s.handleConnectedComponents
	s.handlers[ToolFindCycles] = s.handleFindCycles
	s.handlers[ToolTransitiveReduction] = s.handleTransitiveReduction
	s.handlers[ToolDegreeCentrality] = s.handleDegreeCentrality
	s.handlers[ToolSubgraph] = s.handleSubgraph
	s.handlers[ToolAskGraph] = s.handleAskGraph
	s.handlers[ToolDumpContext] = s.handleDumpContext
	s.handlers[ToolImportGraph] = s.handleImportGraph
	s.handlers[ToolExportGraph] = s.handleExportGraph
	s.handlers[ToolCreateFromMermaid] = s.handleCreateFromMermaid
}

// Router builds the chi router with all MCP routes. Exposed so the caller
// can mount extra routes (e.g. the visualization websocket) on it.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.config.EnableCORS {
		r.Use(s.corsMiddleware)
	}

	r.Post("/mcp", s.handleMCP)
	r.Post("/mcp/initialize", s.handleInitialize)
	r.Get("/mcp/tools/list", s.handleListTools)
	r.Post("/mcp/tools/list", s.handleListTools)
	r.Post("/mcp/tools/call", s.handleCallTool)
	r.Get("/health", s.handleHealth)

	return r
}

// Start begins listening for HTTP connections. Returns once the listener
// goroutine is launched.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("server already closed")
	}
	s.started = time.Now()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("mcp server error", zap.Error(err))
		}
	}()

	s.logger.Info("mcp server started", zap.String("addr", addr))
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// MCP Protocol Handlers
// =============================================================================

// handleMCP is the main MCP JSON-RPC endpoint.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JSONRPC string                 `json:"jsonrpc"`
		ID      interface{}            `json:"id"`
		Method  string                 `json:"method"`
		Params  map[string]interface{} `json:"params"`
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxRequestSize))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeJSONRPCError(w, nil, -32700, "Parse error", err.Error())
		return
	}

	var result interface{}

	switch req.Method {
	case "initialize":
		result = s.doInitialize()
	case "tools/list":
		result = s.doListTools()
	case "tools/call":
		toolResult, err := s.doCallTool(r.Context(), req.Params)
		if err != nil {
			result = CallToolResponse{
				Content: []Content{{Type: "text", Text: err.Error()}},
				IsError: true,
			}
		} else {
			resultJSON, _ := json.Marshal(toolResult)
			result = CallToolResponse{
				Content: []Content{{Type: "text", Text: string(resultJSON)}},
			}
		}
	case "notifications/initialized":
		// Notification, no response body required.
		result = map[string]interface{}{}
	default:
		s.writeJSONRPCError(w, req.ID, -32601, "Method not found", req.Method)
		return
	}

	s.writeJSONRPCResult(w, req.ID, result)
}

// handleInitialize handles the plain-HTTP initialize request.
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req InitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.writeJSON(w, http.StatusOK, s.doInitialize())
}

// handleListTools returns the list of available tools.
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.doListTools())
}

// handleCallTool executes a tool via the plain-HTTP route.
func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	var req CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.doCallTool(r.Context(), map[string]interface{}{
		"name":      req.Name,
		"arguments": req.Arguments,
	})
	if err != nil {
		s.writeJSON(w, http.StatusOK, CallToolResponse{
			Content: []Content{{Type: "text", Text: err.Error()}},
			IsError: true,
		})
		return
	}

	resultJSON, _ := json.Marshal(result)
	s.writeJSON(w, http.StatusOK, CallToolResponse{
		Content: []Content{{Type: "text", Text: string(resultJSON)}},
	})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  time.Since(s.started).String(),
		"version": Version,
		"graphs":  s.store.Len(),
	})
}

// =============================================================================
// MCP Protocol Implementation
// =============================================================================

func (s *Server) doInitialize() InitResponse {
	return InitResponse{
		ProtocolVersion: ProtocolVersion,
		Capabilities: map[string]interface{}{
			"tools": map[string]interface{}{
				"listChanged": false,
			},
		},
		ServerInfo: ServerInfo{
			Name:    "Munin Graph Server",
			Version: Version,
		},
	}
}

func (s *Server) doListTools() ListToolsResponse {
	return ListToolsResponse{Tools: GetToolDefinitions()}
}

func (s *Server) doCallTool(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]interface{})
	if args == nil {
		args = map[string]interface{}{}
	}

	handler, ok := s.handlers[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}

	s.logger.Debug("tool call",
		zap.String("tool", name),
		zap.String("graph", getString(args, "graph")))
	return handler(ctx, args)
}

// =============================================================================
// Response Helpers
// =============================================================================

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSONRPCResult(w http.ResponseWriter, id interface{}, result interface{}) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
}

func (s *Server) writeJSONRPCError(w http.ResponseWriter, id interface{}, code int, message, data string) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
			"data":    data,
		},
	})
}
