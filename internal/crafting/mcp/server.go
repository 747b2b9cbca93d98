// Package mcp implements the Model Context Protocol server.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rsned/craft-market-planner/internal/crafting/engine"
	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// BlacklistStore persists world exclusions for the blacklist_world tool.
type BlacklistStore interface {
	Add(ctx context.Context, entry crafting.BlacklistEntry) error
	Active(ctx context.Context, now time.Time) ([]crafting.BlacklistEntry, error)
}

// Server implements an MCP server over stdio.
type Server struct {
	engine   *engine.Engine
	logger   *slog.Logger
	handlers map[string]MethodHandler

	blacklist         BlacklistStore
	blacklistDuration time.Duration
	now               func() time.Time

	mu    sync.Mutex
	plans map[string]*crafting.CraftingPlan

	outMu sync.Mutex
	out   io.Writer
}

// MethodHandler handles a specific JSON-RPC method.
type MethodHandler func(ctx context.Context, params json.RawMessage) (any, error)

// Option configures a Server.
type Option func(*Server)

// WithBlacklist enables the blacklist_world tool. Entries last d unless
// the caller asks otherwise.
func WithBlacklist(store BlacklistStore, d time.Duration) Option {
	return func(s *Server) {
		s.blacklist = store
		s.blacklistDuration = d
	}
}

// WithNow overrides the time source used for blacklist expiry.
func WithNow(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a new MCP server.
func NewServer(eng *engine.Engine, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	s := &Server{
		engine:            eng,
		logger:            logger,
		handlers:          make(map[string]MethodHandler),
		blacklistDuration: 30 * time.Minute,
		now:               time.Now,
		plans:             make(map[string]*crafting.CraftingPlan),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Register handlers
	s.handlers["initialize"] = s.handleInitialize
	s.handlers["ping"] = s.handlePing
	s.handlers["tools/list"] = s.handleToolsList
	s.handlers["tools/call"] = s.handleToolsCall

	return s
}

// AddPlan makes a plan available to the plan tools.
func (s *Server) AddPlan(plan *crafting.CraftingPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.ID] = plan
}

// Plan returns a stored plan, or nil.
func (s *Server) Plan(id string) *crafting.CraftingPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plans[id]
}

// Request represents a JSON-RPC request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Notification is a JSON-RPC message that expects no response.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Error represents a JSON-RPC error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Standard JSON-RPC error codes.
const (
	ErrCodeParse          = -32700
	ErrCodeInvalidReq     = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
)

// errInvalidParams marks handler errors caused by bad arguments.
var errInvalidParams = errors.New("invalid params")

// Run starts the server, reading from stdin and writing to stdout.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve handles newline-delimited requests from r until EOF or ctx is done.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	reader := bufio.NewReader(r)
	s.outMu.Lock()
	s.out = w
	s.outMu.Unlock()

	s.logger.Info("MCP server starting")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if len(strings.TrimSpace(string(line))) > 0 {
			if resp := s.handleRequest(ctx, line); resp != nil {
				if werr := s.write(resp); werr != nil {
					s.logger.Error("failed to write response", "error", werr)
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
	}
}

// handleRequest processes a single request. Notifications get no response.
func (s *Server) handleRequest(ctx context.Context, data []byte) *Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return &Response{
			JSONRPC: "2.0",
			Error: &Error{
				Code:    ErrCodeParse,
				Message: "Parse error",
				Data:    err.Error(),
			},
		}
	}

	s.logger.Debug("received request", "method", req.Method, "id", req.ID)

	if req.ID == nil && strings.HasPrefix(req.Method, "notifications/") {
		return nil
	}

	handler, ok := s.handlers[req.Method]
	if !ok {
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &Error{
				Code:    ErrCodeMethodNotFound,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}

	result, err := handler(ctx, req.Params)
	if err != nil {
		code := ErrCodeInternal
		if errors.Is(err, errInvalidParams) {
			code = ErrCodeInvalidParams
		}
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &Error{
				Code:    code,
				Message: err.Error(),
			},
		}
	}

	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
	}
}

// write marshals msg as one line. Responses and progress notifications
// share the output stream.
func (s *Server) write(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling response: %w", err)
	}

	data = append(data, '\n')
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.out == nil {
		return nil
	}
	_, err = s.out.Write(data)
	return err
}

// InitializeResult is the response for initialize.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
	Capabilities    Capabilities `json:"capabilities"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Capabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

func (s *Server) handleInitialize(ctx context.Context, params json.RawMessage) (any, error) {
	return InitializeResult{
		ProtocolVersion: "2024-11-05",
		ServerInfo: ServerInfo{
			Name:    "craft-market-planner",
			Version: "0.1.0",
		},
		Capabilities: Capabilities{
			Tools: &ToolsCapability{},
		},
	}, nil
}

func (s *Server) handlePing(ctx context.Context, params json.RawMessage) (any, error) {
	return struct{}{}, nil
}

// ToolsListResult is the response for tools/list.
type ToolsListResult struct {
	Tools []ToolDefinition `json:"tools"`
}

func (s *Server) handleToolsList(ctx context.Context, params json.RawMessage) (any, error) {
	return ToolsListResult{
		Tools: GetToolDefinitions(),
	}, nil
}

// ToolCallParams are the parameters for tools/call.
type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Meta      struct {
		ProgressToken any `json:"progressToken,omitempty"`
	} `json:"_meta"`
}

// ToolCallResult is the response for tools/call.
type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ProgressParams is the payload of notifications/progress.
type ProgressParams struct {
	ProgressToken any    `json:"progressToken"`
	Progress      int    `json:"progress"`
	Total         int    `json:"total,omitempty"`
	Message       string `json:"message,omitempty"`
}

func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (any, error) {
	var p ToolCallParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
	}

	s.logger.Debug("calling tool", "name", p.Name)

	result, err := s.callTool(ctx, p.Name, p.Arguments, s.progressFor(p.Meta.ProgressToken))
	if err != nil {
		if errors.Is(err, errInvalidParams) {
			return nil, err
		}
		// tool failures are reported in-band so the client can show them
		return ToolCallResult{
			Content: []ContentBlock{{Type: "text", Text: err.Error()}},
			IsError: true,
		}, nil
	}

	// Marshal result to JSON for text output
	resultJSON, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}

	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: string(resultJSON)}},
	}, nil
}

// progressFor turns engine progress into MCP progress notifications when
// the caller supplied a token.
func (s *Server) progressFor(token any) crafting.ProgressFunc {
	if token == nil {
		return nil
	}
	return func(p crafting.Progress) {
		msg := string(p.Stage)
		switch {
		case p.Message != "":
			msg += ": " + p.Message
		case p.Region != "":
			msg += ": " + p.Region
		}
		err := s.write(Notification{
			JSONRPC: "2.0",
			Method:  "notifications/progress",
			Params: ProgressParams{
				ProgressToken: token,
				Progress:      p.Current,
				Total:         p.Total,
				Message:       msg,
			},
		})
		if err != nil {
			s.logger.Warn("failed to write progress", "error", err)
		}
	}
}

// callTool dispatches to the appropriate tool handler.
func (s *Server) callTool(ctx context.Context, name string, args json.RawMessage, progress crafting.ProgressFunc) (any, error) {
	switch name {
	case "build_plan":
		return s.toolBuildPlan(ctx, args)
	case "refresh_prices":
		return s.toolRefreshPrices(ctx, args, progress)
	case "compute_shopping_plans":
		return s.toolComputeShoppingPlans(ctx, args, progress)
	case "update_node":
		return s.toolUpdateNode(ctx, args)
	case "recipe_lookup":
		return s.toolRecipeLookup(ctx, args)
	case "blacklist_world":
		return s.toolBlacklistWorld(ctx, args)
	default:
		return nil, fmt.Errorf("%w: unknown tool: %s", errInvalidParams, name)
	}
}
