// Package toolserver exposes the tool-execution service over JSON-RPC 2.0
// on HTTP, and provides the matching client. Running the tools out of
// process keeps the data worker's transport identical whether the store is
// local or remote.
package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/quorumhq/quorum/internal/toolstore"
)

// JSON-RPC 2.0 error codes, plus the service's own range.
const (
	codeParse          = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternal       = -32603
	codeNotFound       = -32001
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Server serves tool calls over HTTP.
type Server struct {
	caller *toolstore.Caller
	logger *log.Logger
	mux    *http.ServeMux
}

// NewServer wraps a tool caller.
func NewServer(caller *toolstore.Caller) *Server {
	s := &Server{
		caller: caller,
		logger: log.New(log.Writer(), "", log.LstdFlags),
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("/rpc", s.handleRPC)
	s.mux.HandleFunc("/health", s.handleHealth)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	s.logf("listening on %s", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: codeParse, Message: "parse error"}})
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInvalidRequest, Message: "invalid request"}})
		return
	}

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "tools/list":
		resp.Result = map[string]any{"tools": toolstore.Tools()}

	case "tools/call":
		var params callParams
		if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
			resp.Error = &rpcError{Code: codeInvalidParams, Message: "tools/call needs a tool name"}
			break
		}
		payload, err := s.caller.Call(r.Context(), params.Name, params.Arguments)
		if err != nil {
			resp.Error = mapCallError(err)
			s.logf("tools/call %s failed: %v", params.Name, err)
			break
		}
		resp.Result = payload

	default:
		resp.Error = &rpcError{Code: codeMethodNotFound, Message: "method not found"}
	}

	writeRPC(w, resp)
}

// mapCallError translates store errors into RPC error codes the client can
// translate back.
func mapCallError(err error) *rpcError {
	if errors.Is(err, toolstore.ErrNotFound) {
		return &rpcError{Code: codeNotFound, Message: err.Error()}
	}
	var valErr *toolstore.ValidationError
	if errors.As(err, &valErr) {
		return &rpcError{
			Code:    codeInvalidParams,
			Message: valErr.Error(),
			Data:    map[string]any{"field": valErr.Field, "reason": valErr.Reason},
		}
	}
	return &rpcError{Code: codeInternal, Message: err.Error()}
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) logf(format string, args ...any) {
	s.logger.Printf("[toolserver] "+format, args...)
}
