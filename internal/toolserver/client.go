package toolserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/quorumhq/quorum/internal/toolstore"
)

// Client calls a remote tool server. It satisfies the data worker's tool
// contract, so swapping the in-process store for a remote one is a wiring
// change only.
type Client struct {
	baseURL string
	http    *http.Client
	nextID  atomic.Int64
}

// NewClient points at a tool server base URL, e.g. "http://localhost:8311".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Call invokes one tool. Remote validation and not-found failures come back
// as the same typed errors the in-process store returns, so callers never
// branch on the transport.
func (c *Client) Call(ctx context.Context, tool string, args map[string]any) (map[string]any, error) {
	result, rpcErr, err := c.roundTrip(ctx, "tools/call", callParams{Name: tool, Arguments: args})
	if err != nil {
		return nil, err
	}
	if rpcErr != nil {
		return nil, translateRPCError(rpcErr)
	}
	return result, nil
}

// ListTools fetches the remote tool inventory.
func (c *Client) ListTools(ctx context.Context) ([]map[string]string, error) {
	result, rpcErr, err := c.roundTrip(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	if rpcErr != nil {
		return nil, translateRPCError(rpcErr)
	}

	raw, err := json.Marshal(result["tools"])
	if err != nil {
		return nil, err
	}
	var tools []map[string]string
	if err := json.Unmarshal(raw, &tools); err != nil {
		return nil, fmt.Errorf("malformed tool list: %w", err)
	}
	return tools, nil
}

// Health probes the server.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tool server unhealthy: %s", resp.Status)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method string, params any) (map[string]any, *rpcError, error) {
	req := rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, nil, err
		}
		req.Params = raw
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc", bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, nil, err
	}
	defer httpResp.Body.Close()

	var resp struct {
		Result map[string]any `json:"result"`
		Error  *rpcError      `json:"error"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, nil, fmt.Errorf("malformed tool server response: %w", err)
	}
	return resp.Result, resp.Error, nil
}

// translateRPCError reconstructs the store's typed errors from RPC codes.
func translateRPCError(rpcErr *rpcError) error {
	switch rpcErr.Code {
	case codeNotFound:
		return fmt.Errorf("%s: %w", rpcErr.Message, toolstore.ErrNotFound)
	case codeInvalidParams:
		field, _ := rpcErr.Data["field"].(string)
		reason, _ := rpcErr.Data["reason"].(string)
		if field == "" {
			field = "arguments"
		}
		if reason == "" {
			reason = rpcErr.Message
		}
		return &toolstore.ValidationError{Field: field, Reason: reason}
	default:
		return fmt.Errorf("tool server error %d: %s", rpcErr.Code, rpcErr.Message)
	}
}
