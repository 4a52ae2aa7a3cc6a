package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"

	"chain_provider/internal/app/port"
	"chain_provider/internal/domain/entity"
	"chain_provider/internal/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSON-RPC error codes with a fixed meaning.
const (
	CodeParseError       = -32700
	CodeInvalidRequest   = -32600
	CodeMethodNotFound   = -32601
	CodeInvalidParams    = -32602
	CodeInternalError    = -32603
	CodeServerError      = -32000
	CodeLimitExceeded    = -32005
	CodeExecutionReverts = 3
)

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      uint64              `json:"id"`
	Result  jsoniter.RawMessage `json:"result"`
	Error   *errorObject        `json:"error"`
}

type errorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// BatchElem is one call of a batch. Result must be a pointer; Error is set per element.
type BatchElem struct {
	Method string
	Params []any
	Result any
	Error  error
}

// Client is a JSON-RPC 2.0 client over HTTP. It is safe for concurrent use and
// not bound to a single URL; the caller picks the endpoint per call.
type Client struct {
	http     *fasthttp.Client
	timeout  time.Duration
	maxBatch int
	logger   port.Logger
	nextID   atomic.Uint64
}

// NewClient creates a client whose calls are bounded by timeout unless the context
// carries an earlier deadline.
func NewClient(timeout time.Duration, maxBatch int, log port.Logger) *Client {
	if maxBatch <= 0 {
		maxBatch = 50
	}
	return &Client{
		http: &fasthttp.Client{
			Name:                "chain-provider",
			MaxIdleConnDuration: 90 * time.Second,
		},
		timeout:  timeout,
		maxBatch: maxBatch,
		logger:   log,
	}
}

// Call performs a single request and decodes the result into result.
func (c *Client) Call(ctx context.Context, url string, result any, method string, params ...any) error {
	if params == nil {
		params = []any{}
	}
	req := request{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}

	raw, err := c.post(ctx, url, body)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("%s: %w", method, malformed(err))
	}
	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, classifyRPCError(resp.Error))
	}
	return decodeResult(method, resp.Result, result)
}

// BatchCall sends elems as one or more batch requests. A returned error means the whole
// batch failed; per-call failures are stored in the elements.
func (c *Client) BatchCall(ctx context.Context, url string, elems []BatchElem) error {
	for _, chunk := range utils.Batch(elems, c.maxBatch) {
		if err := c.batch(ctx, url, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) batch(ctx context.Context, url string, elems []BatchElem) error {
	if len(elems) == 0 {
		return nil
	}
	reqs := make([]request, len(elems))
	byID := make(map[uint64]int, len(elems))
	for i, el := range elems {
		params := el.Params
		if params == nil {
			params = []any{}
		}
		id := c.nextID.Add(1)
		reqs[i] = request{JSONRPC: "2.0", ID: id, Method: el.Method, Params: params}
		byID[id] = i
	}
	body, err := json.Marshal(reqs)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	raw, err := c.post(ctx, url, body)
	if err != nil {
		return fmt.Errorf("batch of %d: %w", len(elems), err)
	}

	var resps []response
	if err := json.Unmarshal(raw, &resps); err != nil {
		// Some nodes answer a whole batch with a single error object.
		var single response
		if err2 := json.Unmarshal(raw, &single); err2 == nil && single.Error != nil {
			return fmt.Errorf("batch: %w", classifyRPCError(single.Error))
		}
		return fmt.Errorf("batch: %w", malformed(err))
	}

	answered := make([]bool, len(elems))
	for _, r := range resps {
		i, ok := byID[r.ID]
		if !ok {
			continue
		}
		answered[i] = true
		el := &elems[i]
		if r.Error != nil {
			el.Error = classifyRPCError(r.Error)
			continue
		}
		el.Error = decodeResult(el.Method, r.Result, el.Result)
	}
	for i, ok := range answered {
		if !ok {
			elems[i].Error = &entity.RPCError{Message: "missing response in batch", Transient: true}
		}
	}
	return nil
}

func (c *Client) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentTypeBytes([]byte("application/json"))
	req.SetBody(body)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s: %v", entity.ErrTimeout, hostOf(url), err)
		}
		c.logger.Debug("RPC transport failure", "endpoint", hostOf(url), "error", err)
		return nil, &entity.RPCError{Message: err.Error(), Transient: true}
	}

	status := resp.StatusCode()
	if status != fasthttp.StatusOK {
		snippet := string(resp.Body())
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &entity.RPCError{
			HTTPStatus: status,
			Message:    strings.TrimSpace(snippet),
			Transient:  status == fasthttp.StatusTooManyRequests || status >= 500,
		}
	}

	// Body is owned by resp which is released on return.
	return append([]byte(nil), resp.Body()...), nil
}

func decodeResult(method string, raw jsoniter.RawMessage, out any) error {
	if out == nil {
		return nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%s: empty result: %w", method, entity.ErrNotFound)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: %w", method, malformed(err))
	}
	return nil
}

func malformed(err error) error {
	return &entity.RPCError{Message: "malformed response: " + err.Error(), Transient: true}
}

// classifyRPCError marks server-side and rate-limit failures transient.
// Rejections of the request itself and reverts are not worth retrying elsewhere.
func classifyRPCError(e *errorObject) *entity.RPCError {
	out := &entity.RPCError{Code: e.Code, Message: e.Message}
	if e.Data != nil {
		out.Data = fmt.Sprint(e.Data)
	}
	msg := strings.ToLower(e.Message)
	switch {
	case e.Code == CodeExecutionReverts || strings.Contains(msg, "revert"):
		out.Transient = false
	case e.Code == CodeInternalError, e.Code == CodeLimitExceeded:
		out.Transient = true
	case e.Code == CodeServerError:
		out.Transient = !strings.Contains(msg, "invalid")
	case e.Code <= -32000 && e.Code >= -32099:
		out.Transient = true
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"):
		out.Transient = true
	}
	return out
}

// IsInvalidParams reports whether err is a JSON-RPC rejection of the request shape.
func IsInvalidParams(err error) bool {
	var rpcErr *entity.RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	switch rpcErr.Code {
	case CodeInvalidParams, CodeInvalidRequest, CodeParseError:
		return true
	}
	return false
}

// IsRevert reports whether err is an execution revert.
func IsRevert(err error) bool {
	var rpcErr *entity.RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	return rpcErr.Code == CodeExecutionReverts || strings.Contains(strings.ToLower(rpcErr.Message), "revert")
}

func isTimeout(err error) bool {
	if errors.Is(err, fasthttp.ErrTimeout) || errors.Is(err, fasthttp.ErrDialTimeout) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// hostOf strips path and query so API keys embedded in URLs stay out of logs.
func hostOf(url string) string { return entity.RedactURL(url) }
