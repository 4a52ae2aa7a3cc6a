// Package rpctest provides an in-process JSON-RPC node for tests.
package rpctest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Error is a JSON-RPC error object returned by a Handler.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Call is one decoded request.
type Call struct {
	Method string
	Params []jsoniter.RawMessage
}

// CallTarget returns "to" and the hex calldata of an eth_call, lowercased.
func (c Call) CallTarget() (to, data string) {
	if c.Method != "eth_call" || len(c.Params) == 0 {
		return "", ""
	}
	var args struct {
		To   string `json:"to"`
		Data string `json:"data"`
	}
	_ = json.Unmarshal(c.Params[0], &args)
	return strings.ToLower(args.To), strings.ToLower(args.Data)
}

// Handler answers a single call with a result or an error.
type Handler func(Call) (any, *Error)

// Server is an httptest server speaking JSON-RPC 2.0 including batches.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	handler    Handler
	httpStatus int
	delay      time.Duration

	requests atomic.Int64
	calls    atomic.Int64
}

type rawRequest struct {
	ID     jsoniter.RawMessage   `json:"id"`
	Method string                `json:"method"`
	Params []jsoniter.RawMessage `json:"params"`
}

type rawResponse struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      jsoniter.RawMessage `json:"id"`
	Result  any                 `json:"result,omitempty"`
	Error   *Error              `json:"error,omitempty"`
}

// NewServer starts a server answering with h.
func NewServer(h Handler) *Server {
	s := &Server{handler: h}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// SetHandler replaces the handler.
func (s *Server) SetHandler(h Handler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// FailHTTP makes every request answer with status; zero restores normal behaviour.
func (s *Server) FailHTTP(status int) {
	s.mu.Lock()
	s.httpStatus = status
	s.mu.Unlock()
}

// SetDelay delays every response.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

// Requests is the number of HTTP requests received.
func (s *Server) Requests() int64 { return s.requests.Load() }

// Calls is the number of JSON-RPC calls received, counting batch elements.
func (s *Server) Calls() int64 { return s.calls.Load() }

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	s.mu.Lock()
	h, status, delay := s.handler, s.httpStatus, s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var reqs []rawRequest
		if err := json.Unmarshal(body, &reqs); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resps := make([]rawResponse, 0, len(reqs))
		for _, req := range reqs {
			resps = append(resps, s.answer(h, req))
		}
		out, _ := json.Marshal(resps)
		_, _ = w.Write(out)
		return
	}

	var req rawRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	out, _ := json.Marshal(s.answer(h, req))
	_, _ = w.Write(out)
}

func (s *Server) answer(h Handler, req rawRequest) rawResponse {
	s.calls.Add(1)
	resp := rawResponse{JSONRPC: "2.0", ID: req.ID}
	if h == nil {
		resp.Error = &Error{Code: -32601, Message: "method not found"}
		return resp
	}
	result, rpcErr := h(Call{Method: req.Method, Params: req.Params})
	if rpcErr != nil {
		resp.Error = rpcErr
		return resp
	}
	if result == nil {
		result = jsoniter.RawMessage("null")
	}
	resp.Result = result
	return resp
}
