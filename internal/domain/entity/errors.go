package entity

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable classification callers of the provider observe.
type ErrorKind string

const (
	KindInvalidRequest      ErrorKind = "invalid_request"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindTimeout             ErrorKind = "timeout"
	KindNotFound            ErrorKind = "not_found"
)

// Caller-facing error kinds.
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrTimeout             = errors.New("timeout")
	ErrNotFound            = errors.New("not found")
)

// Internal errors produced below the facade.
var (
	ErrNoHealthyEndpoint = errors.New("no healthy endpoint")
	ErrRPC               = errors.New("rpc error")
	ErrUnknownChain      = errors.New("unknown chain")
)

// RPCError is a failed response from a chain endpoint.
type RPCError struct {
	// HTTPStatus is zero when the failure happened at JSON-RPC level.
	HTTPStatus int
	Code       int
	Message    string
	Data       string
	// Transient marks failures worth retrying on another endpoint.
	Transient bool
}

func (e *RPCError) Error() string {
	if e.HTTPStatus != 0 && e.Code == 0 {
		return fmt.Sprintf("rpc error: http status %d: %s", e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (e *RPCError) Is(target error) bool { return target == ErrRPC }

// IsTransientRPC reports whether err carries a retryable RPCError.
func IsTransientRPC(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Transient
}

// ProviderError is the normalized error returned by the provider facade.
// Cause is for logs only; Error never renders it.
type ProviderError struct {
	Kind    ErrorKind
	Op      string
	ChainID string
	// Detail is a caller-safe explanation, set for rejected input.
	Detail string
	Cause  error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Op, e.ChainID, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap exposes only the kind sentinel so callers can match with errors.Is
// without depending on transport details.
func (e *ProviderError) Unwrap() error { return e.Kind.Sentinel() }

// Sentinel returns the error value matching the kind.
func (k ErrorKind) Sentinel() error {
	switch k {
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindTimeout:
		return ErrTimeout
	case KindNotFound:
		return ErrNotFound
	default:
		return ErrUpstreamUnavailable
	}
}

// KindOf returns the provider error kind carried by err, or ok=false.
func KindOf(err error) (ErrorKind, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// PublicMessage renders err for callers outside the process. Errors that did not pass
// through the facade are reduced to their kind.
func PublicMessage(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Error()
	}
	return ErrUpstreamUnavailable.Error()
}
