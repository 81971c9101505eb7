// Package jsonrpc implements a JSON-RPC 2.0 client over HTTP. Request ids are
// UUIDs, responses are returned as raw JSON, and server-side failures are
// surfaced as a typed RemoteError so callers can classify them by code or
// message instead of string-matching a flattened error.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ErrNodeReturnedError indicates that the remote JSON-RPC server answered the
// request with an error object. Every RemoteError matches it via errors.Is.
var ErrNodeReturnedError = errors.New("node error")

// RemoteError carries the error object returned by the JSON-RPC server.
type RemoteError struct {
	Code    int             // error code defined by the JSON-RPC spec or the node
	Message string          // human-readable message from the node
	Data    json.RawMessage // optional structured detail, passed through verbatim
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: [%d] - %s", ErrNodeReturnedError, e.Code, e.Message)
}

// Is reports whether target is ErrNodeReturnedError, so callers can detect
// any remote failure with errors.Is while still unwrapping the typed value
// with errors.As.
func (e *RemoteError) Is(target error) bool {
	return target == ErrNodeReturnedError
}

// response is a standard JSON-RPC 2.0 response envelope.
type response struct {
	JsonRPC string          `json:"jsonrpc"`
	Error   *RemoteError    `json:"error"`
	Result  json.RawMessage `json:"result"`
}

// Err returns the typed remote error, or nil when the response succeeded.
func (r response) Err() error {
	if r.Error == nil {
		return nil
	}

	return r.Error
}

// Doer abstracts the HTTP client executing the request, allowing retrying
// implementations (e.g. hashicorp/go-retryablehttp via StandardClient) or
// plain *http.Client to be injected interchangeably.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the interface for a generic JSON-RPC client. It exists so
// higher-level adapters can be tested against a fake transport.
type Client interface {
	// Call sends a JSON-RPC request with the given method and positional
	// parameters, returning the raw result or an error.
	Call(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// client is the default Client implementation, bound to one node endpoint.
type client struct {
	endpoint   string
	httpClient Doer
}

var _ Client = (*client)(nil)

// Call sends a JSON-RPC request to the configured endpoint. The request id is
// a fresh UUID. It returns the raw result payload, or an error if transport,
// decoding, or the server itself failed.
func (c *client) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      uuid.NewString(),
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var data response
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		return nil, err
	}

	if err := data.Err(); err != nil {
		return nil, err
	}

	return data.Result, nil
}

// NewClient builds a Client that sends JSON-RPC requests to endpoint using
// the provided HTTP client.
func NewClient(httpClient Doer, endpoint string) *client {
	return &client{
		endpoint:   endpoint,
		httpClient: httpClient,
	}
}
