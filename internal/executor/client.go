// Package executor is a thin HTTP/JSON client for the executor service a
// sandbox container publishes on its assigned executor port. The executor
// service itself is an external collaborator (out of scope); this package
// only speaks the wire contract in package protocol.
package executor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/p-arndt/ipyboxd/protocol"
)

// ErrTimeout is returned when the executor reports that a code block did
// not finish within its timeout.
var ErrTimeout = errors.New("execution timed out")

// ExecutionError carries the trace produced by a code block that raised an
// exception, as reported by the executor service.
type ExecutionError struct {
	Trace string
}

func (e *ExecutionError) Error() string {
	if e.Trace == "" {
		return "execution failed"
	}
	return "execution failed: " + e.Trace
}

// Client dials one container's executor service over HTTP.
type Client struct {
	addr       string
	httpClient *http.Client
}

// New returns a client dialing the executor service at addr (host:port).
func New(addr string) *Client {
	return &Client{addr: addr, httpClient: &http.Client{}}
}

func (c *Client) baseURL() string {
	return "http://" + c.addr
}

// Execute runs code to completion and returns its aggregated result.
// Returns ErrTimeout if the executor reports the run exceeded its timeout,
// or *ExecutionError if the code raised.
func (c *Client) Execute(ctx context.Context, code string, timeout time.Duration) (*protocol.ExecuteResponse, error) {
	reqBody := protocol.ExecuteRequest{Code: code, TimeoutMs: int(timeout / time.Millisecond)}

	var resp protocol.ExecuteResponse
	if err := c.doJSON(ctx, http.MethodPost, "/execute", reqBody, &resp); err != nil {
		return nil, err
	}

	if resp.Error == "timeout" {
		return nil, ErrTimeout
	}
	if resp.Error != "" {
		return nil, &ExecutionError{Trace: resp.ErrorTrace}
	}
	return &resp, nil
}

// Handle tracks a submitted, possibly still-running execution.
type Handle struct {
	client      *Client
	ExecutionID string
	err         error
}

// Submit starts code executing without waiting for it to finish.
func (c *Client) Submit(ctx context.Context, code string) (*Handle, error) {
	reqBody := protocol.SubmitRequest{Code: code}

	var resp protocol.SubmitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/submit", reqBody, &resp); err != nil {
		return nil, err
	}
	return &Handle{client: c, ExecutionID: resp.ExecutionID}, nil
}

// Stream returns a channel of output chunks for the submitted execution.
// The channel closes on normal completion, a reported execution error, or
// timeout; call Err after the channel closes to learn which.
func (h *Handle) Stream(ctx context.Context, timeout time.Duration) (<-chan string, error) {
	url := fmt.Sprintf("%s/stream/%s?timeout_ms=%d", h.client.baseURL(), h.ExecutionID, timeout.Milliseconds())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("executor: build stream request: %w", err)
	}

	resp, err := h.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executor: stream request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("executor: unexpected stream status %d", resp.StatusCode)
	}

	out := make(chan string)
	go h.pump(resp.Body, out)
	return out, nil
}

// pump decodes newline-delimited StreamChunk frames from body, forwarding
// output chunks to out and recording the terminal outcome in h.err before
// closing out. Blank lines are ignored, matching the newline-framing
// convention used throughout this service's internal wire protocols.
func (h *Handle) pump(body io.ReadCloser, out chan<- string) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), protocol.MaxOutputBytes+4096)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk protocol.StreamChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			h.err = fmt.Errorf("executor: decode stream chunk: %w", err)
			return
		}

		if chunk.Final {
			switch chunk.Error {
			case "":
			case "timeout":
				h.err = ErrTimeout
			default:
				h.err = &ExecutionError{Trace: chunk.ErrorTrace}
			}
			return
		}
		out <- chunk.Output
	}
	if err := scanner.Err(); err != nil {
		h.err = fmt.Errorf("executor: read stream: %w", err)
	}
}

// Err reports the terminal outcome of a completed Stream call. Only valid
// after the channel returned by Stream has closed.
func (h *Handle) Err() error {
	return h.err
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("executor: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("executor: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executor: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var resErr protocol.ResourceError
		_ = json.NewDecoder(resp.Body).Decode(&resErr)
		return fmt.Errorf("executor: status %d: %s", resp.StatusCode, resErr.Detail)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("executor: decode response: %w", err)
	}
	return nil
}
