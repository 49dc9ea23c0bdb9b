package mcpproxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/p-arndt/ipyboxd/internal/mcpsession"
)

// maxRequestBodyBytes bounds a single JSON-RPC request or batch body.
const maxRequestBodyBytes = 2 * 1024 * 1024

// HandleHTTP implements POST /containers/{container_id}/mcp-proxy/{server_name}.
// It validates the container exists, parses a single JSON-RPC request object
// or a homogeneous batch, resolves or creates a session named by the
// Mcp-Session-Id request header (minted fresh if absent), and materializes
// the correlator's output either as SSE (Accept: text/event-stream) or as a
// single JSON response body.
func (p *Proxy) HandleHTTP(w http.ResponseWriter, r *http.Request) {
	containerID := r.PathValue("container_id")
	serverName := r.PathValue("server_name")

	if _, err := p.containers.Info(containerID); err != nil {
		http.Error(w, fmt.Sprintf("container %s not found", containerID), http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		writeJSONRPCError(w, http.StatusBadRequest, nil, -32700, "Parse error: "+err.Error())
		return
	}
	if !json.Valid(body) {
		writeJSONRPCError(w, http.StatusBadRequest, nil, -32700, "Parse error: body is not valid JSON")
		return
	}

	requests, isBatch, err := parseRequests(body)
	if err != nil {
		writeJSONRPCError(w, http.StatusBadRequest, nil, -32600, "Invalid Request: "+err.Error())
		return
	}

	sessionID := r.Header.Get("Mcp-Session-Id")
	var params mcpsession.Params

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		p.handleSSE(w, r, containerID, serverName, requests, sessionID, params)
		return
	}
	p.handleJSON(w, r, containerID, serverName, requests, isBatch, sessionID, params)
}

func (p *Proxy) handleJSON(w http.ResponseWriter, r *http.Request, containerID, serverName string, requests []Frame, isBatch bool, sessionID string, params mcpsession.Params) {
	results := make([]Frame, 0, len(requests))
	respSessionID := sessionID

	for _, req := range requests {
		frames, sid, err := p.Handle(r.Context(), containerID, serverName, req, sessionID, params)
		if err != nil {
			writeJSONRPCError(w, http.StatusInternalServerError, req["id"], -32603, "Internal error: "+err.Error())
			return
		}
		respSessionID = sid
		sessionID = sid

		var first Frame
		gotFirst := false
		for f := range frames {
			if !gotFirst {
				first = f
				gotFirst = true
			}
		}
		if gotFirst {
			results = append(results, first)
		}
	}

	if respSessionID != "" {
		w.Header().Set("Mcp-Session-Id", respSessionID)
	}

	if isBatch {
		writeJSON(w, http.StatusOK, results)
		return
	}
	if len(results) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, results[0])
}

func (p *Proxy) handleSSE(w http.ResponseWriter, r *http.Request, containerID, serverName string, requests []Frame, sessionID string, params mcpsession.Params) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	respSessionID := sessionID

	for _, req := range requests {
		frames, sid, err := p.Handle(r.Context(), containerID, serverName, req, sessionID, params)
		if err != nil {
			writeSSEFrame(w, flusher, internalErrorFrame(req["id"], err))
			continue
		}
		if respSessionID == "" {
			respSessionID = sid
			w.Header().Set("Mcp-Session-Id", respSessionID)
		}
		sessionID = sid

		for f := range frames {
			writeSSEFrame(w, flusher, f)
			select {
			case <-r.Context().Done():
				return
			default:
			}
		}
	}
}

func writeSSEFrame(w http.ResponseWriter, flusher http.Flusher, frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func writeJSONRPCError(w http.ResponseWriter, status int, id any, code int, message string) {
	writeJSON(w, status, Frame{
		"jsonrpc": "2.0",
		"error":   map[string]any{"code": code, "message": message},
		"id":      id,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// parseRequests accepts either a single JSON-RPC request object or a
// non-empty array of them (a batch), validating every element carries
// jsonrpc: "2.0" and a string method. It returns the decoded requests in
// order and whether the body was a batch.
func parseRequests(data []byte) ([]Frame, bool, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, false, fmt.Errorf("empty body")
	}

	if trimmed[0] == '[' {
		var batch []Frame
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, true, err
		}
		if len(batch) == 0 {
			return nil, true, fmt.Errorf("empty batch")
		}
		for _, item := range batch {
			if err := validateRequest(item); err != nil {
				return nil, true, err
			}
		}
		return batch, true, nil
	}

	var single Frame
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, false, err
	}
	if err := validateRequest(single); err != nil {
		return nil, false, err
	}
	return []Frame{single}, false, nil
}

func validateRequest(req Frame) error {
	if v, ok := req["jsonrpc"].(string); !ok || v != "2.0" {
		return fmt.Errorf("missing or invalid jsonrpc version")
	}
	if _, ok := req["method"].(string); !ok {
		return fmt.Errorf("missing method")
	}
	return nil
}
