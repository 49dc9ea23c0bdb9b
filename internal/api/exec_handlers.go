package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/p-arndt/ipyboxd/internal/executor"
	"github.com/p-arndt/ipyboxd/protocol"
)

// errExecutionTimedOut records a timed-out execution's terminal status on
// the container manager; it is never itself written to the HTTP response,
// whose body instead carries a plain-English message.
var errExecutionTimedOut = errors.New("execution timed out")

type executeRequest struct {
	Code    string `json:"code"`
	Timeout int    `json:"timeout,omitempty"` // seconds
}

type executeResponse struct {
	ExecutionID string `json:"execution_id"`
	Text        string `json:"text,omitempty"`
	HasImages   bool   `json:"has_images"`
	Error       string `json:"error,omitempty"`
	ErrorTrace  string `json:"error_trace,omitempty"`
	Completed   bool   `json:"completed"`
}

// execTimeout resolves the caller-supplied timeout (seconds) or the package
// default when unset.
func execTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return protocol.DefaultExecTimeout
	}
	return time.Duration(seconds) * time.Second
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.containers.Get(id)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	var req executeRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeValidationError(w, err.Error())
		return
	}
	if req.Code == "" {
		writeValidationError(w, "code is required")
		return
	}
	if len(req.Code) > protocol.MaxInlineCodeBytes {
		writeValidationError(w, fmt.Sprintf("code is too large (%d bytes), max is %d bytes", len(req.Code), protocol.MaxInlineCodeBytes))
		return
	}

	executionID := uuid.New().String()
	s.containers.RegisterExecution(id, executionID)

	client := executor.New(rec.ExecutorPort)
	resp, err := client.Execute(r.Context(), req.Code, execTimeout(req.Timeout))

	switch {
	case err == nil:
		_ = s.containers.CompleteExecution(executionID, nil)
		writeJSON(w, http.StatusOK, executeResponse{
			ExecutionID: executionID,
			Text:        resp.Text,
			HasImages:   len(resp.Images) > 0,
			Completed:   true,
		})

	case errors.Is(err, executor.ErrTimeout):
		_ = s.containers.CompleteExecution(executionID, errExecutionTimedOut)
		writeJSON(w, http.StatusOK, executeResponse{
			ExecutionID: executionID,
			Error:       "Execution timed out",
			Completed:   true,
		})

	default:
		var execErr *executor.ExecutionError
		if errors.As(err, &execErr) {
			_ = s.containers.CompleteExecution(executionID, err)
			writeJSON(w, http.StatusOK, executeResponse{
				ExecutionID: executionID,
				Error:       err.Error(),
				ErrorTrace:  execErr.Trace,
				Completed:   true,
			})
			return
		}
		s.logger.Error("execute", "container_id", id, "execution_id", executionID, "error", err)
		_ = s.containers.CompleteExecution(executionID, err)
		writeAPIError(w, err)
	}
}

// handleExecuteStream streams output chunks as they are produced. Unlike
// handleExecute, a failure that happens after the SSE response has begun
// (submit succeeded, the subsequent streaming read then failed) cannot be
// reported as an HTTP error anymore; it surfaces as a "data: [ERROR] ..."
// event within the otherwise-normal stream.
func (s *Server) handleExecuteStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.containers.Get(id)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	var req executeRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeValidationError(w, err.Error())
		return
	}
	if req.Code == "" {
		writeValidationError(w, "code is required")
		return
	}
	if len(req.Code) > protocol.MaxInlineCodeBytes {
		writeValidationError(w, fmt.Sprintf("code is too large (%d bytes), max is %d bytes", len(req.Code), protocol.MaxInlineCodeBytes))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeAPIError(w, errors.New("streaming not supported by this response writer"))
		return
	}

	client := executor.New(rec.ExecutorPort)

	executionID := uuid.New().String()
	s.containers.RegisterExecution(id, executionID)

	handle, err := client.Submit(r.Context(), req.Code)
	if err != nil {
		s.logger.Error("submit", "container_id", id, "execution_id", executionID, "error", err)
		_ = s.containers.CompleteExecution(executionID, err)
		writeAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Execution-Id", executionID)
	w.WriteHeader(http.StatusOK)

	chunks, err := handle.Stream(r.Context(), execTimeout(req.Timeout))
	if err != nil {
		s.logger.Error("stream", "container_id", id, "execution_id", executionID, "error", err)
		_ = s.containers.CompleteExecution(executionID, err)
		fmt.Fprintf(w, "data: [ERROR] %s\n\n", err.Error())
		flusher.Flush()
		return
	}

	for chunk := range chunks {
		fmt.Fprintf(w, "data: %s\n\n", chunk)
		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		default:
		}
	}

	if streamErr := handle.Err(); streamErr != nil {
		message := streamErr.Error()
		if errors.Is(streamErr, executor.ErrTimeout) {
			message = "Execution timed out"
		}
		_ = s.containers.CompleteExecution(executionID, streamErr)
		fmt.Fprintf(w, "data: [ERROR] %s\n\n", message)
		flusher.Flush()
		return
	}

	_ = s.containers.CompleteExecution(executionID, nil)
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func (s *Server) handleExecutionStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := s.containers.ExecutionStatus(r.PathValue("id"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
