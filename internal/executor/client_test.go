package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-arndt/ipyboxd/protocol"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.Listener.Addr().String())
}

func TestExecute_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/execute", r.URL.Path)
		var req protocol.ExecuteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "print(1)", req.Code)

		json.NewEncoder(w).Encode(protocol.ExecuteResponse{Text: "1\n", DurationMs: 5})
	})

	resp, err := c.Execute(context.Background(), "print(1)", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "1\n", resp.Text)
	assert.Equal(t, int64(5), resp.DurationMs)
}

func TestExecute_ReportsExecutionError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(protocol.ExecuteResponse{Error: "exception", ErrorTrace: "Traceback..."})
	})

	_, err := c.Execute(context.Background(), "raise ValueError()", time.Second)
	require.Error(t, err)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "Traceback...", execErr.Trace)
}

func TestExecute_ReportsTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(protocol.ExecuteResponse{Error: "timeout"})
	})

	_, err := c.Execute(context.Background(), "while True: pass", time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestExecute_NonOKStatusSurfacesDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(protocol.ResourceError{Detail: "boom"})
	})

	_, err := c.Execute(context.Background(), "print(1)", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestSubmitAndStream_CollectsChunksUntilFinal(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/submit":
			json.NewEncoder(w).Encode(protocol.SubmitResponse{ExecutionID: "exec-1"})
		case "/stream/exec-1":
			for _, chunk := range []protocol.StreamChunk{
				{Output: "0\n"},
				{Output: "1\n"},
				{Final: true, DurationMs: 9},
			} {
				data, _ := json.Marshal(chunk)
				fmt.Fprintf(w, "%s\n", data)
			}
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	handle, err := c.Submit(context.Background(), "for i in range(2): print(i)")
	require.NoError(t, err)
	assert.Equal(t, "exec-1", handle.ExecutionID)

	ch, err := handle.Stream(context.Background(), 5*time.Second)
	require.NoError(t, err)

	var chunks []string
	for chunk := range ch {
		chunks = append(chunks, chunk)
	}

	assert.Equal(t, []string{"0\n", "1\n"}, chunks)
	assert.NoError(t, handle.Err())
}

func TestStream_FinalErrorChunkSetsErr(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/submit":
			json.NewEncoder(w).Encode(protocol.SubmitResponse{ExecutionID: "exec-2"})
		case "/stream/exec-2":
			chunk := protocol.StreamChunk{Final: true, Error: "exception", ErrorTrace: "boom trace"}
			data, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "%s\n", data)
		}
	})

	handle, err := c.Submit(context.Background(), "raise RuntimeError()")
	require.NoError(t, err)

	ch, err := handle.Stream(context.Background(), time.Second)
	require.NoError(t, err)
	for range ch {
	}

	var execErr *ExecutionError
	require.ErrorAs(t, handle.Err(), &execErr)
	assert.Equal(t, "boom trace", execErr.Trace)
}

func TestStream_FinalTimeoutChunkSetsErrTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/submit":
			json.NewEncoder(w).Encode(protocol.SubmitResponse{ExecutionID: "exec-3"})
		case "/stream/exec-3":
			chunk := protocol.StreamChunk{Final: true, Error: "timeout"}
			data, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "%s\n", data)
		}
	})

	handle, err := c.Submit(context.Background(), "while True: pass")
	require.NoError(t, err)

	ch, err := handle.Stream(context.Background(), time.Millisecond)
	require.NoError(t, err)
	for range ch {
	}

	assert.ErrorIs(t, handle.Err(), ErrTimeout)
}
