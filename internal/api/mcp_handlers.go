package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/p-arndt/ipyboxd/internal/executor"
	"github.com/p-arndt/ipyboxd/internal/resourceclient"
	"github.com/p-arndt/ipyboxd/protocol"
)

// mcpSourcesRelpath is the fixed directory generated MCP client sources
// live under inside a container's workspace, mirroring the convention the
// resource service itself assumes (see internal/resourceclient's tests).
const mcpSourcesRelpath = "mcpgen"

func (s *Server) handleGenerateMCPSources(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	serverName := r.PathValue("server_name")

	rec, err := s.containers.Get(id)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	var params protocol.MCPServerParams
	if err := decodeJSONBody(w, r, &params); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	names, err := resourceclient.New(rec.ResourcePort).GenerateMCPSources(r.Context(), mcpSourcesRelpath, serverName, params)
	if err != nil {
		s.logger.Error("generate mcp sources", "container_id", id, "server_name", serverName, "error", err)
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.GenerateMCPSourcesResponse{ToolNames: names})
}

func (s *Server) handleGetMCPSources(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	serverName := r.PathValue("server_name")

	rec, err := s.containers.Info(id)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	resp, err := resourceclient.New(rec.ResourcePort).GetMCPSources(r.Context(), mcpSourcesRelpath, serverName)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// callToolResponse mirrors a tool call's outcome as a 200-OK body: either a
// result, or an error message when the generated script raised or timed out.
type callToolResponse struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// handleCallMCPTool is a convenience surface over a generated tool module:
// it validates the tool is registered, builds a small script that imports
// the tool's Params/run pair, feeds it the caller's arguments as a
// base64-wrapped JSON blob (sidestepping any Python/JSON literal quoting
// mismatch), awaits the call, and prints its result as {"result": ...} for
// the executor to hand back verbatim. Execution failures and timeouts
// surface as a 200 body with an error field, not an HTTP error, matching
// the convenience surface's own outcome reporting.
func (s *Server) handleCallMCPTool(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	serverName := r.PathValue("server_name")
	toolName := r.PathValue("tool_name")

	rec, err := s.containers.Get(id)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	var req struct {
		Params  map[string]any `json:"params"`
		Timeout int            `json:"timeout,omitempty"` // seconds
	}
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	sources, err := resourceclient.New(rec.ResourcePort).GetMCPSources(r.Context(), mcpSourcesRelpath, serverName)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if !hasToolNamed(sources.Tools, toolName) {
		writeValidationError(w, fmt.Sprintf("tool %q is not registered for mcp server %q", toolName, serverName))
		return
	}

	paramsJSON, err := json.Marshal(req.Params)
	if err != nil {
		writeValidationError(w, "invalid params: "+err.Error())
		return
	}

	code := buildToolCallScript(serverName, toolName, paramsJSON)

	client := executor.New(rec.ExecutorPort)
	resp, err := client.Execute(r.Context(), code, execTimeout(req.Timeout))
	switch {
	case err == nil:
		var toolResult callToolResponse
		if unmarshalErr := json.Unmarshal([]byte(resp.Text), &toolResult); unmarshalErr != nil {
			writeAPIError(w, fmt.Errorf("call mcp tool: decode result: %w", unmarshalErr))
			return
		}
		writeJSON(w, http.StatusOK, toolResult)

	case errors.Is(err, executor.ErrTimeout):
		writeJSON(w, http.StatusOK, callToolResponse{Error: "Execution timed out"})

	default:
		var execErr *executor.ExecutionError
		if errors.As(err, &execErr) {
			writeJSON(w, http.StatusOK, callToolResponse{Error: err.Error()})
			return
		}
		s.logger.Error("call mcp tool", "container_id", id, "server_name", serverName, "tool_name", toolName, "error", err)
		writeAPIError(w, err)
	}
}

func hasToolNamed(tools []protocol.ToolDescriptor, name string) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

func buildToolCallScript(serverName, toolName string, paramsJSON []byte) string {
	encoded := base64.StdEncoding.EncodeToString(paramsJSON)
	return fmt.Sprintf(`import asyncio, base64, json
from %s.%s.%s import Params, run

async def _main():
    params = Params(**json.loads(base64.b64decode("%s").decode("utf-8")))
    result = await run(params)
    print(json.dumps({"result": result}))

asyncio.run(_main())
`, mcpSourcesRelpath, serverName, toolName, encoded)
}
