// Package api wires the HTTP surface: routing, request validation, auth,
// and error mapping, over the container manager, executor/resource
// clients, and MCP proxy.
package api

import (
	"log/slog"
	"net/http"

	"github.com/p-arndt/ipyboxd/internal/config"
	"github.com/p-arndt/ipyboxd/internal/mcpproxy"
)

// Server holds the dependencies every handler needs and owns the mux.
type Server struct {
	cfg        *config.Config
	containers ContainerManager
	mcpProxy   *mcpproxy.Proxy
	logger     *slog.Logger

	mux *http.ServeMux
}

// NewServer builds a Server with routes installed.
func NewServer(cfg *config.Config, containers ContainerManager, proxy *mcpproxy.Proxy, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:        cfg,
		containers: containers,
		mcpProxy:   proxy,
		logger:     logger,
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s
}

// Handler returns the fully wrapped handler: request-id outermost so every
// request (including rejected ones) gets an id for logging, auth inside it
// so an unauthenticated caller never reaches a handler.
func (s *Server) Handler() http.Handler {
	return s.requestIDMiddleware(s.authMiddleware(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /containers", s.handleCreateContainer)
	s.mux.HandleFunc("GET /containers", s.handleListContainers)
	s.mux.HandleFunc("GET /containers/{id}", s.handleGetContainer)
	s.mux.HandleFunc("DELETE /containers/{id}", s.handleDeleteContainer)
	s.mux.HandleFunc("POST /containers/{id}/firewall", s.handleSetFirewall)

	s.mux.HandleFunc("POST /containers/{id}/execute", s.handleExecute)
	s.mux.HandleFunc("POST /containers/{id}/execute/stream", s.handleExecuteStream)
	s.mux.HandleFunc("GET /executions/{id}", s.handleExecutionStatus)

	s.mux.HandleFunc("PUT /containers/{id}/mcp/{server_name}", s.handleGenerateMCPSources)
	s.mux.HandleFunc("GET /containers/{id}/mcp/{server_name}", s.handleGetMCPSources)
	s.mux.HandleFunc("POST /containers/{id}/mcp/{server_name}/{tool_name}", s.handleCallMCPTool)

	s.mux.HandleFunc("POST /containers/{container_id}/mcp-proxy/{server_name}", s.mcpProxy.HandleHTTP)

	s.mux.HandleFunc("POST /containers/{id}/files/{relpath...}", s.handleUploadFile)
	s.mux.HandleFunc("GET /containers/{id}/files/{relpath...}", s.handleDownloadFile)
	s.mux.HandleFunc("DELETE /containers/{id}/files/{relpath...}", s.handleDeleteFile)

	s.mux.HandleFunc("POST /containers/{id}/directories/{relpath...}", s.handleUploadDirectory)
	s.mux.HandleFunc("GET /containers/{id}/directories/{relpath...}", s.handleDownloadDirectory)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
