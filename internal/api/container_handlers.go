package api

import (
	"net/http"

	"github.com/p-arndt/ipyboxd/internal/containermgr"
	"github.com/p-arndt/ipyboxd/internal/resourceclient"
	"github.com/p-arndt/ipyboxd/protocol"
)

type createContainerRequest struct {
	Tag              string            `json:"tag"`
	Binds            map[string]string `json:"binds,omitempty"`
	Env              map[string]string `json:"env,omitempty"`
	ShowPullProgress bool              `json:"show_pull_progress,omitempty"`
}

func (s *Server) handleCreateContainer(w http.ResponseWriter, r *http.Request) {
	var req createContainerRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeValidationError(w, err.Error())
		return
	}
	if req.Tag == "" {
		req.Tag = s.cfg.DefaultTag
	}

	rec, err := s.containers.Create(r.Context(), containermgr.CreateOpts{
		Tag:              req.Tag,
		Binds:            req.Binds,
		Env:              req.Env,
		ShowPullProgress: req.ShowPullProgress,
	})
	if err != nil {
		s.logger.Error("create container", "tag", req.Tag, "error", err)
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListContainers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.containers.List())
}

// handleGetContainer is a pure info query: it must not reset the
// container's idle clock, so it goes through Info rather than Get.
func (s *Server) handleGetContainer(w http.ResponseWriter, r *http.Request) {
	rec, err := s.containers.Info(r.PathValue("id"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteContainer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.containers.Destroy(r.Context(), id); err != nil {
		s.logger.Error("destroy container", "container_id", id, "error", err)
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "container destroyed"})
}

func (s *Server) handleSetFirewall(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.containers.Get(id)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	var req protocol.FirewallRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	msg, err := resourceclient.New(rec.ResourcePort).SetFirewall(r.Context(), req.AllowedDomains)
	if err != nil {
		s.logger.Error("set firewall", "container_id", id, "error", err)
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.FirewallResponse{Message: msg})
}
