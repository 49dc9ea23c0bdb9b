package api

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/p-arndt/ipyboxd/internal/resourceclient"
	"github.com/p-arndt/ipyboxd/protocol"
)

// maxMultipartMemory bounds the portion of a multipart upload form kept in
// memory before the rest spills to a temp file.
const maxMultipartMemory = 4 * 1024 * 1024

// resourceClientFor resolves the container and builds a resourceclient
// pointed at its resource service, or writes an error response and
// returns ok=false.
func (s *Server) resourceClientFor(w http.ResponseWriter, r *http.Request, containerID string) (*resourceclient.Client, bool) {
	rec, err := s.containers.Get(containerID)
	if err != nil {
		writeAPIError(w, err)
		return nil, false
	}
	return resourceclient.New(rec.ResourcePort), true
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	relpath := r.PathValue("relpath")
	if err := validateRelpath(relpath); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	client, ok := s.resourceClientFor(w, r, id)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeValidationError(w, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeValidationError(w, "file form field is required: "+err.Error())
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, protocol.MaxUploadBytes+1))
	if err != nil {
		writeValidationError(w, "failed to read file: "+err.Error())
		return
	}
	if len(content) > protocol.MaxUploadBytes {
		writeValidationError(w, fmt.Sprintf("file exceeds the %d byte upload limit", protocol.MaxUploadBytes))
		return
	}

	remotePath := strings.TrimSuffix(relpath, "/") + "/" + header.Filename
	if err := client.UploadFileContent(r.Context(), remotePath, content); err != nil {
		s.logger.Error("upload file", "container_id", id, "relpath", remotePath, "error", err)
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("File uploaded to %s/%s", relpath, header.Filename)})
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	relpath := r.PathValue("relpath")
	if err := validateRelpath(relpath); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	client, ok := s.resourceClientFor(w, r, id)
	if !ok {
		return
	}

	maxBytes := 0
	if v := r.URL.Query().Get("max_bytes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeValidationError(w, "max_bytes must be a positive integer")
			return
		}
		maxBytes = n
	}

	content, truncated, err := client.DownloadFileContent(r.Context(), relpath, maxBytes)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, path.Base(relpath)))
	if truncated {
		w.Header().Set("X-Truncated", "true")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	relpath := r.PathValue("relpath")
	if err := validateRelpath(relpath); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	client, ok := s.resourceClientFor(w, r, id)
	if !ok {
		return
	}

	if err := client.DeleteFile(r.Context(), relpath); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "file deleted"})
}

func (s *Server) handleUploadDirectory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	relpath := r.PathValue("relpath")
	if err := validateRelpath(relpath); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	client, ok := s.resourceClientFor(w, r, id)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeValidationError(w, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeValidationError(w, "file form field is required: "+err.Error())
		return
	}
	defer file.Close()

	if err := validateDirectoryArchiveName(header.Filename); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, protocol.MaxUploadBytes+1))
	if err != nil {
		writeValidationError(w, "failed to read archive: "+err.Error())
		return
	}
	if len(content) > protocol.MaxUploadBytes {
		writeValidationError(w, fmt.Sprintf("archive exceeds the %d byte upload limit", protocol.MaxUploadBytes))
		return
	}

	if err := client.UploadDirectoryContent(r.Context(), relpath, content); err != nil {
		s.logger.Error("upload directory", "container_id", id, "relpath", relpath, "error", err)
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "directory uploaded"})
}

func (s *Server) handleDownloadDirectory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	relpath := r.PathValue("relpath")
	if err := validateRelpath(relpath); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	client, ok := s.resourceClientFor(w, r, id)
	if !ok {
		return
	}

	archive, err := client.DownloadDirectoryContent(r.Context(), relpath)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	archiveName := path.Base(strings.TrimSuffix(relpath, "/")) + ".tar.gz"
	w.Header().Set("Content-Type", "application/x-gzip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, archiveName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
