package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-arndt/ipyboxd/internal/containermgr"
	"github.com/p-arndt/ipyboxd/protocol"
)

func fakeResourceServer(t *testing.T) (*httptest.Server, *string) {
	t.Helper()
	var storedFile, storedDir string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/files/dir/hello.txt":
			var req protocol.FileContentRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			storedFile = req.ContentBase64
		case r.Method == http.MethodGet && r.URL.Path == "/files/dir/hello.txt":
			json.NewEncoder(w).Encode(protocol.FileContentResponse{ContentBase64: storedFile})
		case r.Method == http.MethodDelete && r.URL.Path == "/files/dir/hello.txt":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut && r.URL.Path == "/directories/proj":
			var req protocol.DirectoryArchiveResponse
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			storedDir = req.ArchiveBase64
		case r.Method == http.MethodGet && r.URL.Path == "/directories/proj":
			json.NewEncoder(w).Encode(protocol.DirectoryArchiveResponse{ArchiveBase64: storedDir})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return srv, &storedFile
}

func multipartFileRequest(t *testing.T, url, fieldName, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(fieldName, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandleUploadAndDownloadFile_Roundtrip(t *testing.T) {
	srv, _ := fakeResourceServer(t)
	defer srv.Close()

	mgr := new(MockContainerManager)
	rec := &containermgr.ContainerRecord{ID: "c1", ResourcePort: srv.Listener.Addr().String()}
	mgr.On("Get", "c1").Return(rec, nil)

	s := newTestServer(t, mgr)

	uploadReq := multipartFileRequest(t, "/containers/c1/files/dir", "file", "hello.txt", []byte("hello"))
	uploadReq.SetPathValue("id", "c1")
	uploadReq.SetPathValue("relpath", "dir")
	uploadW := httptest.NewRecorder()
	s.handleUploadFile(uploadW, uploadReq)
	require.Equal(t, http.StatusOK, uploadW.Code)
	assert.Contains(t, uploadW.Body.String(), "File uploaded to dir/hello.txt")

	downloadReq := httptest.NewRequest(http.MethodGet, "/containers/c1/files/dir/hello.txt", nil)
	downloadReq.SetPathValue("id", "c1")
	downloadReq.SetPathValue("relpath", "dir/hello.txt")
	downloadW := httptest.NewRecorder()
	s.handleDownloadFile(downloadW, downloadReq)
	require.Equal(t, http.StatusOK, downloadW.Code)
	assert.Equal(t, "hello", downloadW.Body.String())
	assert.Equal(t, `attachment; filename="hello.txt"`, downloadW.Header().Get("Content-Disposition"))
}

func TestHandleUploadFile_RejectsPathTraversal(t *testing.T) {
	mgr := new(MockContainerManager)
	s := newTestServer(t, mgr)

	req := multipartFileRequest(t, "/containers/c1/files/..%2Fescape", "file", "x.txt", []byte("x"))
	req.SetPathValue("id", "c1")
	req.SetPathValue("relpath", "../escape")
	w := httptest.NewRecorder()
	s.handleUploadFile(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleUploadDirectory_RejectsNonArchiveFilename(t *testing.T) {
	mgr := new(MockContainerManager)
	rec := &containermgr.ContainerRecord{ID: "c1", ResourcePort: "unused:0"}
	mgr.On("Get", "c1").Return(rec, nil)

	s := newTestServer(t, mgr)

	req := multipartFileRequest(t, "/containers/c1/directories/proj", "file", "notes.txt", []byte("not an archive"))
	req.SetPathValue("id", "c1")
	req.SetPathValue("relpath", "proj")
	w := httptest.NewRecorder()
	s.handleUploadDirectory(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleUploadAndDownloadDirectory_Roundtrip(t *testing.T) {
	srv, _ := fakeResourceServer(t)
	defer srv.Close()

	mgr := new(MockContainerManager)
	rec := &containermgr.ContainerRecord{ID: "c1", ResourcePort: srv.Listener.Addr().String()}
	mgr.On("Get", "c1").Return(rec, nil)

	s := newTestServer(t, mgr)

	archive := []byte("fake-tar-gz-bytes")
	uploadReq := multipartFileRequest(t, "/containers/c1/directories/proj", "file", "proj.tar.gz", archive)
	uploadReq.SetPathValue("id", "c1")
	uploadReq.SetPathValue("relpath", "proj")
	uploadW := httptest.NewRecorder()
	s.handleUploadDirectory(uploadW, uploadReq)
	require.Equal(t, http.StatusOK, uploadW.Code)

	downloadReq := httptest.NewRequest(http.MethodGet, "/containers/c1/directories/proj", nil)
	downloadReq.SetPathValue("id", "c1")
	downloadReq.SetPathValue("relpath", "proj")
	downloadW := httptest.NewRecorder()
	s.handleDownloadDirectory(downloadW, downloadReq)
	require.Equal(t, http.StatusOK, downloadW.Code)
	assert.Equal(t, archive, downloadW.Body.Bytes())
	assert.Equal(t, "application/x-gzip", downloadW.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="proj.tar.gz"`, downloadW.Header().Get("Content-Disposition"))
}
