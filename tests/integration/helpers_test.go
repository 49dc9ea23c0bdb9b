//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

type testClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func newTestClient(baseURL, apiKey string) *testClient {
	return &testClient{baseURL: baseURL, apiKey: apiKey, client: &http.Client{}}
}

func (c *testClient) doRequest(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	require.NoError(t, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	require.NoError(t, err)
	return resp
}

func (c *testClient) createContainer(t *testing.T, tag string) map[string]any {
	t.Helper()
	resp := c.doRequest(t, http.MethodPost, "/containers", map[string]any{"tag": tag})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "failed to create container")
	return decodeResponse(t, resp)
}

func (c *testClient) execute(t *testing.T, containerID, code string) map[string]any {
	t.Helper()
	resp := c.doRequest(t, http.MethodPost, fmt.Sprintf("/containers/%s/execute", containerID), map[string]any{"code": code})
	return decodeResponse(t, resp)
}

func (c *testClient) uploadFile(t *testing.T, containerID, relpath, filename, content string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/containers/%s/files/%s", c.baseURL, containerID, relpath), &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	resp, err := c.client.Do(req)
	require.NoError(t, err)
	return resp
}

func (c *testClient) downloadFile(t *testing.T, containerID, relpath string) *http.Response {
	t.Helper()
	return c.doRequest(t, http.MethodGet, fmt.Sprintf("/containers/%s/files/%s", containerID, relpath), nil)
}

func (c *testClient) uploadDirectory(t *testing.T, containerID, relpath, archiveFilename string, archive []byte) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", archiveFilename)
	require.NoError(t, err)
	_, err = fw.Write(archive)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/containers/%s/directories/%s", c.baseURL, containerID, relpath), &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	resp, err := c.client.Do(req)
	require.NoError(t, err)
	return resp
}

func (c *testClient) destroyContainer(t *testing.T, containerID string) {
	t.Helper()
	resp := c.doRequest(t, http.MethodDelete, fmt.Sprintf("/containers/%s", containerID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func decodeResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}
