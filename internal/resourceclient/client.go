// Package resourceclient is a thin HTTP/JSON client for the resource
// service a sandbox container publishes on its assigned resource port. The
// resource service itself is an external collaborator (out of scope); this
// package only speaks the wire contract in package protocol.
package resourceclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/p-arndt/ipyboxd/protocol"
)

// ErrNotFound is returned when the resource service has no content at the
// requested path, or no generated sources for the requested server.
var ErrNotFound = errors.New("not found")

// Client dials one container's resource service over HTTP.
type Client struct {
	addr       string
	httpClient *http.Client
}

// New returns a client dialing the resource service at addr (host:port).
func New(addr string) *Client {
	return &Client{addr: addr, httpClient: &http.Client{}}
}

func (c *Client) baseURL() string {
	return "http://" + c.addr
}

// UploadFileContent writes content to relpath, creating parent directories
// as needed.
func (c *Client) UploadFileContent(ctx context.Context, relpath string, content []byte) error {
	req := protocol.FileContentRequest{
		Path:          relpath,
		ContentBase64: base64.StdEncoding.EncodeToString(content),
	}
	return c.doJSON(ctx, http.MethodPut, "/files/"+url.PathEscape(relpath), req, nil)
}

// DownloadFileContent reads up to maxBytes of relpath's content. maxBytes
// <= 0 applies protocol.DefaultMaxReadBytes.
func (c *Client) DownloadFileContent(ctx context.Context, relpath string, maxBytes int) (content []byte, truncated bool, err error) {
	if maxBytes <= 0 {
		maxBytes = protocol.DefaultMaxReadBytes
	}

	var resp protocol.FileContentResponse
	path := fmt.Sprintf("/files/%s?max_bytes=%d", url.PathEscape(relpath), maxBytes)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, false, err
	}

	decoded, err := base64.StdEncoding.DecodeString(resp.ContentBase64)
	if err != nil {
		return nil, false, fmt.Errorf("resourceclient: decode content: %w", err)
	}
	return decoded, resp.Truncated, nil
}

// DeleteFile removes relpath. Idempotent at the HTTP layer: ErrNotFound is
// only returned if the resource service reports the path never existed.
func (c *Client) DeleteFile(ctx context.Context, relpath string) error {
	return c.doJSON(ctx, http.MethodDelete, "/files/"+url.PathEscape(relpath), nil, nil)
}

// UploadDirectoryContent writes a tar+gzip archive's contents under relpath.
func (c *Client) UploadDirectoryContent(ctx context.Context, relpath string, archive []byte) error {
	req := protocol.DirectoryArchiveResponse{ArchiveBase64: base64.StdEncoding.EncodeToString(archive)}
	return c.doJSON(ctx, http.MethodPut, "/directories/"+url.PathEscape(relpath), req, nil)
}

// DownloadDirectoryContent returns a tar+gzip archive of relpath's contents.
func (c *Client) DownloadDirectoryContent(ctx context.Context, relpath string) ([]byte, error) {
	var resp protocol.DirectoryArchiveResponse
	if err := c.doJSON(ctx, http.MethodGet, "/directories/"+url.PathEscape(relpath), nil, &resp); err != nil {
		return nil, err
	}

	decoded, err := base64.StdEncoding.DecodeString(resp.ArchiveBase64)
	if err != nil {
		return nil, fmt.Errorf("resourceclient: decode archive: %w", err)
	}
	return decoded, nil
}

// SetFirewall configures the egress allowlist enforced inside the
// container, proxying the request to the resource service unmodified.
func (c *Client) SetFirewall(ctx context.Context, allowedDomains []string) (string, error) {
	req := protocol.FirewallRequest{AllowedDomains: allowedDomains}
	var resp protocol.FirewallResponse
	if err := c.doJSON(ctx, http.MethodPost, "/firewall", req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// GetMCPSources returns the server params a server's generated sources were
// produced from and the tool descriptors they expose. Returns ErrNotFound
// if relpath/serverName has no generated sources.
func (c *Client) GetMCPSources(ctx context.Context, relpath, serverName string) (*protocol.MCPSourcesResponse, error) {
	path := fmt.Sprintf("/mcp-sources/%s/%s", url.PathEscape(relpath), url.PathEscape(serverName))
	var resp protocol.MCPSourcesResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateMCPSources materializes Python client source for serverName under
// relpath and returns the tool names produced. Idempotent: if sources
// already exist for (relpath, serverName) generated from identical params,
// generation is skipped and the existing tool names are returned.
func (c *Client) GenerateMCPSources(ctx context.Context, relpath, serverName string, params protocol.MCPServerParams) ([]string, error) {
	existing, err := c.GetMCPSources(ctx, relpath, serverName)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err == nil && mcpParamsEqual(existing.ServerParams, params) {
		names := make([]string, len(existing.Tools))
		for i, tool := range existing.Tools {
			names[i] = tool.Name
		}
		return names, nil
	}

	req := protocol.GenerateMCPSourcesRequest{Relpath: relpath, ServerName: serverName, ServerParams: params}
	var resp protocol.GenerateMCPSourcesResponse
	path := fmt.Sprintf("/mcp-sources/%s/%s", url.PathEscape(relpath), url.PathEscape(serverName))
	if err := c.doJSON(ctx, http.MethodPut, path, req, &resp); err != nil {
		return nil, err
	}
	return resp.ToolNames, nil
}

func mcpParamsEqual(a, b protocol.MCPServerParams) bool {
	if a.Command != b.Command || len(a.Args) != len(b.Args) || len(a.Env) != len(b.Env) {
		return false
	}
	for i := range a.Args {
		if a.Args[i] != b.Args[i] {
			return false
		}
	}
	for k, v := range a.Env {
		if b.Env[k] != v {
			return false
		}
	}
	return true
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("resourceclient: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, reader)
	if err != nil {
		return fmt.Errorf("resourceclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("resourceclient: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var resErr protocol.ResourceError
		_ = json.NewDecoder(resp.Body).Decode(&resErr)
		return fmt.Errorf("resourceclient: status %d: %s", resp.StatusCode, resErr.Detail)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("resourceclient: decode response: %w", err)
	}
	return nil
}
