// Package protocol defines the JSON wire types exchanged between the
// control plane and the executor/resource services a sandbox container
// exposes over its two published TCP ports.
package protocol

import "time"

// ExecuteRequest is sent to the executor service to run a code block to
// completion and get a single aggregated result back.
type ExecuteRequest struct {
	Code      string `json:"code"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`
}

// ExecuteResponse is the aggregated result of a completed execution. Images
// are base64-encoded blobs (e.g. matplotlib figure output) produced as a
// side effect of the code block; HTTP callers see only whether any were
// produced (has_images), not the image data.
type ExecuteResponse struct {
	Text       string   `json:"text"`
	Images     []string `json:"images,omitempty"`
	Error      string   `json:"error,omitempty"`
	ErrorTrace string   `json:"error_trace,omitempty"`
	Truncated  bool     `json:"truncated,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

// SubmitRequest starts a code block executing without waiting for it to
// finish; the executor returns a handle immediately and the caller streams
// output separately via that handle.
type SubmitRequest struct {
	Code string `json:"code"`
}

// SubmitResponse carries the handle used to stream a submitted execution's
// output.
type SubmitResponse struct {
	ExecutionID string `json:"execution_id"`
}

// StreamChunk is one unit of streamed output for a submitted execution.
// Final is true on the last chunk, at which point Error/DurationMs are set.
type StreamChunk struct {
	Output     string `json:"output,omitempty"`
	Final      bool   `json:"final"`
	Error      string `json:"error,omitempty"`
	ErrorTrace string `json:"error_trace,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// MaxOutputBytes is the cap applied to aggregated execution output before
// it is truncated.
const MaxOutputBytes = 5 * 1024 * 1024 // 5 MB

// MaxInlineCodeBytes is the largest code payload accepted inline; requests
// over this size are rejected with InvalidRequest rather than staged to a
// file, since the executor service has no filesystem staging convention of
// its own.
const MaxInlineCodeBytes = 1 * 1024 * 1024 // 1 MB

// DefaultMaxReadBytes is the default cap on file reads via the resource
// service when the caller does not specify one.
const DefaultMaxReadBytes = 10 * 1024 * 1024 // 10 MB

// MaxUploadBytes is the cap on a single file/directory upload accepted by
// the HTTP surface before it is forwarded to the resource service.
const MaxUploadBytes = 10 * 1024 * 1024 // 10 MB

// FileContentRequest/Response carry file content to and from the resource
// service, base64-encoded to survive JSON transport unmodified.
type FileContentRequest struct {
	Path          string `json:"path"`
	ContentBase64 string `json:"content_base64,omitempty"`
	MaxBytes      int    `json:"max_bytes,omitempty"`
}

type FileContentResponse struct {
	ContentBase64 string `json:"content_base64"`
	Truncated     bool   `json:"truncated"`
}

// DirectoryArchiveResponse carries a tar+gzip archive of a directory,
// base64-encoded.
type DirectoryArchiveResponse struct {
	ArchiveBase64 string `json:"archive_base64"`
}

// MCPServerParams describes how to launch one MCP stdio server, used to
// generate its Python client source. The MCP proxy does not read it when
// starting a proxied session's subprocess.
type MCPServerParams struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// SchemaProperty is one property of a tool's input schema.
type SchemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ToolSchema is a tool's input (or return) schema: a property map plus the
// subset of properties that are required.
type ToolSchema struct {
	Properties map[string]SchemaProperty `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// ToolDescriptor is the schema a single registered MCP tool advertises.
type ToolDescriptor struct {
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	InputSchema  ToolSchema  `json:"input_schema"`
	ReturnSchema *ToolSchema `json:"return_schema,omitempty"`
}

// GenerateMCPSourcesRequest asks the resource service to materialize
// generated Python client source for one MCP server under
// relpath/server_name inside the container's workspace.
type GenerateMCPSourcesRequest struct {
	Relpath      string          `json:"relpath"`
	ServerName   string          `json:"server_name"`
	ServerParams MCPServerParams `json:"server_params"`
}

// GenerateMCPSourcesResponse lists the tool names generated.
type GenerateMCPSourcesResponse struct {
	ToolNames []string `json:"tool_names"`
}

// MCPSourcesResponse reports the server params a set of generated sources
// was produced from and the tool descriptors they expose, used both to
// serve GET requests and to decide whether a PUT is a no-op repeat.
type MCPSourcesResponse struct {
	ServerParams MCPServerParams  `json:"server_params"`
	Tools        []ToolDescriptor `json:"tools"`
}

// FirewallRequest configures the egress allowlist enforced inside a
// container, proxied verbatim to the resource service.
type FirewallRequest struct {
	AllowedDomains []string `json:"allowed_domains"`
}

// FirewallResponse acknowledges a firewall configuration change.
type FirewallResponse struct {
	Message string `json:"message"`
}

// ResourceError is the structured error body returned by the resource
// service on failure.
type ResourceError struct {
	Detail string `json:"detail"`
}

// DefaultExecTimeout is applied when a caller does not specify one.
const DefaultExecTimeout = 30 * time.Second
