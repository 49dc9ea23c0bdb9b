// Package mcpproxy owns the registry of live MCP sessions, correlates HTTP
// requests with them, runs the idle session reaper, and materialises both
// JSON and SSE response shapes for the proxy HTTP endpoint.
package mcpproxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/p-arndt/ipyboxd/internal/containermgr"
	"github.com/p-arndt/ipyboxd/internal/mcpsession"
)

var (
	// ErrContainerNotFound is surfaced at the HTTP boundary as 404.
	ErrContainerNotFound = errors.New("container not found")
	// ErrSessionStart is surfaced at the HTTP boundary as 500.
	ErrSessionStart = errors.New("mcp session failed to start")
)

// defaultCommand/defaultArgs mirror the bridge original_source falls back
// to when a caller does not name an explicit command: supergateway
// wrapping the conventionally-named `mcp-server-<name>` stdio binary.
const defaultCommand = "uvx"

func defaultArgs(serverName string) []string {
	return []string{"supergateway", "--stdio", "mcp-server-" + serverName}
}

// correlatorFrameTimeout bounds how long the correlator waits for one
// response frame from a session before synthesizing a timeout error.
const correlatorFrameTimeout = 30 * time.Second

// Frame is one JSON-RPC 2.0 object, decoded or about to be encoded.
type Frame = map[string]any

// ContainerManager is the slice of the container registry the proxy needs:
// an existence check before resolving or creating a session. Info (not
// Get) is used deliberately — an MCP call should not reset a container's
// idle clock as a side effect of the check.
type ContainerManager interface {
	Info(id string) (*containermgr.ContainerRecord, error)
}

// Proxy owns the session registry and its reaper.
type Proxy struct {
	containers     ContainerManager
	sessionTimeout time.Duration
	logger         *slog.Logger

	mu       sync.Mutex
	sessions map[string]*mcpsession.Session
}

// New constructs a Proxy. sessionTimeout is the idle threshold the reaper
// applies to every session.
func New(containers ContainerManager, sessionTimeout time.Duration, logger *slog.Logger) *Proxy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Proxy{
		containers:     containers,
		sessionTimeout: sessionTimeout,
		logger:         logger,
		sessions:       make(map[string]*mcpsession.Session),
	}
}

// GetOrCreateSession returns the session named by sessionID if it exists
// and belongs to (containerID, serverName), touching its activity clock.
// Otherwise it mints a fresh session id, starts a new session with params
// (filling in documented defaults for an empty Command), and registers it.
func (p *Proxy) GetOrCreateSession(containerID, serverName, sessionID string, params mcpsession.Params) (*mcpsession.Session, error) {
	if sessionID != "" {
		p.mu.Lock()
		sess, ok := p.sessions[sessionID]
		p.mu.Unlock()
		if ok && sess.ContainerID == containerID && sess.ServerName == serverName {
			sess.Touch()
			return sess, nil
		}
	}

	// A supplied sessionID that didn't match above names a different (or
	// gone) session — never reused as the new session's identity, since
	// doing so would silently evict and orphan whatever was registered
	// under it.
	newID := "mcp-" + uuid.New().String()
	if params.Command == "" {
		params.Command = defaultCommand
	}
	if params.Args == nil {
		params.Args = defaultArgs(serverName)
	}

	sess := mcpsession.New(newID, containerID, serverName, params, p.logger)
	if err := sess.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionStart, err)
	}

	p.mu.Lock()
	p.sessions[newID] = sess
	p.mu.Unlock()

	return sess, nil
}

// Handle resolves or creates a session, sends request to it, and returns a
// channel of correlator frames plus the session id the caller should echo.
// A non-nil error means the session could not be resolved or started at
// all (container not found, session start failure) — these are HTTP-level
// failures, distinct from the synthetic JSON-RPC error frames correlate
// emits for timeouts and in-flight failures.
func (p *Proxy) Handle(ctx context.Context, containerID, serverName string, request Frame, sessionID string, params mcpsession.Params) (<-chan Frame, string, error) {
	if _, err := p.containers.Info(containerID); err != nil {
		return nil, "", fmt.Errorf("%w: %s", ErrContainerNotFound, containerID)
	}

	sess, err := p.GetOrCreateSession(containerID, serverName, sessionID, params)
	if err != nil {
		return nil, "", err
	}

	out := make(chan Frame, 1)
	go p.correlate(ctx, sess, request, out)
	return out, sess.ID, nil
}

// correlate sends request, then yields every frame the session produces
// until one whose id matches the request's, a timeout, or an error. For a
// notification (request id absent or null), it sends and returns
// immediately without waiting for a response.
func (p *Proxy) correlate(ctx context.Context, sess *mcpsession.Session, request Frame, out chan<- Frame) {
	defer close(out)

	reqID := request["id"]
	isNotification := reqID == nil

	if err := sess.Send(ctx, request); err != nil {
		out <- internalErrorFrame(reqID, err)
		return
	}

	if method, _ := request["method"].(string); method == "initialize" {
		sess.MarkInitialized()
	}

	if isNotification {
		return
	}

	for {
		frame, err := sess.Receive(ctx, correlatorFrameTimeout)
		if err != nil {
			if errors.Is(err, mcpsession.ErrTimeout) {
				out <- frameWithError(reqID, -32603, "Timeout waiting for response from MCP server")
			} else {
				out <- internalErrorFrame(reqID, err)
			}
			return
		}

		out <- frame

		if id, ok := frame["id"]; ok && reflect.DeepEqual(id, reqID) {
			return
		}
	}
}

func internalErrorFrame(id any, err error) Frame {
	return frameWithError(id, -32603, "Internal error: "+err.Error())
}

func frameWithError(id any, code int, message string) Frame {
	return Frame{
		"jsonrpc": "2.0",
		"error":   map[string]any{"code": code, "message": message},
		"id":      id,
	}
}

// RunReaper scans for idle sessions every interval and stops any exceeding
// the configured session timeout. It blocks until ctx is cancelled.
func (p *Proxy) RunReaper(ctx context.Context, interval time.Duration) {
	p.logger.Info("mcp proxy reaper started", "interval", interval, "session_timeout", p.sessionTimeout)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("mcp proxy reaper stopped")
			return
		case <-ticker.C:
			p.reapIdle(ctx)
		}
	}
}

func (p *Proxy) reapIdle(ctx context.Context) {
	p.mu.Lock()
	var idle []string
	for id, sess := range p.sessions {
		if sess.IsIdle(p.sessionTimeout) {
			idle = append(idle, id)
		}
	}
	p.mu.Unlock()

	for _, id := range idle {
		p.mu.Lock()
		sess, ok := p.sessions[id]
		if ok {
			delete(p.sessions, id)
		}
		p.mu.Unlock()
		if !ok {
			continue
		}
		p.logger.Info("reaping idle mcp session", "session_id", id)
		if err := sess.Stop(ctx); err != nil {
			p.logger.Error("reaper: stop session failed", "session_id", id, "error", err)
		}
	}
}

// Stop clears the registry and stops every live session concurrently. It
// does not stop the reaper; the caller cancels the reaper's context. The
// first session stop failure is returned; it does not prevent the rest
// from stopping.
func (p *Proxy) Stop(ctx context.Context) error {
	p.mu.Lock()
	sessions := make([]*mcpsession.Session, 0, len(p.sessions))
	for _, sess := range p.sessions {
		sessions = append(sessions, sess)
	}
	p.sessions = make(map[string]*mcpsession.Session)
	p.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, sess := range sessions {
		sess := sess
		g.Go(func() error {
			return sess.Stop(gctx)
		})
	}
	return g.Wait()
}
