// Package reload notifies the consuming proxy that certificate files changed.
// Three interchangeable mechanisms are supported: signaling the proxy
// container, an admin command on the local control socket, and an HTTP
// notification. Which one runs is decided once at startup from configuration.
package reload

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/docker/docker/client"
	"github.com/proxyops/certsyncd/pkg/common"
	"github.com/proxyops/certsyncd/pkg/common/iface"
)

// Dispatcher triggers a proxy reload. Trigger is invoked at most once per
// sync cycle, and only when that cycle wrote at least one certificate.
type Dispatcher interface {
	Trigger(ctx context.Context) error
	Strategy() string
}

// Select picks the reload mechanism by precedence: container signal beats
// control socket beats HTTP. With nothing configured a no-op dispatcher is
// returned that warns on every trigger.
func Select(cfg common.Config, log iface.Logger) (Dispatcher, error) {
	switch {
	case cfg.ReloadContainer != "":
		return NewContainerSignaler(cfg.ReloadContainer, cfg.ReloadSignal, cfg.ReloadTimeout, log)
	case cfg.ReloadSocket != "":
		return NewSocketReloader(cfg.ReloadSocket, cfg.ReloadTimeout, log), nil
	case cfg.ReloadURL != "":
		return NewHTTPReloader(cfg.ReloadURL, cfg.ReloadTimeout, log), nil
	default:
		return &noopDispatcher{log: log}, nil
	}
}

// containerAPI is the slice of the Docker client the signaler needs.
type containerAPI interface {
	ContainerKill(ctx context.Context, container, signal string) error
}

// ContainerSignaler delivers a signal to a named proxy container through the
// Docker API, the equivalent of `docker kill -s SIGUSR2 haproxy`.
type ContainerSignaler struct {
	api       containerAPI
	container string
	signal    string
	timeout   time.Duration
	log       iface.Logger
}

// NewContainerSignaler connects to the local Docker daemon using the
// standard environment configuration.
func NewContainerSignaler(container, signal string, timeout time.Duration, log iface.Logger) (*ContainerSignaler, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &ContainerSignaler{
		api:       dockerClient,
		container: container,
		signal:    signal,
		timeout:   timeout,
		log:       log,
	}, nil
}

func (c *ContainerSignaler) Trigger(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.api.ContainerKill(ctx, c.container, c.signal); err != nil {
		return fmt.Errorf("failed to signal container %s: %w", c.container, err)
	}
	c.log.Info("sent %s to container %s", c.signal, c.container)
	return nil
}

func (c *ContainerSignaler) Strategy() string { return "container-signal" }

// SocketReloader issues an admin command on the proxy's control socket. Any
// response counts as success; the socket closing the connection after the
// command is normal.
type SocketReloader struct {
	path    string
	command string
	timeout time.Duration
	log     iface.Logger
}

func NewSocketReloader(path string, timeout time.Duration, log iface.Logger) *SocketReloader {
	return &SocketReloader{
		path:    path,
		command: "show ssl cert",
		timeout: timeout,
		log:     log,
	}
}

func (s *SocketReloader) Trigger(ctx context.Context) error {
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	conn, err := net.DialTimeout("unix", s.path, s.timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to control socket %s: %w", s.path, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set socket deadline: %w", err)
	}
	if _, err := conn.Write([]byte(s.command + "\n")); err != nil {
		return fmt.Errorf("failed to send command to control socket: %w", err)
	}

	resp, err := io.ReadAll(conn)
	if err != nil && len(resp) == 0 {
		return fmt.Errorf("failed to read control socket response: %w", err)
	}

	s.log.Debug("control socket response: %s", strings.TrimSpace(string(resp)))
	return nil
}

func (s *SocketReloader) Strategy() string { return "socket" }

// HTTPReloader POSTs to a configured reload endpoint.
type HTTPReloader struct {
	url    string
	client *http.Client
	log    iface.Logger
}

func NewHTTPReloader(url string, timeout time.Duration, log iface.Logger) *HTTPReloader {
	return &HTTPReloader{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

func (h *HTTPReloader) Trigger(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build reload request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("reload request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("reload endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	h.log.Debug("reload endpoint response: %s", strings.TrimSpace(string(body)))
	return nil
}

func (h *HTTPReloader) Strategy() string { return "http" }

// noopDispatcher is used when no reload mechanism is configured. Treated as
// success: the files on disk are the source of truth and the operator chose
// not to wire a notification.
type noopDispatcher struct {
	log iface.Logger
}

func (n *noopDispatcher) Trigger(context.Context) error {
	n.log.Warn("certificates changed but no reload mechanism is configured")
	return nil
}

func (n *noopDispatcher) Strategy() string { return "none" }
