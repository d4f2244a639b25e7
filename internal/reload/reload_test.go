package reload

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/proxyops/certsyncd/pkg/common"
	"github.com/proxyops/certsyncd/pkg/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectPrecedence(t *testing.T) {
	base := common.Config{
		ReloadSignal:  "SIGUSR2",
		ReloadTimeout: time.Second,
	}

	tests := []struct {
		name     string
		mutate   func(*common.Config)
		strategy string
	}{
		{
			name: "container wins over everything",
			mutate: func(c *common.Config) {
				c.ReloadContainer = "haproxy"
				c.ReloadSocket = "/var/run/haproxy.sock"
				c.ReloadURL = "http://localhost/reload"
			},
			strategy: "container-signal",
		},
		{
			name: "socket wins over http",
			mutate: func(c *common.Config) {
				c.ReloadSocket = "/var/run/haproxy.sock"
				c.ReloadURL = "http://localhost/reload"
			},
			strategy: "socket",
		},
		{
			name:     "http alone",
			mutate:   func(c *common.Config) { c.ReloadURL = "http://localhost/reload" },
			strategy: "http",
		},
		{
			name:     "nothing configured",
			mutate:   func(*common.Config) {},
			strategy: "none",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			d, err := Select(cfg, logger.NewNoopLogger())
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, d.Strategy())
		})
	}
}

type fakeContainerAPI struct {
	container string
	signal    string
	err       error
}

func (f *fakeContainerAPI) ContainerKill(_ context.Context, container, signal string) error {
	f.container = container
	f.signal = signal
	return f.err
}

func TestContainerSignaler(t *testing.T) {
	api := &fakeContainerAPI{}
	signaler := &ContainerSignaler{
		api:       api,
		container: "haproxy",
		signal:    "SIGUSR2",
		timeout:   time.Second,
		log:       logger.NewNoopLogger(),
	}

	require.NoError(t, signaler.Trigger(context.Background()))
	assert.Equal(t, "haproxy", api.container)
	assert.Equal(t, "SIGUSR2", api.signal)

	api.err = fmt.Errorf("no such container")
	err := signaler.Trigger(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "haproxy")
}

func TestSocketReloader(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "admin.sock")
	ln, err := net.Listen("unix", sockPath)
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 128)
		n, _ := conn.Read(buf)
		received <- string(buf[:n])
		_, _ = conn.Write([]byte("ok\n"))
	}()

	reloader := NewSocketReloader(sockPath, time.Second, logger.NewNoopLogger())
	require.NoError(t, reloader.Trigger(context.Background()))

	select {
	case cmd := <-received:
		assert.Equal(t, "show ssl cert\n", cmd)
	case <-time.After(time.Second):
		t.Fatal("socket never received the command")
	}
}

func TestSocketReloaderConnectFailure(t *testing.T) {
	reloader := NewSocketReloader(filepath.Join(t.TempDir(), "absent.sock"), 100*time.Millisecond, logger.NewNoopLogger())
	assert.Error(t, reloader.Trigger(context.Background()))
}

func TestHTTPReloader(t *testing.T) {
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		_, _ = io.WriteString(w, "reloaded")
	}))
	defer srv.Close()

	reloader := NewHTTPReloader(srv.URL, time.Second, logger.NewNoopLogger())
	require.NoError(t, reloader.Trigger(context.Background()))
	assert.Equal(t, http.MethodPost, method)
}

func TestHTTPReloaderNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "proxy is sad", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	reloader := NewHTTPReloader(srv.URL, time.Second, logger.NewNoopLogger())
	err := reloader.Trigger(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestNoopDispatcherWarnsAndSucceeds(t *testing.T) {
	log := logger.NewNoopLogger()
	d, err := Select(common.Config{}, log)
	require.NoError(t, err)

	require.NoError(t, d.Trigger(context.Background()))
	require.NotEmpty(t, log.Messages())
	assert.Contains(t, log.Messages()[0], "no reload mechanism")
}
