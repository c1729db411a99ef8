package testkit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/sha1n/relic-history/internal/app"
	"github.com/sha1n/relic-history/internal/config"
	"github.com/sha1n/relic-history/internal/metrics"
	"github.com/spf13/pflag"
)

// Property names published by HistoryServer.Start
const (
	PropertyURL     = "url"
	PropertyBaseDir = "base_dir"
)

// Service represents a test service that can be started and stopped
type Service interface {
	Start() (map[string]any, error)
	Stop() error
	GetName() string
}

// TestEnvContext provides access to properties collected during environment startup
type TestEnvContext interface {
	GetProperties() map[string]any
	GetProperty(name string) (any, bool)
}

// TestEnv manages the lifecycle of test services
type TestEnv interface {
	Start() (map[string]any, error)
	Stop() error
	GetContext() TestEnvContext
}

type testEnvContextImpl struct {
	properties map[string]any
}

func (c *testEnvContextImpl) GetProperties() map[string]any {
	return c.properties
}

func (c *testEnvContextImpl) GetProperty(name string) (any, bool) {
	val, ok := c.properties[name]
	return val, ok
}

type testEnvImpl struct {
	services []Service
	context  *testEnvContextImpl
}

// NewTestEnv creates a new test environment with the given services
func NewTestEnv(services ...Service) TestEnv {
	return &testEnvImpl{
		services: services,
		context:  &testEnvContextImpl{properties: make(map[string]any)},
	}
}

func (e *testEnvImpl) Start() (map[string]any, error) {
	for _, s := range e.services {
		props, err := s.Start()
		if err != nil {
			return nil, err
		}
		for k, v := range props {
			e.context.properties[k] = v
		}
	}
	return e.context.properties, nil
}

func (e *testEnvImpl) Stop() error {
	var lastErr error
	// Stop in reverse order
	for i := len(e.services) - 1; i >= 0; i-- {
		if err := e.services[i].Stop(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (e *testEnvImpl) GetContext() TestEnvContext {
	return e.context
}

// GetFreePort returns a free port from the kernel
func GetFreePort() (int, error) {
	return getFreePortWithAddr("localhost:0")
}

// MustGetFreePort returns a free port or fails the test
func MustGetFreePort(t testing.TB) int {
	t.Helper()
	port, err := GetFreePort()
	if err != nil {
		t.Fatalf("Failed to get free port: %v", err)
	}
	return port
}

func getFreePortWithAddr(addrStr string) (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", addrStr)
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// FlagOptions configures NewTestFlags
type FlagOptions struct {
	Port      int    // Uses free port if 0
	Transport string // Defaults to "sse"
	AuthType  string // Defaults to "none"
	Host      string // Defaults to "localhost"
	BaseDir   string // Uses a temp dir if empty
	Location  string // Memory history file, empty history if empty
}

// NewTestFlags creates a configured pflag.FlagSet for testing.
// The revision source is always the memory provider.
func NewTestFlags(t testing.TB, opts *FlagOptions) *pflag.FlagSet {
	t.Helper()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	app.RegisterFlags(flags)

	port := 0
	transport := "sse"
	authType := "none"
	host := "localhost"
	baseDir := ""
	location := ""

	if opts != nil {
		if opts.Port != 0 {
			port = opts.Port
		}
		if opts.Transport != "" {
			transport = opts.Transport
		}
		if opts.AuthType != "" {
			authType = opts.AuthType
		}
		if opts.Host != "" {
			host = opts.Host
		}
		baseDir = opts.BaseDir
		location = opts.Location
	}

	if port == 0 {
		port = MustGetFreePort(t)
	}
	if baseDir == "" {
		baseDir = t.TempDir()
	}

	_ = flags.Set("port", fmt.Sprintf("%d", port))
	_ = flags.Set("transport", transport)
	_ = flags.Set("auth-type", authType)
	_ = flags.Set("host", host)
	_ = flags.Set("base-dir", baseDir)
	_ = flags.Set("provider", "memory")
	_ = flags.Set("sync-interval", "0s")
	if location != "" {
		_ = flags.Set("location", location)
	}

	return flags
}

// HistoryServer runs the SSE server in-process on the configured port
type HistoryServer struct {
	flags   *pflag.FlagSet
	srv     *http.Server
	cleanup func()
	done    chan error
}

// NewHistoryServer creates a Service serving the settings loaded from flags
func NewHistoryServer(flags *pflag.FlagSet) *HistoryServer {
	return &HistoryServer{flags: flags}
}

// GetName returns the service name
func (h *HistoryServer) GetName() string {
	return "relic-history"
}

// Start syncs the history, starts serving and waits for /health to answer.
func (h *HistoryServer) Start() (map[string]any, error) {
	settings, err := config.LoadSettingsWithFlags(h.flags)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateSettings(settings); err != nil {
		return nil, err
	}

	m := metrics.New()
	mcpServer, cleanup, err := app.CreateMCPServer(settings, m)
	if err != nil {
		return nil, err
	}
	h.cleanup = cleanup

	srv, err := app.NewSSEServer(mcpServer, settings, m)
	if err != nil {
		cleanup()
		return nil, err
	}
	h.srv = srv

	l, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		cleanup()
		return nil, err
	}

	h.done = make(chan error, 1)
	go func() { h.done <- srv.Serve(l) }()

	url := "http://" + l.Addr().String()
	if err := waitForHealth(url+"/health", 5*time.Second); err != nil {
		_ = h.Stop()
		return nil, err
	}

	return map[string]any{
		PropertyURL:     url,
		PropertyBaseDir: settings.Index.BaseDir,
	}, nil
}

// Stop shuts the server down and closes the history service
func (h *HistoryServer) Stop() error {
	var err error
	if h.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Open SSE streams never go idle
		if err = h.srv.Shutdown(ctx); errors.Is(err, context.DeadlineExceeded) {
			err = h.srv.Close()
		}
		if serveErr := <-h.done; !errors.Is(serveErr, http.ErrServerClosed) {
			err = errors.Join(err, serveErr)
		}
		h.srv = nil
	}
	if h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
	return err
}

func waitForHealth(url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("server at %s not healthy after %v", url, timeout)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
