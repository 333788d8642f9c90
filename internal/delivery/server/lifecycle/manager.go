// Package lifecycle owns the HTTP listener: it binds, waits until the socket
// accepts connections, opens the browser, serves, and drains on shutdown.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"aipolish/internal/infra/browser"
	"aipolish/internal/shared/async"
	"aipolish/internal/shared/logging"
)

const (
	DefaultAddr              = "127.0.0.1:8000"
	DefaultGracePeriod       = 5 * time.Second
	DefaultReadinessInterval = 25 * time.Millisecond
	DefaultReadinessTimeout  = 5 * time.Second

	readHeaderTimeout = 10 * time.Second
)

// running guards against two servers in one process.
var running atomic.Bool

// Config controls a Manager. Zero values select the defaults above.
type Config struct {
	Addr        string
	GracePeriod time.Duration

	ReadinessInterval time.Duration
	ReadinessTimeout  time.Duration
	Probe             ReadinessProbe

	OpenBrowser bool
	// BrowserURL defaults to http://<bound address>/.
	BrowserURL string
	Opener     browser.Opener

	// Signals starts the drain on first receive and forces close on the
	// second. Nil means only ctx cancellation or Stop end the server.
	Signals <-chan os.Signal

	Logger        logging.Logger
	OnStateChange func(State)

	// Listen defaults to net.ListenConfig.Listen.
	Listen func(ctx context.Context, network, addr string) (net.Listener, error)
}

// Manager runs one HTTP server. It is single-use.
type Manager struct {
	cfg    Config
	logger logging.Logger

	state     atomic.Int32
	used      atomic.Bool
	boundAddr atomic.Value

	stopOnce sync.Once
	stop     chan struct{}
	forced   atomic.Bool
}

// New returns a Manager for cfg.
func New(cfg Config) *Manager {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.ReadinessInterval <= 0 {
		cfg.ReadinessInterval = DefaultReadinessInterval
	}
	if cfg.ReadinessTimeout <= 0 {
		cfg.ReadinessTimeout = DefaultReadinessTimeout
	}
	if cfg.Probe == nil {
		cfg.Probe = DialProbe
	}
	if cfg.Opener == nil {
		cfg.Opener = browser.NewSystem()
	}
	if cfg.Listen == nil {
		cfg.Listen = func(ctx context.Context, network, addr string) (net.Listener, error) {
			var lc net.ListenConfig
			return lc.Listen(ctx, network, addr)
		}
	}
	return &Manager{
		cfg:    cfg,
		logger: logging.OrNop(cfg.Logger),
		stop:   make(chan struct{}),
	}
}

// State returns the current state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Addr returns the bound listener address, or "" before Listening.
func (m *Manager) Addr() string {
	addr, _ := m.boundAddr.Load().(string)
	return addr
}

// URL returns the address the browser is sent to.
func (m *Manager) URL() string {
	if m.cfg.BrowserURL != "" {
		return m.cfg.BrowserURL
	}
	if addr := m.Addr(); addr != "" {
		return "http://" + loopbackAddr(addr) + "/"
	}
	return ""
}

// Forced reports whether shutdown had to close connections that did not
// finish within the grace period.
func (m *Manager) Forced() bool {
	return m.forced.Load()
}

// Stop begins a graceful drain, as a first signal would.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// advance moves to next if it is later than the current state.
func (m *Manager) advance(next State) {
	for {
		cur := m.state.Load()
		if int32(next) <= cur {
			return
		}
		if m.state.CompareAndSwap(cur, int32(next)) {
			m.logger.Debug("state %s -> %s", State(cur), next)
			if m.cfg.OnStateChange != nil {
				m.cfg.OnStateChange(next)
			}
			return
		}
	}
}

// Run binds the listener and serves handler until ctx ends, Stop is called
// or a signal arrives. It returns nil after a shutdown, including a forced
// one, and a *BindError if the socket could not be opened.
func (m *Manager) Run(ctx context.Context, handler http.Handler) error {
	if handler == nil {
		return errors.New("lifecycle: nil handler")
	}
	if !running.CompareAndSwap(false, true) {
		return &AlreadyRunningError{Addr: m.cfg.Addr}
	}
	defer running.Store(false)
	if !m.used.CompareAndSwap(false, true) {
		return &AlreadyRunningError{Addr: m.Addr()}
	}
	defer m.advance(Stopped)

	ln, err := m.cfg.Listen(ctx, "tcp", m.cfg.Addr)
	if err != nil {
		return newBindError(m.cfg.Addr, err)
	}
	m.boundAddr.Store(ln.Addr().String())
	m.advance(Listening)
	m.logger.Info("Listening on %s", ln.Addr())

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	// The drain cancels announceCtx so a pending readiness wait cannot
	// outlive the grace period.
	announceCtx, cancelAnnounce := context.WithCancel(gctx)
	defer cancelAnnounce()
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		m.announce(announceCtx)
		return nil
	})
	g.Go(func() error {
		return m.drain(gctx, srv, cancelAnnounce)
	})
	err = g.Wait()
	m.logger.Info("Server stopped")
	return err
}

// announce waits for readiness, then opens the browser without waiting on it.
func (m *Manager) announce(ctx context.Context) {
	addr := m.Addr()
	if err := waitReady(ctx, m.cfg.Probe, addr, m.cfg.ReadinessInterval, m.cfg.ReadinessTimeout); err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("Readiness check failed, not opening a browser: %v", err)
			m.advance(Serving)
		}
		return
	}

	if ctx.Err() != nil || m.State() >= Draining {
		return
	}

	url := m.URL()
	if m.cfg.OpenBrowser {
		m.advance(BrowserOpened)
		async.Go(m.logger, "browser-open", func() {
			if err := m.cfg.Opener.Open(ctx, url); err != nil {
				var launchErr *browser.LaunchError
				if errors.As(err, &launchErr) {
					m.logger.Warn("%s (%v)", launchErr.UserMessage(), launchErr.Err)
					return
				}
				m.logger.Warn("Could not open a browser at %s: %v", url, err)
			}
		})
	}
	m.advance(Serving)
	m.logger.Info("Ready at %s", url)
}

// drain waits for the first stop request, then shuts the server down within
// the grace period. A second signal or an expired grace period closes all
// remaining connections.
func (m *Manager) drain(ctx context.Context, srv *http.Server, stopAnnounce context.CancelFunc) error {
	select {
	case <-ctx.Done():
		m.logger.Info("Stopping server")
	case <-m.stop:
		m.logger.Info("Stop requested, finishing open requests")
	case sig := <-m.cfg.Signals:
		m.logger.Info("Received %v, finishing open requests (press Ctrl+C again to quit now)", sig)
	}
	m.advance(Draining)
	stopAnnounce()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), m.cfg.GracePeriod)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Shutdown(shutdownCtx) }()

	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		m.logger.Warn("Requests still open after %s, closing them: %v", m.cfg.GracePeriod, err)
	case sig := <-m.cfg.Signals:
		m.logger.Warn("Received %v again, closing open requests", sig)
		cancel()
		<-done
	}
	m.forced.Store(true)
	if err := srv.Close(); err != nil {
		m.logger.Warn("Close server: %v", err)
	}
	return nil
}

func newBindError(addr string, err error) *BindError {
	bindErr := &BindError{Addr: addr, Err: err}
	if _, port, splitErr := net.SplitHostPort(addr); splitErr == nil {
		bindErr.Port, _ = strconv.Atoi(port)
	}
	return bindErr
}
