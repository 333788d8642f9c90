package lifecycle

import (
	"context"
	"fmt"
	"net"
	"time"
)

// ReadinessProbe reports nil once addr accepts connections.
type ReadinessProbe func(ctx context.Context, addr string) error

// DialProbe connects to addr over loopback and hangs up.
func DialProbe(ctx context.Context, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", loopbackAddr(addr))
	if err != nil {
		return err
	}
	return conn.Close()
}

// waitReady polls probe until it succeeds, ctx ends or timeout passes.
func waitReady(ctx context.Context, probe ReadinessProbe, addr string, interval, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		attemptCtx, attemptCancel := context.WithTimeout(ctx, interval)
		lastErr = probe(attemptCtx, addr)
		attemptCancel()
		if lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("listener on %s not ready after %s: %w", addr, timeout, lastErr)
		case <-ticker.C:
		}
	}
}

// loopbackAddr rewrites wildcard listen addresses to a dialable loopback one.
func loopbackAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" {
		return net.JoinHostPort("127.0.0.1", port)
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		if ip.To4() != nil {
			return net.JoinHostPort("127.0.0.1", port)
		}
		return net.JoinHostPort("::1", port)
	}
	return addr
}
