package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/kirbyscan/internal/config"
	"github.com/nao1215/kirbyscan/internal/proxy"
)

// listeningPort starts a TCP listener that accepts and closes connections.
func listeningPort(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() }) //nolint:errcheck // test cleanup

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close() //nolint:errcheck // test server
		}
	}()

	_, port, _ := net.SplitHostPort(ln.Addr().String()) //nolint:errcheck // address comes from the listener
	return port
}

func mustPort(t *testing.T, s string) uint16 {
	t.Helper()

	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		t.Fatalf("invalid port %q: %v", s, err)
	}
	return uint16(n)
}

// TestCheckProxies tests the proxy status table.
func TestCheckProxies(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("marks the reachable proxy as current", func(t *testing.T) {
		t.Parallel()

		alive := listeningPort(t)
		dead := closedPort(t)

		cfg := config.NewConfig()
		cfg.Timeout = 2 * time.Second
		cfg.Proxies = []proxy.Proxy{
			{Host: "127.0.0.1", Port: mustPort(t, alive), Username: "user", Password: "secret"},
			{Host: "127.0.0.1", Port: mustPort(t, dead)},
		}

		var out bytes.Buffer
		if err := checkProxies(context.Background(), cfg, &out, logger); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		lines := strings.Split(out.String(), "\n")
		var aliveLine, deadLine string
		for _, line := range lines {
			switch {
			case strings.Contains(line, "127.0.0.1:"+alive):
				aliveLine = line
			case strings.Contains(line, "127.0.0.1:"+dead):
				deadLine = line
			}
		}

		if !strings.Contains(aliveLine, "*") || !strings.Contains(aliveLine, "alive") || !strings.Contains(aliveLine, "yes") {
			t.Errorf("unexpected row for reachable proxy: %q", aliveLine)
		}
		if strings.Contains(deadLine, "*") || !strings.Contains(deadLine, proxy.StatusCannotConnect.String()) {
			t.Errorf("unexpected row for dead proxy: %q", deadLine)
		}
		if strings.Contains(out.String(), "secret") {
			t.Error("password must not be printed")
		}
		if !strings.Contains(out.String(), "1 of 2 proxies reachable (tcp check)") {
			t.Errorf("expected summary, got %q", out.String())
		}
	})

	t.Run("no proxies configured", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		if err := checkProxies(context.Background(), config.NewConfig(), &out, logger); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "No proxies configured") {
			t.Errorf("unexpected output %q", out.String())
		}
	})
}

// TestRunProxiesCmd tests the proxies command through the root command.
func TestRunProxiesCmd(t *testing.T) {
	t.Parallel()

	t.Run("checks proxies even when use_proxy is false", func(t *testing.T) {
		t.Parallel()

		dead := closedPort(t)
		path := writeTestConfig(t, fmt.Sprintf(
			"use_proxy: false\nproxies:\n  - host: 127.0.0.1\n    port: %s\n", dead))

		var stdout, stderr bytes.Buffer
		root := NewRootCmd()
		root.SetOut(&stdout)
		root.SetErr(&stderr)
		root.SetArgs([]string{"proxies", "-c", path, "-T", "1s"})

		if err := root.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout.String(), "0 of 1 proxies reachable") {
			t.Errorf("unexpected output %q", stdout.String())
		}
		if !strings.Contains(stdout.String(), "Scans will connect directly.") {
			t.Errorf("expected direct notice, got %q", stdout.String())
		}
	})

	t.Run("rejects invalid proxy entries", func(t *testing.T) {
		t.Parallel()

		path := writeTestConfig(t, "proxies:\n  - host: 127.0.0.1\n")

		root := NewRootCmd()
		root.SetOut(io.Discard)
		root.SetErr(io.Discard)
		root.SetArgs([]string{"proxies", "-c", path})

		if err := root.Execute(); !errors.Is(err, proxy.ErrInvalidProxy) {
			t.Errorf("expected ErrInvalidProxy, got %v", err)
		}
	})

	t.Run("rejects unknown proxy check", func(t *testing.T) {
		t.Parallel()

		path := writeTestConfig(t, "proxies: []\n")

		root := NewRootCmd()
		root.SetOut(io.Discard)
		root.SetErr(io.Discard)
		root.SetArgs([]string{"proxies", "-c", path, "--proxy-check", "http"})

		if err := root.Execute(); !errors.Is(err, config.ErrInvalidProxyCheck) {
			t.Errorf("expected ErrInvalidProxyCheck, got %v", err)
		}
	})
}
