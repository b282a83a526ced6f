package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStartServer_ListenFailure(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = busy.Close() })

	failed := make(chan error, 1)
	startServer(&http.Server{Addr: busy.Addr().String()}, discardLogger(), func(err error) {
		failed <- err
	})

	select {
	case err := <-failed:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener failure was not reported")
	}
}

func TestStartServer_ShutdownIsNotFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	failed := make(chan error, 1)
	srv := &http.Server{Addr: addr, Handler: http.NotFoundHandler()}
	startServer(srv, discardLogger(), func(err error) {
		failed <- err
	})

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 5*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-failed:
		t.Fatalf("unexpected failure: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
}
