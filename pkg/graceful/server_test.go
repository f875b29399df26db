package graceful

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/inovabank/pkg/config"
)

func TestNewServer_Defaults(t *testing.T) {
	s := NewServer(nil, http.NotFoundHandler(), config.ServerConfig{Port: "8081"})
	assert.Equal(t, ":8081", s.Addr())
	assert.Equal(t, defaultShutdownTimeout, s.shutdownTimeout)
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	s := NewServer(nil, http.NotFoundHandler(), config.ServerConfig{Port: "0", ShutdownTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestListenAndServe_ReportsListenError(t *testing.T) {
	s := NewServer(nil, http.NotFoundHandler(), config.ServerConfig{Port: "-1"})

	err := s.ListenAndServe(context.Background())
	assert.Error(t, err)
}

func TestListenAndServe_NilServer(t *testing.T) {
	assert.NoError(t, (&Server{}).ListenAndServe(context.Background()))
}
