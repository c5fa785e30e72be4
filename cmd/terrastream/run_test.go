package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/terrastream/internal/db"
	"github.com/udisondev/terrastream/internal/testutil"
	"github.com/udisondev/terrastream/internal/transport/feed"
	"github.com/udisondev/terrastream/internal/world"
)

const runConfig = `
log_level: warn
streaming:
  workers: 2
  tick_interval: 5ms
  stats_interval: 0s
mesh:
  mesh_scale: 1
  chunk_size_index: 0
lods:
  - lod: 0
    visible_distance: 50
  - lod: 1
    visible_distance: 100
store:
  driver: sqlite
  path: %s
feed:
  enabled: true
  addr: %s
observer:
  path: line
  speed: 200
`

func TestRun_StreamsAndPersists(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "hf.db")
	addr := testutil.FreeTCPAddr(t)

	cfgPath := filepath.Join(dir, "terrastream.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(runConfig, dbPath, addr)), 0o600))
	t.Setenv("TERRASTREAM_CONFIG", cfgPath)

	ctx, cancel := testutil.ContextWithCancel(t)
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	require.NoError(t, testutil.WaitForTCPReady(addr, testutil.SettleTimeout))

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/feed", nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	// The observer keeps walking east, so fresh chunks keep becoming visible.
	_ = conn.SetReadDeadline(time.Now().Add(testutil.SettleTimeout))
	for {
		var msg feed.Message
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == world.EventVisibility && msg.Visible {
			break
		}
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(testutil.SettleTimeout):
		t.Fatal("run did not return after cancel")
	}

	store, err := db.OpenSQLite(context.Background(), dbPath)
	require.NoError(t, err)
	defer store.Close()

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Positive(t, n, "generated height fields are cached")
}

func TestRun_InvalidConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("lods: []\n"), 0o600))
	t.Setenv("TERRASTREAM_CONFIG", cfgPath)

	err := run(testutil.ContextWithTimeout(t, time.Second))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validating config")
}
