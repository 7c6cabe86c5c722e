package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDocJSON = `{
	"version": 2,
	"playlists": {"main": {"steps": ["date"]}},
	"sequence": [{"playlist": "main"}]
}`

const updatedDocJSON = `{
	"version": 2,
	"playlists": {"main": {"steps": ["date", "weather1"]}},
	"sequence": [{"playlist": "main"}]
}`

func TestWatcher_AppliesValidRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "screens_config.json")
	require.NoError(t, os.WriteFile(path, []byte(validDocJSON), 0o644))

	applied := make(chan *LoadResult, 1)
	watcher := NewWatcher(path, newTestLoader(t), func(r *LoadResult) {
		applied <- r
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = watcher.Run(ctx) }()

	// Give the watcher time to register before rewriting.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(updatedDocJSON), 0o644))

	select {
	case result := <-applied:
		assert.Len(t, result.Document.Playlists["main"].Steps, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("reload was never applied")
	}
}

func TestWatcher_RejectsInvalidRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "screens_config.json")
	require.NoError(t, os.WriteFile(path, []byte(validDocJSON), 0o644))

	applied := make(chan *LoadResult, 2)
	watcher := NewWatcher(path, newTestLoader(t), func(r *LoadResult) {
		applied <- r
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = watcher.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 2, "playlists": {},`), 0o644))

	// The broken write must not reach apply; a following good write must.
	time.Sleep(2 * watchDebounce)
	require.NoError(t, os.WriteFile(path, []byte(updatedDocJSON), 0o644))

	select {
	case result := <-applied:
		assert.Len(t, result.Document.Playlists["main"].Steps, 2,
			"only the valid document is applied")
	case <-time.After(5 * time.Second):
		t.Fatal("valid rewrite was never applied")
	}
}
