package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shiraberu/internal/config"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestConfigWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "server:\n  port: 8080\n")

	var mu sync.Mutex
	var got *config.Config
	reloaded := make(chan struct{}, 4)

	w := NewConfigWatcher(path, func(cfg *config.Config) {
		mu.Lock()
		got = cfg
		mu.Unlock()
		reloaded <- struct{}{}
	}, zap.NewNop())
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	writeConfig(t, path, "server:\n  port: 9191\n")

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("no reload within timeout")
	}
	mu.Lock()
	defer mu.Unlock()
	if got == nil || got.Server.Port != 9191 {
		t.Errorf("reloaded config = %+v", got)
	}
}

func TestConfigWatcherKeepsConfigOnParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "server:\n  port: 8080\n")

	calls := make(chan struct{}, 4)
	w := NewConfigWatcher(path, func(*config.Config) { calls <- struct{}{} }, zap.NewNop())
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	writeConfig(t, path, "{not yaml::::")

	select {
	case <-calls:
		t.Fatal("onReload called for a broken config")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestConfigWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "server:\n  port: 8080\n")

	calls := make(chan struct{}, 4)
	w := NewConfigWatcher(path, func(*config.Config) { calls <- struct{}{} }, zap.NewNop())
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	writeConfig(t, filepath.Join(dir, "other.yaml"), "irrelevant: true\n")

	select {
	case <-calls:
		t.Fatal("onReload called for a sibling file")
	case <-time.After(500 * time.Millisecond):
	}
}
