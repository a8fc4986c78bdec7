package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func intervalYAML(interval string) string {
	return fmt.Sprintf("agent:\n  server_url: \"http://localhost:8080\"\n  interval: %s\n", interval)
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// startWatch launches Watch on path and returns the channel of applied configs.
func startWatch(t *testing.T, path string) <-chan *Config {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	applied := make(chan *Config, 8)
	go func() {
		if err := Watch(ctx, path, func(c *Config) { applied <- c }); err != nil {
			t.Errorf("Watch: %v", err)
		}
	}()
	// Let the watcher attach before the test mutates the file.
	time.Sleep(100 * time.Millisecond)
	return applied
}

func waitApplied(t *testing.T, ch <-chan *Config) *Config {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
		return nil
	}
}

func TestWatch_AppliesRewrittenConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	writeConfig(t, path, intervalYAML("30s"))
	applied := startWatch(t, path)

	writeConfig(t, path, intervalYAML("10s"))

	cfg := waitApplied(t, applied)
	if cfg.Agent.Interval != 10*time.Second {
		t.Errorf("applied interval: got %v, want 10s", cfg.Agent.Interval)
	}
}

func TestWatch_RejectsInvalidRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	writeConfig(t, path, intervalYAML("30s"))
	applied := startWatch(t, path)

	// Broken YAML must be dropped; the next valid rewrite is the first
	// config the callback ever sees.
	writeConfig(t, path, "agent: [broken")
	time.Sleep(200 * time.Millisecond)
	writeConfig(t, path, intervalYAML("15s"))

	cfg := waitApplied(t, applied)
	if cfg.Agent.Interval != 15*time.Second {
		t.Errorf("first applied interval: got %v, want 15s", cfg.Agent.Interval)
	}
}

func TestWatch_SkipsIdenticalRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	writeConfig(t, path, intervalYAML("30s"))
	applied := startWatch(t, path)

	// Rewriting the same content must not fire the callback; a real
	// change afterwards must.
	writeConfig(t, path, intervalYAML("30s"))
	time.Sleep(200 * time.Millisecond)
	writeConfig(t, path, intervalYAML("20s"))

	cfg := waitApplied(t, applied)
	if cfg.Agent.Interval != 20*time.Second {
		t.Errorf("first applied interval: got %v, want 20s", cfg.Agent.Interval)
	}
}

func TestWatch_SurvivesAtomicSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	writeConfig(t, path, intervalYAML("30s"))
	applied := startWatch(t, path)

	// Atomic save: write a sibling temp file, rename it over the target.
	// The original inode disappears; the directory watch still sees it.
	tmp := filepath.Join(dir, "agent.yaml.tmp")
	writeConfig(t, tmp, intervalYAML("25s"))
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}

	cfg := waitApplied(t, applied)
	if cfg.Agent.Interval != 25*time.Second {
		t.Errorf("applied interval after atomic save: got %v, want 25s", cfg.Agent.Interval)
	}

	// A second save must also be observed.
	writeConfig(t, tmp, intervalYAML("5s"))
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}
	cfg = waitApplied(t, applied)
	if cfg.Agent.Interval != 5*time.Second {
		t.Errorf("applied interval after second atomic save: got %v, want 5s", cfg.Agent.Interval)
	}
}

func TestWatch_IgnoresOtherFilesInDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	writeConfig(t, path, intervalYAML("30s"))
	applied := startWatch(t, path)

	writeConfig(t, filepath.Join(dir, "other.yaml"), intervalYAML("1s"))
	time.Sleep(200 * time.Millisecond)
	writeConfig(t, path, intervalYAML("12s"))

	cfg := waitApplied(t, applied)
	if cfg.Agent.Interval != 12*time.Second {
		t.Errorf("first applied interval: got %v, want 12s", cfg.Agent.Interval)
	}
}

func TestWatch_MissingFileErrors(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"), func(*Config) {})
	if err == nil {
		t.Fatal("expected error for missing config file, got nil")
	}
}
