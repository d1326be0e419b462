package gateway_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/offlinekit/edgecache/gateway"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edgecache.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := gateway.LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Listen == "" {
		t.Error("Listen is empty, want default address")
	}
	if cfg.Router.Strategy != "cache-first" {
		t.Errorf("Router.Strategy = %q, want cache-first", cfg.Router.Strategy)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("Cache.Backend = %q, want memory", cfg.Cache.Backend)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: ":9000"
upstream: https://origin.example.com
router:
  strategy: stale-while-revalidate
  partition: static-v2
  fetch_timeout: 5s
cache:
  backend: file
  path: /var/cache/edgecache
`)

	cfg, err := gateway.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Listen != ":9000" {
		t.Errorf("Listen = %q, want :9000", cfg.Listen)
	}
	if cfg.Upstream != "https://origin.example.com" {
		t.Errorf("Upstream = %q, want origin", cfg.Upstream)
	}
	if cfg.Router.Strategy != "stale-while-revalidate" {
		t.Errorf("Router.Strategy = %q, want stale-while-revalidate", cfg.Router.Strategy)
	}
	if cfg.Router.Partition != "static-v2" {
		t.Errorf("Router.Partition = %q, want static-v2", cfg.Router.Partition)
	}
	if cfg.Router.FetchTimeout != 5*time.Second {
		t.Errorf("Router.FetchTimeout = %v, want 5s", cfg.Router.FetchTimeout)
	}
	if cfg.Cache.Backend != "file" {
		t.Errorf("Cache.Backend = %q, want file", cfg.Cache.Backend)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
upstream: https://origin.example.com
router:
  strategy: cache-first
`)
	t.Setenv("EDGECACHE_STRATEGY", "network-only")
	t.Setenv("EDGECACHE_LISTEN", ":7777")

	cfg, err := gateway.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Router.Strategy != "network-only" {
		t.Errorf("Router.Strategy = %q, want env override network-only", cfg.Router.Strategy)
	}
	if cfg.Listen != ":7777" {
		t.Errorf("Listen = %q, want env override :7777", cfg.Listen)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := gateway.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("LoadConfig() error = nil for missing file, want error")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "listen: [unclosed")

	if _, err := gateway.LoadConfig(path); err == nil {
		t.Fatal("LoadConfig() error = nil for invalid YAML, want error")
	}
}
