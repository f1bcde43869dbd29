package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "base_uri: http://h:1\nmodel: m1\nkeepalive_seconds: 3\nstatic:\n  models: [echo]\n  reply: [hello, world]\n")
	cfg, err := Load(p)
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg.BaseURI != "http://h:1" || cfg.Model != "m1" || cfg.KeepAliveSeconds != 3 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.Static.Models) != 1 || len(cfg.Static.Reply) != 2 || cfg.Static.Reply[1] != "world" {
		t.Fatalf("unexpected static cfg: %+v", cfg.Static)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"base_uri":"http://h:2","model":"m2","done_marker":"[DONE]","openai":{"base_url":"http://up","models":["a","b"]}}`)
	cfg, err := Load(p)
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg.BaseURI != "http://h:2" || cfg.Model != "m2" || cfg.DoneMarker != "[DONE]" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.OpenAI.BaseURL != "http://up" || len(cfg.OpenAI.Models) != 2 {
		t.Fatalf("unexpected openai cfg: %+v", cfg.OpenAI)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nmodel=\"m3\"\ncors_enabled=true\ncors_origins=[\"http://a\"]\n[static]\ninterval_ms=5\n")
	cfg, err := Load(p)
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg.Addr != ":8081" || cfg.Model != "m3" || !cfg.CORSEnabled || len(cfg.CORSOrigins) != 1 || cfg.Static.IntervalMS != 5 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil { t.Fatalf("expected error on empty path") }
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil { t.Fatalf("expected unsupported extension error") }
}

func TestLoad_NonexistentFile(t *testing.T) {
	if _, err := Load("/definitely/not/a/real/file-12345.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	p := writeTempFile(t, t.TempDir(), "bad.yaml", "addr: :8080\n: broken\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected YAML unmarshal error")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	p := writeTempFile(t, t.TempDir(), "bad.json", `{ "model": }`)
	if _, err := Load(p); err == nil {
		t.Fatalf("expected JSON unmarshal error")
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	p := writeTempFile(t, t.TempDir(), "bad.toml", "model=m\nbase_uri\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected TOML unmarshal error")
	}
}

func TestLoad_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeTempFile(t, home, "wx.yaml", "model: from-home\n")
	cfg, err := Load("~/wx.yaml")
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg.Model != "from-home" { t.Fatalf("model=%q", cfg.Model) }
}
