package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	global := writeFile(t, dir, "global.json", `{
		"executable": "bundle exec packwerk check",
		"debounceMs": 500
	}`)
	project := writeFile(t, dir, "project.json", `{
		"executable": "bin/packwerk check",
		"showAll": true
	}`)

	cfg, err := Load(global, project)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Executable != "bin/packwerk check" {
		t.Errorf("executable = %q, project config must win", cfg.Executable)
	}
	if cfg.DebounceMS != 500 {
		t.Errorf("debounceMs = %d, global value must survive when project is silent", cfg.DebounceMS)
	}
	if !cfg.ShowAll {
		t.Error("showAll from project config was dropped")
	}
	if !cfg.CheckOnSave {
		t.Error("unset field must keep the default")
	}
}

func TestLoadMissingFilesUseDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "nope.json"), filepath.Join(dir, "also-nope.json"))
	if err != nil {
		t.Fatalf("Load with missing files: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.json", `{not json`)
	if _, err := Load(bad, ""); err == nil {
		t.Error("malformed JSON should be an error, not silently ignored")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	want := DefaultConfig()
	want.Executable = "bin/packwerk check"
	want.ShowAll = true

	if err := Save(want, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load("", path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestExecutableArgs(t *testing.T) {
	cfg := &Config{Executable: "bundle exec packwerk check"}
	want := []string{"bundle", "exec", "packwerk", "check"}
	if !reflect.DeepEqual(cfg.ExecutableArgs(), want) {
		t.Errorf("ExecutableArgs = %v, want %v", cfg.ExecutableArgs(), want)
	}
}

func TestBaseArgsStripsTrailingCheck(t *testing.T) {
	tests := []struct {
		executable string
		want       []string
	}{
		{"bin/packwerk check", []string{"bin/packwerk"}},
		{"bundle exec packwerk check", []string{"bundle", "exec", "packwerk"}},
		{"bin/packwerk", []string{"bin/packwerk"}},
		{"", nil},
	}
	for _, tt := range tests {
		cfg := &Config{Executable: tt.executable}
		if got := cfg.BaseArgs(); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("BaseArgs(%q) = %v, want %v", tt.executable, got, tt.want)
		}
	}
}
