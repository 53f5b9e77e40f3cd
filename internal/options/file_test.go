package options

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sendrec/videoconsent/internal/broadcast"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "widget.yaml", "text: Load video\ndark-mode: true\ntext-size: 2\ncolour: red\n")
	bus := broadcast.New()
	g := NewGlobal(bus)
	broadcasts := 0
	bus.Subscribe(func() { broadcasts++ })

	if _, err := Load(path, g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v, _ := g.Get(Text); v != "Load video" {
		t.Errorf("expected text from file, got %v", v)
	}
	if v, _ := g.Get(DarkMode); v != true {
		t.Errorf("expected dark-mode true, got %v", v)
	}
	if _, ok := g.Get("colour"); ok {
		t.Error("expected unknown key to be dropped")
	}
	if broadcasts != 1 {
		t.Errorf("expected load to broadcast once, got %d", broadcasts)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "widget.json", `{"autoplay-on-confirm": false, "aspect-ratio": "4/3"}`)
	g := NewGlobal(nil)

	if _, err := Load(path, g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	view := View{Instance: map[string]string{}, Global: g}
	if v, err := view.Bool(AutoplayOnConfirm); err != nil || v {
		t.Errorf("expected autoplay-on-confirm false, got %v (%v)", v, err)
	}
	if got := view.String(AspectRatio); got != "4/3" {
		t.Errorf("expected 4/3, got %q", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), NewGlobal(nil)); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := writeFile(t, "widget.yaml", "text: First\n")
	bus := broadcast.New()
	g := NewGlobal(bus)

	if err := Watch(path, g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := g.Get(Text); v != "First" {
		t.Fatalf("expected initial text, got %v", v)
	}

	changed := make(chan struct{}, 1)
	bus.Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	// Replace the file in one step so the watcher never reads it half written.
	next := filepath.Join(filepath.Dir(path), "widget.yaml.tmp")
	if err := os.WriteFile(next, []byte("text: Second\ndark-mode: true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(next, path); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-changed:
			if v, _ := g.Get(Text); v == "Second" {
				if dm, _ := g.Get(DarkMode); dm != true {
					t.Errorf("expected dark-mode true after reload, got %v", dm)
				}
				return
			}
		case <-deadline:
			v, _ := g.Get(Text)
			t.Fatalf("timed out waiting for reload, text is %v", v)
		}
	}
}

func TestWatchMissingFile(t *testing.T) {
	if err := Watch(filepath.Join(t.TempDir(), "missing.yaml"), NewGlobal(nil)); err == nil {
		t.Error("expected error for missing file")
	}
}
