package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStoreSavesUnderDir(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "http://localhost:5000/uploads/")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	url, err := s.Save(context.Background(), "avatars/1-x.png", "image/png", strings.NewReader("png"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if url != "http://localhost:5000/uploads/avatars/1-x.png" {
		t.Fatalf("unexpected url %q", url)
	}
	data, err := os.ReadFile(filepath.Join(dir, "avatars", "1-x.png"))
	if err != nil || string(data) != "png" {
		t.Fatalf("file not written: %v", err)
	}
}

func TestLocalStoreKeepsKeysInsideDir(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewLocalStore(dir, "/uploads")
	url, err := s.Save(context.Background(), "../../escape.png", "image/png", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if url != "/uploads/escape.png" {
		t.Fatalf("unexpected url %q", url)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.png")); err != nil {
		t.Fatalf("expected file inside dir: %v", err)
	}
}
