package logger

import "testing"

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud", "development"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewBuildsProductionLogger(t *testing.T) {
	l, err := New("debug", "production")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !l.Core().Enabled(-1) {
		t.Fatalf("expected debug level enabled")
	}
}
