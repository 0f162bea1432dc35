package logger

import "testing"

func TestNewSetsGlobals(t *testing.T) {
	old := SetServiceName("terminal-test")
	defer SetServiceName(old)

	l, err := New("debug", true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if InfoLogger != l || FatalLogger != l {
		t.Error("globals not initialized")
	}
	Info("hello %s", "world")

	if _, err := New("loud", false); err == nil {
		t.Error("unknown level accepted")
	}
}
