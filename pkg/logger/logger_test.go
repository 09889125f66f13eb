package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInfoCFCarriesComponentAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := Replace(zap.New(core))
	defer restore()

	InfoCF("knowledge", "Stored knowledge", map[string]interface{}{
		"topic": "personality",
		"id":    "abc",
	})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Message != "Stored knowledge" {
		t.Fatalf("unexpected message %q", e.Message)
	}
	ctx := e.ContextMap()
	if ctx["component"] != "knowledge" {
		t.Fatalf("expected component knowledge, got %v", ctx["component"])
	}
	if ctx["topic"] != "personality" {
		t.Fatalf("expected topic field, got %v", ctx["topic"])
	}
}

func TestLevelsRouteToZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := Replace(zap.New(core))
	defer restore()

	DebugC("a", "d")
	WarnC("a", "w")
	ErrorCF("a", "e", nil)

	got := []zapcore.Level{}
	for _, e := range logs.All() {
		got = append(got, e.Level)
	}
	want := []zapcore.Level{zapcore.DebugLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	if err := Init("loud", false); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if err := Init("debug", true); err != nil {
		t.Fatalf("Init(debug): %v", err)
	}
	if err := Init("", false); err != nil {
		t.Fatalf("Init(empty): %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
		ok   bool
	}{
		{"debug", DEBUG, true},
		{" WARN ", WARN, true},
		{"error", ERROR, true},
		{"", INFO, true},
		{"loud", INFO, false},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}
