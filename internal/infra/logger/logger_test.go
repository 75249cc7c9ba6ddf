package logger

import (
	"testing"

	"github.com/sifan077/GeoLink/config"
	"go.uber.org/zap/zapcore"
)

func TestFromConfig(t *testing.T) {
	dev := FromConfig(config.LogConfig{Development: true, Level: "debug"})
	if dev.Encoding != "console" || dev.Level != "debug" || !dev.Development {
		t.Fatalf("unexpected development config %+v", dev)
	}

	prod := FromConfig(config.LogConfig{Level: "warn"})
	if prod.Encoding != "" || prod.Development {
		t.Fatalf("unexpected production config %+v", prod)
	}

	explicit := FromConfig(config.LogConfig{Development: true, Encoding: "json"})
	if explicit.Encoding != "json" {
		t.Fatalf("expected explicit encoding to win, got %q", explicit.Encoding)
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatal("expected invalid level to be rejected")
	}
}

func TestNew_Levels(t *testing.T) {
	l, err := New(Config{Level: "WARN", Encoding: "json"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if l.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug to be disabled at warn level")
	}
}
