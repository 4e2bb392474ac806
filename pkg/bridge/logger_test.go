package bridge

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLoggerLevels(t *testing.T) {
	quiet, err := NewLogger(buildTypeDev, false)
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}

	if quiet.Desugar().Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected debug to be off without verbose")
	}

	verbose, err := NewLogger(buildTypeNone, true)
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}

	if !verbose.Desugar().Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected debug to be on with verbose")
	}
}
