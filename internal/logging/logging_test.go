package logging

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewReturnsUsableLogger(t *testing.T) {
	log, err := New(zapcore.InfoLevel)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer log.Sync()
	log.Info("hello")
}

func TestNewWithFileCreatesDirAndWritesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "run.log")
	log, err := NewWithFile(path, zapcore.InfoLevel)
	if err != nil {
		t.Fatalf("NewWithFile: %v", err)
	}
	log.Info("test entry")
	log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected log file to contain data")
	}
}
