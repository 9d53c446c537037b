package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestNew_FileAndConsole(t *testing.T) {
	fs := afero.NewMemMapFs()
	var console bytes.Buffer

	log, closer, err := New(Options{Path: "/state/logs/app.log", Verbose: true, Console: &console, Fs: fs})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	log.Debug("resolving", "task", "task-00000001")
	log.Info("answer applied", "question", "size")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := afero.ReadFile(fs, "/state/logs/app.log")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("file has %d lines, want only the info record: %s", len(lines), data)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["msg"] != "answer applied" || rec["question"] != "size" {
		t.Errorf("record = %v", rec)
	}

	if !strings.Contains(console.String(), "msg=resolving") || !strings.Contains(console.String(), "msg=\"answer applied\"") {
		t.Errorf("console = %q", console.String())
	}
}

func TestNew_QuietWithoutVerbose(t *testing.T) {
	var console bytes.Buffer
	log, closer, err := New(Options{Console: &console, Fs: afero.NewMemMapFs()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer closer.Close()
	log.Info("hidden")
	if console.Len() != 0 {
		t.Errorf("console = %q, want empty", console.String())
	}
}

func TestNew_AppendsAcrossRuns(t *testing.T) {
	fs := afero.NewMemMapFs()
	for i := 0; i < 2; i++ {
		log, closer, err := New(Options{Path: "/app.log", Fs: fs})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		log.Info("run")
		_ = closer.Close()
	}
	data, _ := afero.ReadFile(fs, "/app.log")
	if n := strings.Count(string(data), "\n"); n != 2 {
		t.Errorf("log has %d lines, want 2", n)
	}
}
