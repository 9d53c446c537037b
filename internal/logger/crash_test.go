package logger

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func resetCrash(t *testing.T, stateDir string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	crash = &crashState{fs: fs, stateDir: stateDir}
	t.Cleanup(func() { crash = &crashState{fs: afero.NewOsFs()} })
	return fs
}

func TestSetters(t *testing.T) {
	resetCrash(t, "")
	SetStateDir("/state")
	SetVersion("1.2.3")
	SetCommand("answer save")
	SetFocus("task-0000abcd", strings.Repeat("k", 300))

	r := newCrashReport("boom")
	if r.Version != "1.2.3" || r.Command != "answer save" || r.TaskID != "task-0000abcd" {
		t.Errorf("report = %+v", r)
	}
	if !strings.HasSuffix(r.Question, "[truncated]") {
		t.Errorf("question not truncated: %q", r.Question)
	}
	if r.PanicValue != "boom" || r.StackTrace == "" || r.GoVersion == "" {
		t.Errorf("report = %+v", r)
	}
	if got := crashDir(); got != filepath.Join("/state", CrashDir) {
		t.Errorf("crashDir() = %q", got)
	}
}

func TestCrashDir_Default(t *testing.T) {
	resetCrash(t, "")
	if got := crashDir(); got != filepath.Join(".guidedmodules", CrashDir) {
		t.Errorf("crashDir() = %q", got)
	}
}

func TestCrashReport_Format(t *testing.T) {
	r := CrashReport{
		Timestamp:  time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Version:    "1.0.0",
		Command:    "task run",
		TaskID:     "task-00000001",
		Question:   "size",
		PanicValue: "index out of range",
		StackTrace: "goroutine 1 [running]:",
		GoVersion:  "go1.24.3",
		Platform:   "linux/amd64",
	}
	out := r.Format()
	for _, want := range []string{
		"time:     2026-03-01T09:30:00Z",
		"command:  task run",
		"task:     task-00000001",
		"question: size",
		"go:       go1.24.3 (linux/amd64)",
		"panic: index out of range",
		"goroutine 1 [running]:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q", want)
		}
	}

	r.TaskID, r.Question = "", ""
	if strings.Contains(r.Format(), "task:") {
		t.Error("Format() printed an empty task")
	}
}

func TestWriteCrashReport(t *testing.T) {
	fs := resetCrash(t, "/state")

	path, err := writeCrashReport(newCrashReport("boom"))
	if err != nil {
		t.Fatalf("writeCrashReport() error = %v", err)
	}
	content, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "panic: boom") {
		t.Errorf("report = %s", content)
	}

	var buf bytes.Buffer
	printCrashNotice(&buf, path)
	if !strings.Contains(buf.String(), path) {
		t.Errorf("notice = %q", buf.String())
	}
}

func TestPruneCrashReports(t *testing.T) {
	fs := resetCrash(t, "/state")
	dir := filepath.Join("/state", CrashDir)
	for i := 0; i < MaxCrashReports+3; i++ {
		name := filepath.Join(dir, fmt.Sprintf("crash_20260101_1200%02d.000.log", i))
		if err := afero.WriteFile(fs, name, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := afero.WriteFile(fs, filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := pruneCrashReports(dir); err != nil {
		t.Fatalf("pruneCrashReports() error = %v", err)
	}
	reports, err := CrashReports()
	if err != nil {
		t.Fatalf("CrashReports() error = %v", err)
	}
	if len(reports) != MaxCrashReports {
		t.Fatalf("kept %d reports, want %d", len(reports), MaxCrashReports)
	}
	if filepath.Base(reports[0]) != "crash_20260101_120003.000.log" {
		t.Errorf("oldest kept = %s", reports[0])
	}
}

func TestCrashReports_MissingDir(t *testing.T) {
	resetCrash(t, "/nowhere")
	reports, err := CrashReports()
	if err != nil || reports != nil {
		t.Errorf("CrashReports() = %v, %v", reports, err)
	}
}
