package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

const (
	// CrashDir is the crash report directory under the state directory.
	CrashDir = "crashes"

	// MaxCrashReports is how many reports are kept.
	MaxCrashReports = 10
)

// crashState is what a crash report says about the interrupted command.
type crashState struct {
	mu       sync.RWMutex
	fs       afero.Fs
	stateDir string
	version  string
	command  string
	task     string
	question string
}

var crash = &crashState{fs: afero.NewOsFs()}

// SetStateDir sets where crash reports are written.
func SetStateDir(dir string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.stateDir = dir
}

// SetVersion sets the version printed in crash reports.
func SetVersion(version string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.version = version
}

// SetCommand records the command line being executed.
func SetCommand(cmd string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.command = cmd
}

// SetFocus records the task and question being worked on.
func SetFocus(taskID, questionKey string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.task = taskID
	crash.question = truncate(strings.TrimSpace(questionKey), 200)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... [truncated]"
}

// CrashReport is one recovered panic.
type CrashReport struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version"`
	Command    string    `json:"command"`
	TaskID     string    `json:"task_id,omitempty"`
	Question   string    `json:"question,omitempty"`
	PanicValue string    `json:"panic_value"`
	StackTrace string    `json:"stack_trace"`
	GoVersion  string    `json:"go_version"`
	Platform   string    `json:"platform"`
}

// HandlePanic recovers a panic, writes a crash report and exits 1.
// Usage: defer logger.HandlePanic()
func HandlePanic() {
	r := recover()
	if r == nil {
		return
	}
	report := newCrashReport(r)
	path, err := writeCrashReport(report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\ncrash report could not be written: %v\npanic: %v\n%s\n", err, r, report.StackTrace)
		os.Exit(1)
	}
	printCrashNotice(os.Stderr, path)
	os.Exit(1)
}

func printCrashNotice(w io.Writer, path string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "guidedmodules stopped on an unexpected error.")
	fmt.Fprintf(w, "A crash report was saved to %s\n", path)
	fmt.Fprintln(w, "Please attach it when reporting the problem.")
}

func newCrashReport(v any) CrashReport {
	crash.mu.RLock()
	defer crash.mu.RUnlock()
	return CrashReport{
		Timestamp:  time.Now(),
		Version:    crash.version,
		Command:    crash.command,
		TaskID:     crash.task,
		Question:   crash.question,
		PanicValue: fmt.Sprintf("%v", v),
		StackTrace: string(debug.Stack()),
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func crashDir() string {
	crash.mu.RLock()
	defer crash.mu.RUnlock()
	base := crash.stateDir
	if base == "" {
		base = ".guidedmodules"
	}
	return filepath.Join(base, CrashDir)
}

// writeCrashReport stores r and prunes old reports. It returns the path.
func writeCrashReport(r CrashReport) (string, error) {
	dir := crashDir()
	if err := crash.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create crash dir: %w", err)
	}
	path := filepath.Join(dir, "crash_"+r.Timestamp.Format("20060102_150405.000")+".log")
	if err := afero.WriteFile(crash.fs, path, []byte(r.Format()), 0o644); err != nil {
		return "", fmt.Errorf("write crash report: %w", err)
	}
	if err := pruneCrashReports(dir); err != nil {
		fmt.Fprintf(os.Stderr, "warning: prune crash reports: %v\n", err)
	}
	return path, nil
}

// Format renders the report as plain text.
func (r CrashReport) Format() string {
	rule := strings.Repeat("-", 72)
	var sb strings.Builder
	fmt.Fprintf(&sb, "guidedmodules crash report\n%s\n", rule)
	fmt.Fprintf(&sb, "time:     %s\n", r.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&sb, "version:  %s\n", r.Version)
	fmt.Fprintf(&sb, "command:  %s\n", r.Command)
	if r.TaskID != "" {
		fmt.Fprintf(&sb, "task:     %s\n", r.TaskID)
	}
	if r.Question != "" {
		fmt.Fprintf(&sb, "question: %s\n", r.Question)
	}
	fmt.Fprintf(&sb, "go:       %s (%s)\n", r.GoVersion, r.Platform)
	fmt.Fprintf(&sb, "%s\npanic: %s\n%s\n%s", rule, r.PanicValue, rule, r.StackTrace)
	return sb.String()
}

func pruneCrashReports(dir string) error {
	reports, err := CrashReports()
	if err != nil {
		return err
	}
	if len(reports) <= MaxCrashReports {
		return nil
	}
	for _, p := range reports[:len(reports)-MaxCrashReports] {
		if err := crash.fs.Remove(p); err != nil {
			return fmt.Errorf("remove %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}

// CrashReports lists saved crash reports, oldest first.
func CrashReports() ([]string, error) {
	dir := crashDir()
	entries, err := afero.ReadDir(crash.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "crash_") && strings.HasSuffix(e.Name(), ".log") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
