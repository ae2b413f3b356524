package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	// CrashDir is the crash report directory under the data dir.
	CrashDir = "logs"

	// MaxCrashReports is how many reports are kept.
	MaxCrashReports = 10
)

type crashState struct {
	mu       sync.RWMutex
	command  string
	version  string
	goal     string
	basePath string
}

var crash = &crashState{}

// SetBasePath sets the data directory crash reports are written under.
func SetBasePath(path string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.basePath = path
}

// SetVersion records the binary version for crash reports.
func SetVersion(version string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.version = version
}

// SetCommand records the command being executed.
func SetCommand(cmd string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.command = cmd
}

// SetGoal records the goal of the reasoning run in progress.
func SetGoal(goal string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.goal = truncate(strings.TrimSpace(goal), 500)
}

func truncate(value string, maxLen int) string {
	if len(value) <= maxLen {
		return value
	}
	return value[:maxLen] + "... [truncated]"
}

// CrashReport is one recovered panic.
type CrashReport struct {
	Timestamp  time.Time
	Version    string
	Command    string
	Goal       string
	PanicValue string
	StackTrace string
	GoVersion  string
	OS         string
	Arch       string
}

// HandlePanic recovers a panic, writes a crash report and re-panics with the
// original value so the runtime still prints the trace and exits non-zero.
// Usage: defer logger.HandlePanic()
func HandlePanic() {
	r := recover()
	if r == nil {
		return
	}
	report := newCrashReport(r, debug.Stack())
	if path, err := writeCrashReport(report); err != nil {
		fmt.Fprintf(os.Stderr, "\n[CRASH] failed to write crash report: %v\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "\nwayline hit an unexpected error. Crash report: %s\n", path)
		fmt.Fprintf(os.Stderr, "Please report it at https://github.com/josephgoksu/Wayline/issues\n\n")
	}
	panic(r)
}

func newCrashReport(panicValue any, stack []byte) CrashReport {
	crash.mu.RLock()
	defer crash.mu.RUnlock()

	return CrashReport{
		Timestamp:  time.Now(),
		Version:    crash.version,
		Command:    crash.command,
		Goal:       crash.goal,
		PanicValue: fmt.Sprintf("%v", panicValue),
		StackTrace: string(stack),
		GoVersion:  runtime.Version(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
	}
}

func writeCrashReport(report CrashReport) (string, error) {
	dir := crashDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create crash dir: %w", err)
	}
	if err := pruneCrashReports(dir, MaxCrashReports-1); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] failed to prune crash reports: %v\n", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("crash_%s.log", report.Timestamp.Format("20060102_150405")))
	if err := os.WriteFile(path, []byte(formatCrashReport(report)), 0600); err != nil {
		return "", fmt.Errorf("write crash report: %w", err)
	}
	return path, nil
}

func crashDir() string {
	crash.mu.RLock()
	base := crash.basePath
	crash.mu.RUnlock()
	if base == "" {
		base = ".wayline"
	}
	return filepath.Join(base, CrashDir)
}

func formatCrashReport(r CrashReport) string {
	var sb strings.Builder
	rule := strings.Repeat("-", 72) + "\n"

	sb.WriteString("WAYLINE CRASH REPORT\n")
	sb.WriteString(rule)
	fmt.Fprintf(&sb, "Timestamp: %s\n", r.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Version:   %s\n", r.Version)
	fmt.Fprintf(&sb, "Command:   %s\n", r.Command)
	fmt.Fprintf(&sb, "Go:        %s\n", r.GoVersion)
	fmt.Fprintf(&sb, "OS/Arch:   %s/%s\n", r.OS, r.Arch)
	if r.Goal != "" {
		fmt.Fprintf(&sb, "Goal:      %s\n", r.Goal)
	}
	sb.WriteString(rule)
	sb.WriteString("PANIC\n")
	sb.WriteString(r.PanicValue + "\n")
	sb.WriteString(rule)
	sb.WriteString("STACK\n")
	sb.WriteString(r.StackTrace)
	return sb.String()
}

// pruneCrashReports deletes the oldest reports until at most keep remain.
func pruneCrashReports(dir string, keep int) error {
	reports, err := listReports(dir)
	if err != nil || len(reports) <= keep {
		return err
	}
	// Names embed the timestamp, so lexical order is chronological.
	slices.Sort(reports)
	for _, path := range reports[:len(reports)-keep] {
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	return nil
}

// ListCrashReports returns the paths of saved crash reports, oldest first.
func ListCrashReports() ([]string, error) {
	reports, err := listReports(crashDir())
	slices.Sort(reports)
	return reports, err
}

func listReports(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
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
	return out, nil
}
