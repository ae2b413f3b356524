package logger

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetCrash(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	crash = &crashState{}
	SetBasePath(dir)
	return dir
}

func TestCrashReport_CarriesContext(t *testing.T) {
	resetCrash(t)
	SetVersion("1.2.3")
	SetCommand("reason")
	SetGoal(strings.Repeat("g", 800))

	r := newCrashReport("boom", []byte("stack"))
	assert.Equal(t, "boom", r.PanicValue)
	assert.Equal(t, "1.2.3", r.Version)
	assert.Equal(t, "reason", r.Command)
	assert.Contains(t, r.Goal, "[truncated]")
	assert.LessOrEqual(t, len(r.Goal), 520)
}

func TestWriteCrashReport(t *testing.T) {
	dir := resetCrash(t)
	SetCommand("gaps")

	path, err := writeCrashReport(newCrashReport("nil map", []byte("goroutine 1")))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, CrashDir), filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "WAYLINE CRASH REPORT")
	assert.Contains(t, string(data), "nil map")
	assert.Contains(t, string(data), "Command:   gaps")
	assert.NotContains(t, string(data), "Goal:")
}

func TestPruneCrashReports_KeepsNewest(t *testing.T) {
	dir := filepath.Join(resetCrash(t), CrashDir)
	require.NoError(t, os.MkdirAll(dir, 0755))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range MaxCrashReports + 3 {
		name := fmt.Sprintf("crash_%s.log", base.Add(time.Duration(i)*time.Minute).Format("20060102_150405"))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0600))

	require.NoError(t, pruneCrashReports(dir, MaxCrashReports))

	reports, err := ListCrashReports()
	require.NoError(t, err)
	require.Len(t, reports, MaxCrashReports)
	assert.Contains(t, reports[0], "20250101_000300")
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestListCrashReports_MissingDir(t *testing.T) {
	resetCrash(t)
	reports, err := ListCrashReports()
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestHandlePanic_WritesReportAndRepanics(t *testing.T) {
	dir := resetCrash(t)
	SetCommand("accept")

	assert.PanicsWithValue(t, "graph exploded", func() {
		defer HandlePanic()
		panic("graph exploded")
	})

	reports, err := ListCrashReports()
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, filepath.Join(dir, CrashDir), filepath.Dir(reports[0]))
}

func TestHandlePanic_NoPanic(t *testing.T) {
	resetCrash(t)
	assert.NotPanics(t, func() {
		defer HandlePanic()
	})
	reports, err := ListCrashReports()
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestSetup_Levels(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	Setup(false, &buf)
	slog.Debug("hidden")
	slog.Info("session stored", "session_id", "s1")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "session_id=s1")

	buf.Reset()
	Setup(true, &buf)
	slog.Debug("debugging")
	assert.Contains(t, buf.String(), "debugging")
}
