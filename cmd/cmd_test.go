package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/Wayline/internal/app"
	"github.com/josephgoksu/Wayline/internal/memory"
	"github.com/josephgoksu/Wayline/internal/task"
)

func TestSplitIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitIDs([]string{"a,b", " c ", ""}))
	assert.Nil(t, splitIDs(nil))
}

func TestCandidateEdits(t *testing.T) {
	edits, err := candidateEdits(
		map[string]string{"cand-b": "Run a pilot"},
		map[string]string{"cand-a": "6", "cand-b": "2.5"},
	)
	require.NoError(t, err)
	require.Len(t, edits, 2)

	assert.Equal(t, "cand-a", edits[0].CandidateID)
	assert.Empty(t, edits[0].Text)
	require.NotNil(t, edits[0].EstimatedEffort)
	assert.InDelta(t, 6, *edits[0].EstimatedEffort, 1e-9)

	assert.Equal(t, "cand-b", edits[1].CandidateID)
	assert.Equal(t, "Run a pilot", edits[1].Text)
	assert.InDelta(t, 2.5, *edits[1].EstimatedEffort, 1e-9)

	_, err = candidateEdits(nil, map[string]string{"cand-a": "soon"})
	assert.Error(t, err)
}

func TestParseSwitch(t *testing.T) {
	on, err := parseSwitch("on")
	require.NoError(t, err)
	assert.True(t, on)

	off, err := parseSwitch("off")
	require.NoError(t, err)
	assert.False(t, off)

	_, err = parseSwitch("maybe")
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 2, exitCode(app.ErrNoActiveGoal))
	assert.Equal(t, 2, exitCode(&task.CycleError{Nodes: []string{"a", "b"}}))
	assert.Equal(t, 3, exitCode(fmt.Errorf("task x: %w", memory.ErrNotFound)))
	assert.Equal(t, 1, exitCode(errors.New("disk on fire")))
}

func TestDescribeError(t *testing.T) {
	plain := errors.New("plain")
	assert.Same(t, plain, describeError(plain))
	assert.NoError(t, describeError(nil))

	cycle := &task.CycleError{Nodes: []string{"task-a", "task-b"}}
	err := describeError(cycle)
	assert.Contains(t, err.Error(), "[cycle_detected]")
	assert.Contains(t, err.Error(), "task-a, task-b")
	assert.ErrorIs(t, err, task.ErrCycle)
	assert.Equal(t, 2, exitCode(err))

	err = describeError(&app.PolicyError{Violations: []string{"batch too large"}})
	assert.Contains(t, err.Error(), "- batch too large")
}

func TestReadBody(t *testing.T) {
	body, err := readBody("-", strings.NewReader("from stdin"))
	require.NoError(t, err)
	assert.Equal(t, "from stdin", body)

	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("from a file"), 0o644))
	body, err = readBody(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "from a file", body)

	_, err = readBody(filepath.Join(t.TempDir(), "missing.md"), nil)
	assert.Error(t, err)

	_, err = readBody("-", strings.NewReader(strings.Repeat("x", maxDocumentBytes+1)))
	assert.ErrorContains(t, err, "larger than")
}

func TestTaskAddCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "wayline.db")
	viper.Set("memory.path", dbPath)
	viper.Set("policy.dir", filepath.Join(dir, "policies"))
	viper.Set("user.id", "cli-test")
	t.Cleanup(viper.Reset)

	rootCmd.SetArgs([]string{"task", "add", "Write the launch brief", "--effort", "3", "--json"})
	require.NoError(t, rootCmd.Execute())

	store, err := memory.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()
	tasks, err := store.ListTasks("cli-test")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Write the launch brief", tasks[0].Text)
	assert.InDelta(t, 3, tasks[0].EstimatedEffort, 1e-9)
}

func TestCommandTree(t *testing.T) {
	want := []string{"task", "goal", "doc", "reason", "session", "gaps", "accept",
		"reflect", "reflection", "config", "serve", "mcp", "sweep"}
	have := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, have[name], "missing command %s", name)
	}
}
