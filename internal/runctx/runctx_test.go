package runctx

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *RunContext {
	t.Helper()
	rc, err := Open(filepath.Join(t.TempDir(), "runctx.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	return rc
}

func TestFirstRunHasNoHistory(t *testing.T) {
	rc := openTemp(t)
	rc.StartNewRun()

	assert.True(t, rc.IsFirstRun())
	_, ok := rc.LastDecision(1)
	assert.False(t, ok)
}

func TestSecondRunReplaysFirst(t *testing.T) {
	rc := openTemp(t)

	rc.StartNewRun()
	rc.SaveDecision(7, 2)
	rc.RecordLinkSample(10, 99, 42.0)
	rc.RecordFlowTiming(7, 5, 15)
	require.NoError(t, rc.Finish(20))

	rc.StartNewRun()
	assert.False(t, rc.IsFirstRun())

	item, ok := rc.LastDecision(7)
	require.True(t, ok)
	assert.Equal(t, 2, item)

	assert.Equal(t, 42.0, rc.LinkLoadAt(10, 99))

	fct, ok := rc.LastFlowFCT(7)
	require.True(t, ok)
	assert.Equal(t, 10.0, fct)
}

func TestEvictsDownToTwoRuns(t *testing.T) {
	rc := openTemp(t)
	rc.StartNewRun()
	rc.StartNewRun()
	rc.StartNewRun()

	assert.Len(t, rc.runs, 2)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runctx.db")

	rc, err := Open(path, false)
	require.NoError(t, err)
	rc.StartNewRun()
	rc.SaveDecision(3, 1)
	require.NoError(t, rc.Finish(5))
	require.NoError(t, rc.Close())

	rc2, err := Open(path, false)
	require.NoError(t, err)
	defer rc2.Close()

	rc2.StartNewRun()
	item, ok := rc2.LastDecision(3)
	require.True(t, ok)
	assert.Equal(t, 1, item)
}
