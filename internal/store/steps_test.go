package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSteps_SequentialCursorAdvancesAndCaps(t *testing.T) {
	db := setupTestDB(t)

	idx, err := CurrentStepIndex(db, "phaseA")
	require.NoError(t, err)
	require.Equal(t, 0, idx)

	idx, err = AdvanceStep(db, "phaseA", 2)
	require.NoError(t, err)
	require.Equal(t, 1, idx)

	idx, err = AdvanceStep(db, "phaseA", 2)
	require.NoError(t, err)
	require.Equal(t, 2, idx)

	idx, err = AdvanceStep(db, "phaseA", 2)
	require.NoError(t, err)
	require.Equal(t, 2, idx, "must not exceed totalSteps")
}

func TestSteps_ParallelMarkers(t *testing.T) {
	db := setupTestDB(t)

	done, err := IsParallelStepComplete(db, "reg1", 0)
	require.NoError(t, err)
	require.False(t, done)

	require.NoError(t, MarkParallelStepComplete(db, "reg1", 0))

	done, err = IsParallelStepComplete(db, "reg1", 0)
	require.NoError(t, err)
	require.True(t, done)

	done, err = IsParallelStepComplete(db, "reg1", 1)
	require.NoError(t, err)
	require.False(t, done, "markers are per-index")
}

func TestSteps_StartCompleteFail(t *testing.T) {
	db := setupTestDB(t)

	id, err := StartStep(db, "compile")
	require.NoError(t, err)
	require.NoError(t, CompleteStep(db, id, "snap-before", "snap-after", "commit-1"))

	id2, err := StartStep(db, "lint")
	require.NoError(t, err)
	require.NoError(t, FailStep(db, id2))
}
