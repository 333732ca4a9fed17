package adapters

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func initGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		require.NoError(t, cmd.Run())
	}
	run("init", "-q")
	run("config", "user.email", "smithers@example.com")
	run("config", "user.name", "smithers")
	return dir
}

func TestGitVCS_SnapshotProducesCommitHash(t *testing.T) {
	requireGit(t)
	dir := initGitRepo(t)
	vcs := NewGitVCS(dir)

	hash, err := vcs.Snapshot(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, hash)
}

func TestGitVCS_CommitUsesGivenMessage(t *testing.T) {
	requireGit(t)
	dir := initGitRepo(t)
	vcs := NewGitVCS(dir)

	hash1, err := vcs.Commit(context.Background(), "first")
	require.NoError(t, err)

	hash2, err := vcs.Commit(context.Background(), "second")
	require.NoError(t, err)

	require.NotEqual(t, hash1, hash2)
}
