package store

import (
	"testing"

	"github.com/smithers-run/smithers/internal/models"
	"github.com/stretchr/testify/require"
)

func TestHuman_ContentHashIDIsStableForSameContent(t *testing.T) {
	a := HumanContentHashID("ok?", "<children/>")
	b := HumanContentHashID("ok?", "<children/>")
	require.Equal(t, a, b)

	c := HumanContentHashID("different?", "<children/>")
	require.NotEqual(t, a, c)
}

func TestHuman_CreateAndResolve(t *testing.T) {
	db := setupTestDB(t)

	id, err := CreateHumanInteraction(db, "approve?")
	require.NoError(t, err)

	hi, err := GetHumanInteraction(db, id)
	require.NoError(t, err)
	require.Equal(t, models.HumanPending, hi.Status)

	require.NoError(t, ResolveHumanInteraction(db, id, models.HumanApproved, `{"ok":true}`))

	hi, err = GetHumanInteraction(db, id)
	require.NoError(t, err)
	require.Equal(t, models.HumanApproved, hi.Status)
	require.NotNil(t, hi.ResolvedAt)

	// Resolving again is a no-op; status does not regress.
	require.NoError(t, ResolveHumanInteraction(db, id, models.HumanRejected, "late"))
	hi, err = GetHumanInteraction(db, id)
	require.NoError(t, err)
	require.Equal(t, models.HumanApproved, hi.Status)
}
