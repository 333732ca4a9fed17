package workflows

import (
	"testing"

	"github.com/smithers-run/smithers/internal/elements"
	"github.com/smithers-run/smithers/internal/reconciler"
	"github.com/stretchr/testify/require"
)

func TestRegister_DuplicateNamePanics(t *testing.T) {
	Register("test-dup-panic", func(ctx elements.Ctx) reconciler.Element { return reconciler.Text("x") })
	require.Panics(t, func() {
		Register("test-dup-panic", func(ctx elements.Ctx) reconciler.Element { return reconciler.Text("y") })
	})
}

func TestLookup_UnknownNameReturnsFalse(t *testing.T) {
	_, ok := Lookup("does-not-exist")
	require.False(t, ok)
}

func TestNames_IncludesDemoAndIsSorted(t *testing.T) {
	names := Names()
	require.Contains(t, names, "demo")
	for i := 1; i < len(names); i++ {
		require.LessOrEqual(t, names[i-1], names[i])
	}
}
