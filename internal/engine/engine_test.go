package engine

import (
	"context"
	"testing"
	"time"

	"github.com/smithers-run/smithers/internal/reactive"
	"github.com/smithers-run/smithers/internal/reconciler"
	"github.com/smithers-run/smithers/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *reactive.Store {
	t.Helper()
	db, err := store.InitDBWithPath(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return reactive.NewStore(db)
}

func TestEngine_TickRendersRoot(t *testing.T) {
	s := newTestStore(t)
	renders := 0
	e := New(s, func() reconciler.Element {
		renders++
		return reconciler.Text("hello")
	}, nil)

	require.NoError(t, e.Tick())
	require.Equal(t, 1, renders)
	require.Contains(t, e.ToSerializedForm(), "hello")
}

func TestEngine_RunStopsWhenStopRequested(t *testing.T) {
	s := newTestStore(t)
	renders := 0
	e := New(s, func() reconciler.Element {
		renders++
		return reconciler.Text("x")
	}, nil)

	require.NoError(t, e.RequestStop("test"))
	err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, renders, "stop requested before first tick means Run must not render")
}

func TestEngine_RunHonorsContextCancellation(t *testing.T) {
	s := newTestStore(t)
	e := New(s, func() reconciler.Element { return reconciler.Text("x") }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Run(ctx)
	require.Error(t, err)
}

func TestEngine_ToSerializedFormEmptyBeforeFirstTick(t *testing.T) {
	s := newTestStore(t)
	e := New(s, func() reconciler.Element { return reconciler.Text("x") }, nil)
	require.Empty(t, e.ToSerializedForm())
}

func TestEngine_RunAppliesClockThrottleBetweenTicks(t *testing.T) {
	s := newTestStore(t)
	var ticks int
	e := New(s, func() reconciler.Element {
		ticks++
		if ticks >= 3 {
			_ = e.RequestStop("done")
		}
		return reconciler.Text("x")
	}, nil)
	e.clock.minDelay = 5 * time.Millisecond

	start := time.Now()
	require.NoError(t, e.Run(context.Background()))
	require.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	require.Equal(t, 3, ticks)
}
