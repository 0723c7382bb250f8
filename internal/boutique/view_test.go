package boutique

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBuildGridModes(t *testing.T) {
	t.Parallel()

	products := sampleProducts()
	cats := Categories(products)

	loading := BuildGrid(products, cats, "Jouets", true)
	require.Equal(t, ModeLoading, loading.Mode)
	require.Equal(t, PlaceholderCount, loading.Placeholders)
	require.Empty(t, loading.Products)

	populated := BuildGrid(products, cats, "Jouets", false)
	require.Equal(t, ModePopulated, populated.Mode)
	require.Zero(t, populated.Placeholders)
	require.Equal(t, []string{"2"}, ids(populated.Products))

	empty := BuildGrid(products, cats, "Chaussures", false)
	require.Equal(t, ModeEmpty, empty.Mode)
	require.Empty(t, empty.Products)
}

func TestLoadingIgnoresProductCount(t *testing.T) {
	t.Parallel()

	for _, products := range [][]Product{nil, sampleProducts()} {
		g := BuildGrid(products, Categories(products), Sentinel, true)
		require.Equal(t, PlaceholderCount, g.Placeholders)
	}
}

type recorder struct {
	mu    sync.Mutex
	grids []Grid
}

func (r *recorder) record(g Grid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grids = append(r.grids, g)
}

func (r *recorder) all() []Grid {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Grid(nil), r.grids...)
}

func TestViewBecomesReadyAfterDelayOnly(t *testing.T) {
	t.Parallel()

	clock := NewManualClock()
	rec := &recorder{}
	v := NewView(sampleProducts(), ViewOptions{Clock: clock, OnChange: rec.record})
	require.True(t, v.Mount())
	require.False(t, v.Mount(), "a view mounts once")

	require.Equal(t, ModeLoading, v.Grid().Mode)
	clock.Advance(LoadDelay - time.Millisecond)
	require.Equal(t, ModeLoading, v.Grid().Mode)
	require.Empty(t, rec.all())

	clock.Advance(time.Millisecond)
	require.Equal(t, ModePopulated, v.Grid().Mode)
	require.Equal(t, StageReady, v.StageState())
	grids := rec.all()
	require.Len(t, grids, 1)
	require.Equal(t, []string{"1", "2", "3"}, ids(grids[0].Products))
	require.Zero(t, clock.Pending())
}

func TestViewReadyMatchesSelectionAtExpiry(t *testing.T) {
	t.Parallel()

	clock := NewManualClock()
	v := NewView(sampleProducts(), ViewOptions{Clock: clock})
	v.Mount()

	g := v.Select("Chaussures")
	require.Equal(t, ModeLoading, g.Mode, "selection while loading keeps placeholders")
	require.Equal(t, PlaceholderCount, g.Placeholders)

	clock.Advance(LoadDelay)
	require.Equal(t, ModeEmpty, v.Grid().Mode)
}

func TestViewSelectionNeverReturnsToLoading(t *testing.T) {
	t.Parallel()

	clock := NewManualClock()
	v := NewView(sampleProducts(), ViewOptions{Clock: clock})
	v.Mount()
	clock.Advance(LoadDelay)

	require.Equal(t, ModePopulated, v.Select("Jouets").Mode)
	require.Equal(t, ModeEmpty, v.Select("Chaussures").Mode)
	require.Equal(t, ModePopulated, v.Select(Sentinel).Mode)
	require.False(t, v.Loading())
	require.Zero(t, clock.Pending(), "selection must not schedule another stage")
}

func TestViewUnmountBeforeExpiryDiscardsTransition(t *testing.T) {
	t.Parallel()

	clock := NewManualClock()
	rec := &recorder{}
	v := NewView(sampleProducts(), ViewOptions{Clock: clock, OnChange: rec.record})
	v.Mount()

	require.True(t, v.Unmount(), "pending timer is cancelled")
	require.Zero(t, clock.Pending())
	clock.Advance(10 * LoadDelay)

	require.Empty(t, rec.all())
	require.Equal(t, StageStopped, v.StageState())
	require.True(t, v.Closed())

	v.Select("Jouets")
	require.Empty(t, rec.all(), "no updates after teardown")
	require.Equal(t, Sentinel, v.Selection())
}

func TestViewUnmountAfterReady(t *testing.T) {
	t.Parallel()

	clock := NewManualClock()
	v := NewView(sampleProducts(), ViewOptions{Clock: clock})
	v.Mount()
	clock.Advance(LoadDelay)

	require.False(t, v.Unmount())
	require.Equal(t, StageReady, v.StageState())
}

func TestViewInitialSelection(t *testing.T) {
	t.Parallel()

	v := NewView(sampleProducts(), ViewOptions{Clock: NewManualClock(), Selection: "Jouets"})
	require.Equal(t, "Jouets", v.Selection())
	require.Equal(t, []string{Sentinel, "Vêtements", "Jouets"}, v.Categories())
}

func TestViewWithSystemClock(t *testing.T) {
	t.Parallel()

	ready := make(chan Grid, 1)
	v := NewView(sampleProducts(), ViewOptions{
		Delay:    5 * time.Millisecond,
		OnChange: func(g Grid) { ready <- g },
	})
	v.Mount()

	select {
	case g := <-ready:
		require.Equal(t, ModePopulated, g.Mode)
	case <-time.After(2 * time.Second):
		t.Fatal("stage never became ready")
	}
	v.Unmount()
}

func TestStageStopBeforeStart(t *testing.T) {
	t.Parallel()

	s := NewStage(NewManualClock(), 0)
	require.False(t, s.Stop())
	require.Equal(t, StageStopped, s.State())
	require.False(t, s.Start(func() { t.Fatal("stopped stage must not fire") }))
	require.True(t, s.Loading())
}

func TestStageStopAfterReadyDoesNotInterruptCallback(t *testing.T) {
	t.Parallel()

	clock := NewManualClock()
	s := NewStage(clock, 0)
	calls := 0
	require.True(t, s.Start(func() {
		calls++
		// Ready is already committed; Stop returns without cancelling.
		require.False(t, s.Stop())
		require.Equal(t, StageReady, s.State())
	}))
	clock.Advance(LoadDelay)
	require.Equal(t, 1, calls)
	require.Equal(t, StageReady, s.State())
	require.False(t, s.Loading())
}
