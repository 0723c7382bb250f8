package boutique

import (
	"sync"
	"time"
)

// ViewOptions configures a View.
type ViewOptions struct {
	Clock Clock
	Delay time.Duration
	// Selection is the initial selection; empty means Sentinel.
	Selection string
	// Categories may carry a precomputed category list for products.
	Categories []string
	// OnChange receives the grid after the stage becomes ready and after each selection.
	OnChange func(Grid)
}

// View is one mounted catalog page: a selection plus a loading stage over an
// immutable product collection. The timer callback and selection changes are
// serialized by the view lock.
type View struct {
	products   []Product
	categories []string
	stage      *Stage
	onChange   func(Grid)

	// emitMu is held while OnChange runs so Unmount can wait for it.
	emitMu sync.Mutex

	mu        sync.Mutex
	selection string
	closed    bool
}

// NewView builds an unmounted view. The stage does not run until Mount.
func NewView(products []Product, opts ViewOptions) *View {
	cats := opts.Categories
	if cats == nil {
		cats = Categories(products)
	}
	return &View{
		products:   products,
		categories: cats,
		stage:      NewStage(opts.Clock, opts.Delay),
		onChange:   opts.OnChange,
		selection:  NormalizeSelection(opts.Selection),
	}
}

// Mount enters the loading stage and schedules the transition to ready.
func (v *View) Mount() bool {
	return v.stage.Start(v.ready)
}

func (v *View) ready() {
	v.emitMu.Lock()
	defer v.emitMu.Unlock()
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	g := v.gridLocked()
	cb := v.onChange
	v.mu.Unlock()
	if cb != nil {
		cb(g)
	}
}

// Select changes the selection and returns the new grid. It never restarts
// the loading stage. Selecting on an unmounted view is ignored.
func (v *View) Select(category string) Grid {
	category = NormalizeSelection(category)
	v.emitMu.Lock()
	defer v.emitMu.Unlock()
	v.mu.Lock()
	if v.closed {
		g := v.gridLocked()
		v.mu.Unlock()
		return g
	}
	v.selection = category
	g := v.gridLocked()
	cb := v.onChange
	v.mu.Unlock()
	if cb != nil {
		cb(g)
	}
	return g
}

// Grid returns the grid for the current state.
func (v *View) Grid() Grid {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gridLocked()
}

func (v *View) gridLocked() Grid {
	return BuildGrid(v.products, v.categories, v.selection, v.stage.Loading())
}

// Selection returns the current selection.
func (v *View) Selection() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selection
}

// Categories returns the category list, sentinel first.
func (v *View) Categories() []string {
	return v.categories
}

// Loading reports whether the view is still in the loading stage.
func (v *View) Loading() bool {
	return v.stage.Loading()
}

// StageState exposes the loading stage lifecycle.
func (v *View) StageState() StageState {
	return v.stage.State()
}

// Unmount tears the view down and cancels a pending stage transition. After
// Unmount returns, OnChange is never called again. OnChange must not call Unmount.
func (v *View) Unmount() bool {
	v.emitMu.Lock()
	defer v.emitMu.Unlock()
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	return v.stage.Stop()
}

// Closed reports whether Unmount was called.
func (v *View) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}
