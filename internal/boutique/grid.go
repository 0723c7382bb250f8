package boutique

// Mode is the render mode of the product grid.
type Mode int

const (
	ModeLoading Mode = iota
	ModePopulated
	ModeEmpty
)

func (m Mode) String() string {
	switch m {
	case ModeLoading:
		return "loading"
	case ModePopulated:
		return "populated"
	case ModeEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// ModeFor picks the render mode from the loading flag and the filtered size.
func ModeFor(loading bool, visible int) Mode {
	switch {
	case loading:
		return ModeLoading
	case visible == 0:
		return ModeEmpty
	default:
		return ModePopulated
	}
}

// Grid is the derived content of the product grid.
type Grid struct {
	Mode         Mode
	Selection    string
	Categories   []string
	Placeholders int
	Products     []Product
}

// BuildGrid derives the grid for the given state. While loading, the
// selection is ignored and only placeholders are produced.
func BuildGrid(products []Product, categories []string, selection string, loading bool) Grid {
	g := Grid{Selection: selection, Categories: categories}
	if loading {
		g.Mode = ModeLoading
		g.Placeholders = PlaceholderCount
		return g
	}
	g.Products = Filter(products, selection)
	g.Mode = ModeFor(false, len(g.Products))
	return g
}
