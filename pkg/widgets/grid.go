// Package widgets manages the home-panel widget catalog and its
// breakpoint-aware grid placement.
package widgets

// Breakpoint is a screen-size band selecting grid dimensions.
type Breakpoint int

const (
	BreakpointTiny Breakpoint = iota
	BreakpointSmall
	BreakpointMedium
	BreakpointLarge
	BreakpointXLarge
)

func (b Breakpoint) String() string {
	switch b {
	case BreakpointTiny:
		return "tiny"
	case BreakpointSmall:
		return "small"
	case BreakpointMedium:
		return "medium"
	case BreakpointLarge:
		return "large"
	case BreakpointXLarge:
		return "xlarge"
	default:
		return "unknown"
	}
}

// GridDims is the fixed column/row count for a breakpoint.
type GridDims struct {
	Cols int
	Rows int
}

var gridDims = [...]GridDims{
	BreakpointTiny:   {4, 3},
	BreakpointSmall:  {6, 4},
	BreakpointMedium: {6, 4},
	BreakpointLarge:  {8, 5},
	BreakpointXLarge: {8, 5},
}

// DimsFor returns the grid dimensions for a breakpoint.
func DimsFor(b Breakpoint) GridDims {
	if b < BreakpointTiny || b > BreakpointXLarge {
		return gridDims[BreakpointMedium]
	}
	return gridDims[b]
}

// BreakpointForHeight maps a screen height in pixels to a breakpoint band.
func BreakpointForHeight(h int) Breakpoint {
	switch {
	case h < 400:
		return BreakpointTiny
	case h < 520:
		return BreakpointSmall
	case h < 760:
		return BreakpointMedium
	case h < 1100:
		return BreakpointLarge
	default:
		return BreakpointXLarge
	}
}

// Placement is a widget's occupied rectangle on the grid.
type Placement struct {
	WidgetID string
	Col      int
	Row      int
	Colspan  int
	Rowspan  int
}

func (p Placement) overlaps(col, row, colspan, rowspan int) bool {
	return col < p.Col+p.Colspan && col+colspan > p.Col &&
		row < p.Row+p.Rowspan && row+rowspan > p.Row
}

// GridLayout tracks placements on one breakpoint's grid.
type GridLayout struct {
	dims       GridDims
	placements []Placement
}

// NewGridLayout creates an empty layout for the breakpoint.
func NewGridLayout(b Breakpoint) *GridLayout {
	return &GridLayout{dims: DimsFor(b)}
}

// Dims returns the grid dimensions.
func (g *GridLayout) Dims() GridDims {
	return g.dims
}

// Placements returns the current placements.
func (g *GridLayout) Placements() []Placement {
	return g.placements
}

// CanPlace reports whether the rectangle lies within the grid and does
// not overlap any existing placement.
func (g *GridLayout) CanPlace(col, row, colspan, rowspan int) bool {
	return g.canPlaceExcept(col, row, colspan, rowspan, "")
}

// CanPlaceExcept is CanPlace ignoring the named widget's own placement,
// for drag/resize previews.
func (g *GridLayout) CanPlaceExcept(col, row, colspan, rowspan int, excludeID string) bool {
	return g.canPlaceExcept(col, row, colspan, rowspan, excludeID)
}

func (g *GridLayout) canPlaceExcept(col, row, colspan, rowspan int, excludeID string) bool {
	if colspan < 1 || rowspan < 1 {
		return false
	}
	if col < 0 || row < 0 || col+colspan > g.dims.Cols || row+rowspan > g.dims.Rows {
		return false
	}
	for _, p := range g.placements {
		if excludeID != "" && p.WidgetID == excludeID {
			continue
		}
		if p.overlaps(col, row, colspan, rowspan) {
			return false
		}
	}
	return true
}

// Place records a placement without validity checks.
func (g *GridLayout) Place(p Placement) {
	g.placements = append(g.placements, p)
}

// Remove drops the named widget's placement.
func (g *GridLayout) Remove(widgetID string) {
	for i, p := range g.placements {
		if p.WidgetID == widgetID {
			g.placements = append(g.placements[:i], g.placements[i+1:]...)
			return
		}
	}
}

// PlacementOf returns the named widget's placement.
func (g *GridLayout) PlacementOf(widgetID string) (Placement, bool) {
	for _, p := range g.placements {
		if p.WidgetID == widgetID {
			return p, true
		}
	}
	return Placement{}, false
}

// FindAvailable scans row-major (top-left first) for the first cell that
// fits a colspan x rowspan rectangle.
func (g *GridLayout) FindAvailable(colspan, rowspan int) (col, row int, ok bool) {
	for r := 0; r+rowspan <= g.dims.Rows; r++ {
		for c := 0; c+colspan <= g.dims.Cols; c++ {
			if g.CanPlace(c, r, colspan, rowspan) {
				return c, r, true
			}
		}
	}
	return 0, 0, false
}

// FindAvailableBottomFirst scans rows bottom-up, columns left-to-right.
// Multi-cell widgets auto-place this way so the top rows stay stable.
func (g *GridLayout) FindAvailableBottomFirst(colspan, rowspan int) (col, row int, ok bool) {
	for r := g.dims.Rows - rowspan; r >= 0; r-- {
		for c := 0; c+colspan <= g.dims.Cols; c++ {
			if g.CanPlace(c, r, colspan, rowspan) {
				return c, r, true
			}
		}
	}
	return 0, 0, false
}

// FindAvailableBottomRightFirst scans rows bottom-up, columns
// right-to-left. Single-cell widgets fill from the bottom-right corner
// so tall anchor widgets keep the top of the grid.
func (g *GridLayout) FindAvailableBottomRightFirst(colspan, rowspan int) (col, row int, ok bool) {
	for r := g.dims.Rows - rowspan; r >= 0; r-- {
		for c := g.dims.Cols - colspan; c >= 0; c-- {
			if g.CanPlace(c, r, colspan, rowspan) {
				return c, r, true
			}
		}
	}
	return 0, 0, false
}
