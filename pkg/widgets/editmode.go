package widgets

import (
	"helixscreen/pkg/log"
	"helixscreen/pkg/subject"
)

// EditState is the grid editor's state machine.
type EditState int

const (
	EditIdle EditState = iota
	EditInspect
	EditDrag
	EditResize
	EditCatalogOpen
)

func (s EditState) String() string {
	switch s {
	case EditIdle:
		return "idle"
	case EditInspect:
		return "inspect"
	case EditDrag:
		return "drag"
	case EditResize:
		return "resize"
	case EditCatalogOpen:
		return "catalog"
	default:
		return "unknown"
	}
}

// resizeCornerRadius is the base hit radius around a widget's
// bottom-right corner that starts a resize instead of a drag. On small
// widgets the radius shrinks so it cannot swallow the whole footprint.
const resizeCornerRadius = 24

// EditMode drives interactive grid editing: select, drag, resize, and
// the add-widget catalog. It owns only the placement model; the panel
// layer renders overlays from the Preview and Selected accessors.
//
// UI goroutine only.
type EditMode struct {
	logger *log.Logger
	mgr    *Manager
	queue  *subject.UpdateQueue

	state    EditState
	selected string
	dirty    bool

	// Pixel geometry of the grid for hit tests.
	cellW, cellH int
	padX, padY   int

	// Active drag/resize session.
	origin       Placement
	preview      Placement
	previewValid bool

	release func() // queue freeze held while overlays rebuild
}

// NewEditMode creates an editor over the manager's grid. cellW/cellH are
// the pixel dimensions of one grid cell; padX/padY the grid container's
// padding, needed when converting pointer coordinates between frames.
func NewEditMode(mgr *Manager, queue *subject.UpdateQueue, cellW, cellH, padX, padY int) *EditMode {
	return &EditMode{
		logger: log.New("GridEdit"),
		mgr:    mgr,
		queue:  queue,
		state:  EditIdle,
		cellW:  cellW,
		cellH:  cellH,
		padX:   padX,
		padY:   padY,
	}
}

// State returns the current editor state.
func (e *EditMode) State() EditState {
	return e.state
}

// Selected returns the selected widget id, or "".
func (e *EditMode) Selected() string {
	return e.selected
}

// Preview returns the current drag/resize snap preview and whether it is
// a valid drop target.
func (e *EditMode) Preview() (Placement, bool) {
	return e.preview, e.previewValid
}

// Editing reports whether the editor is active in any state.
func (e *EditMode) Editing() bool {
	return e.state != EditIdle
}

// Dirty reports whether any placement changed since entering.
func (e *EditMode) Dirty() bool {
	return e.dirty
}

// Enter activates edit mode. Entering while already editing is a no-op.
// Persisted coordinates are synced to the live layout first, covering
// the case where hardware discovery reshuffled placements since the last
// save.
func (e *EditMode) Enter() {
	if e.state != EditIdle {
		return
	}
	e.mgr.SyncPinsToLayout()
	e.state = EditInspect
	e.selected = ""
	e.dirty = false
	e.logger.Info("edit mode entered")
}

// Exit deactivates edit mode from any state, saving if anything changed.
func (e *EditMode) Exit() {
	if e.state == EditIdle {
		return
	}
	e.endFreeze()
	e.state = EditIdle
	e.selected = ""
	e.previewValid = false

	if e.dirty {
		e.mgr.Rebuild()
		if err := e.mgr.Save(); err != nil {
			e.logger.Warn("save on exit failed: %v", err)
		}
		e.dirty = false
	}
	e.logger.Info("edit mode exited")
}

// OnPanelDeactivate handles the underlying panel losing focus. The
// catalog overlay causes a deactivation that must not end the session.
func (e *EditMode) OnPanelDeactivate() {
	if e.state == EditCatalogOpen {
		return
	}
	e.Exit()
}

// Select marks the widget under a tap. Only meaningful in inspect state.
func (e *EditMode) Select(widgetID string) {
	if e.state != EditInspect {
		return
	}
	if _, ok := e.mgr.Layout().PlacementOf(widgetID); !ok {
		return
	}
	e.selected = widgetID
}

// Deselect clears the selection.
func (e *EditMode) Deselect() {
	if e.state == EditInspect {
		e.selected = ""
	}
}

// RemoveSelected disables the selected widget, returning it to the
// catalog.
func (e *EditMode) RemoveSelected() {
	if e.state != EditInspect || e.selected == "" {
		return
	}
	e.mgr.Disable(e.selected)
	e.mgr.Layout().Remove(e.selected)
	e.selected = ""
	e.dirty = true
}

// cellRect returns the pixel rectangle of a placement.
func (e *EditMode) cellRect(p Placement) (x, y, w, h int) {
	return e.padX + p.Col*e.cellW, e.padY + p.Row*e.cellH,
		p.Colspan * e.cellW, p.Rowspan * e.cellH
}

// cornerRadiusFor scales the resize hit radius down on small widgets.
func (e *EditMode) cornerRadiusFor(p Placement) int {
	_, _, w, h := e.cellRect(p)
	min := w
	if h < min {
		min = h
	}
	r := resizeCornerRadius
	if min/3 < r {
		r = min / 3
	}
	return r
}

// BeginPress starts a drag or resize session from a long-press at pixel
// (px, py) on the selected widget. A press within the corner radius of
// the bottom-right corner of a resizable widget starts a resize;
// anywhere else starts a drag.
func (e *EditMode) BeginPress(px, py int) {
	if e.state != EditInspect || e.selected == "" {
		return
	}
	p, ok := e.mgr.Layout().PlacementOf(e.selected)
	if !ok {
		return
	}
	e.origin = p
	e.preview = p
	e.previewValid = true

	d, _ := e.mgr.defs.Get(e.selected)
	x, y, w, h := e.cellRect(p)
	r := e.cornerRadiusFor(p)
	cornerX, cornerY := x+w, y+h
	inCorner := abs(px-cornerX) <= r && abs(py-cornerY) <= r

	if inCorner && d != nil && d.Resizable() {
		e.state = EditResize
	} else {
		e.state = EditDrag
	}
	e.beginFreeze()
}

// UpdateDrag recomputes the snap preview from the dragged widget's
// center at pixel (cx, cy). Only visible widgets block the drop.
func (e *EditMode) UpdateDrag(cx, cy int) {
	if e.state != EditDrag {
		return
	}
	// Center to top-left cell, rounding to the nearest cell origin.
	col := (cx - e.padX - e.origin.Colspan*e.cellW/2 + e.cellW/2) / e.cellW
	row := (cy - e.padY - e.origin.Rowspan*e.cellH/2 + e.cellH/2) / e.cellH

	e.preview = Placement{
		WidgetID: e.selected,
		Col:      col,
		Row:      row,
		Colspan:  e.origin.Colspan,
		Rowspan:  e.origin.Rowspan,
	}
	e.previewValid = e.mgr.Layout().CanPlaceExcept(col, row,
		e.preview.Colspan, e.preview.Rowspan, e.selected)
}

// UpdateResize grows or shrinks the preview from the original top-left
// toward pixel (px, py), clamping spans to the definition and the grid.
func (e *EditMode) UpdateResize(px, py int) {
	if e.state != EditResize {
		return
	}
	x, y, _, _ := e.cellRect(e.origin)
	cs := (px - x + e.cellW/2) / e.cellW
	rs := (py - y + e.cellH/2) / e.cellH

	d, _ := e.mgr.defs.Get(e.selected)
	if d != nil {
		cs, rs = d.ClampSpan(cs, rs)
	}
	dims := e.mgr.Layout().Dims()
	if e.origin.Col+cs > dims.Cols {
		cs = dims.Cols - e.origin.Col
	}
	if e.origin.Row+rs > dims.Rows {
		rs = dims.Rows - e.origin.Row
	}

	e.preview = Placement{
		WidgetID: e.selected,
		Col:      e.origin.Col,
		Row:      e.origin.Row,
		Colspan:  cs,
		Rowspan:  rs,
	}
	e.previewValid = e.mgr.Layout().CanPlaceExcept(e.preview.Col, e.preview.Row, cs, rs, e.selected)
}

// EndPress commits the drag/resize if the preview is valid, otherwise
// snaps back. Either way the editor returns to inspect state.
func (e *EditMode) EndPress() {
	if e.state != EditDrag && e.state != EditResize {
		return
	}
	committed := false
	if e.previewValid && e.preview != e.origin {
		if e.mgr.Pin(e.selected, e.preview.Col, e.preview.Row,
			e.preview.Colspan, e.preview.Rowspan) {
			e.mgr.Layout().Remove(e.selected)
			e.mgr.Layout().Place(e.preview)
			e.dirty = true
			committed = true
		}
	}
	if !committed {
		e.preview = e.origin
	}
	e.endFreeze()
	e.state = EditInspect
	e.previewValid = false
}

// OpenCatalog shows the add-widget list for a long-press on the empty
// cell (col, row).
func (e *EditMode) OpenCatalog(col, row int) []string {
	if e.state != EditInspect {
		return nil
	}
	e.state = EditCatalogOpen
	e.origin = Placement{Col: col, Row: row}
	return e.mgr.AvailableForCatalog()
}

// CloseCatalog returns to inspect without placing anything.
func (e *EditMode) CloseCatalog() {
	if e.state == EditCatalogOpen {
		e.state = EditInspect
	}
}

// PlaceFromCatalog enables the chosen widget at the catalog's origin
// cell if possible, otherwise at the first available cell. Returns false
// when nothing fits; the widget stays in the catalog.
func (e *EditMode) PlaceFromCatalog(widgetID string) bool {
	if e.state != EditCatalogOpen {
		return false
	}
	defer func() { e.state = EditInspect }()

	d, ok := e.mgr.defs.Get(widgetID)
	if !ok {
		return false
	}
	cs, rs := d.ClampSpan(d.DefaultColspan, d.DefaultRowspan)

	col, row := e.origin.Col, e.origin.Row
	if !e.mgr.Layout().CanPlace(col, row, cs, rs) {
		var found bool
		col, row, found = e.mgr.Layout().FindAvailable(cs, rs)
		if !found {
			if e.mgr.Notify != nil {
				e.mgr.Notify("No space left for " + d.DisplayName)
			}
			return false
		}
	}

	e.mgr.Enable(widgetID)
	e.mgr.Pin(widgetID, col, row, cs, rs)
	e.mgr.Layout().Place(Placement{WidgetID: widgetID, Col: col, Row: row, Colspan: cs, Rowspan: rs})
	e.dirty = true
	return true
}

// beginFreeze pauses update-queue draining so background status updates
// cannot rebuild widget trees mid-gesture.
func (e *EditMode) beginFreeze() {
	if e.release == nil && e.queue != nil {
		e.release = e.queue.Freeze()
	}
}

func (e *EditMode) endFreeze() {
	if e.release != nil {
		e.release()
		e.release = nil
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
