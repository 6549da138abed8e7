package widgets

import (
	"testing"
)

// 100x100 pixel cells with no padding keep the arithmetic readable.
func newTestEditMode(t *testing.T) (*testEnv, *EditMode) {
	t.Helper()
	env := newTestEnv(t)
	pinEntry(t, env.mgr, "printer_image", 0, 0)
	pinEntry(t, env.mgr, "tips", 2, 0)
	pinEntry(t, env.mgr, "print_status", 2, 2)
	env.mgr.Rebuild()

	em := NewEditMode(env.mgr, env.queue, 100, 100, 0, 0)
	return env, em
}

func TestEnterIsIdempotent(t *testing.T) {
	_, em := newTestEditMode(t)

	em.Enter()
	if em.State() != EditInspect {
		t.Fatalf("state = %s, want inspect", em.State())
	}
	em.Select("printer_image")

	em.Enter() // no-op while editing
	if em.State() != EditInspect || em.Selected() != "printer_image" {
		t.Error("re-enter reset the session")
	}
}

func TestSelectRequiresPlacedWidget(t *testing.T) {
	_, em := newTestEditMode(t)
	em.Enter()

	em.Select("power") // gated off, not placed
	if em.Selected() != "" {
		t.Error("selected an unplaced widget")
	}
	em.Select("tips")
	if em.Selected() != "tips" {
		t.Error("placed widget not selectable")
	}
}

func TestDragCommitMovesWidget(t *testing.T) {
	env, em := newTestEditMode(t)
	em.Enter()
	em.Select("print_status") // 2x2 at (2,2)

	em.BeginPress(250, 250) // center of the widget, not the corner
	if em.State() != EditDrag {
		t.Fatalf("state = %s, want drag", em.State())
	}

	// Drag center to cell region (4..5, 2..3): widget center at (500,300).
	em.UpdateDrag(500, 300)
	p, valid := em.Preview()
	if !valid {
		t.Fatalf("preview at (%d,%d) invalid", p.Col, p.Row)
	}
	if p.Col != 4 || p.Row != 2 {
		t.Fatalf("preview at (%d,%d), want (4,2)", p.Col, p.Row)
	}

	em.EndPress()
	if em.State() != EditInspect {
		t.Errorf("state = %s after release", em.State())
	}
	got, _ := env.mgr.Layout().PlacementOf("print_status")
	if got.Col != 4 || got.Row != 2 {
		t.Errorf("widget at (%d,%d), want (4,2)", got.Col, got.Row)
	}
	if !em.Dirty() {
		t.Error("commit did not mark session dirty")
	}
	e := env.mgr.Entry("print_status")
	if e.Col != 4 || e.Row != 2 {
		t.Errorf("entry not pinned to (4,2): %+v", e)
	}
}

func TestInvalidDropSnapsBack(t *testing.T) {
	env, em := newTestEditMode(t)
	em.Enter()
	em.Select("print_status")

	em.BeginPress(250, 250)
	em.UpdateDrag(100, 100) // overlaps printer_image at (0,0)
	if _, valid := em.Preview(); valid {
		t.Fatal("overlapping preview marked valid")
	}

	em.EndPress()
	got, _ := env.mgr.Layout().PlacementOf("print_status")
	if got.Col != 2 || got.Row != 2 {
		t.Errorf("widget moved to (%d,%d) on invalid drop", got.Col, got.Row)
	}
	if em.Dirty() {
		t.Error("invalid drop marked session dirty")
	}
}

func TestCornerPressStartsResize(t *testing.T) {
	_, em := newTestEditMode(t)
	em.Enter()
	em.Select("print_status") // resizable (max colspan 6), occupies (200..400, 200..400)

	em.BeginPress(395, 395) // within 24 px of the (400,400) corner
	if em.State() != EditResize {
		t.Fatalf("state = %s, want resize", em.State())
	}

	// Pull the corner right to grow colspan to 4: (2,2) + 4x2 ends at x=600.
	em.UpdateResize(600, 400)
	p, valid := em.Preview()
	if p.Colspan != 4 || p.Rowspan != 2 {
		t.Errorf("preview span %dx%d, want 4x2", p.Colspan, p.Rowspan)
	}
	if !valid {
		t.Error("in-bounds resize preview invalid")
	}
}

func TestResizeClampsToDefinitionAndGrid(t *testing.T) {
	_, em := newTestEditMode(t)
	em.Enter()
	em.Select("print_status")
	em.BeginPress(395, 395)

	// Far beyond the grid: colspan clamps to grid width minus origin,
	// rowspan to the definition's max (2).
	em.UpdateResize(5000, 5000)
	p, _ := em.Preview()
	if p.Colspan != 4 {
		t.Errorf("colspan = %d, want 4 (grid bound from col 2)", p.Colspan)
	}
	if p.Rowspan != 2 {
		t.Errorf("rowspan = %d, want definition max 2", p.Rowspan)
	}

	// Shrinking below the definition minimum clamps up.
	em.UpdateResize(0, 0)
	p, _ = em.Preview()
	if p.Colspan != 2 || p.Rowspan != 2 {
		t.Errorf("span %dx%d, want min 2x2", p.Colspan, p.Rowspan)
	}
}

func TestNonResizableWidgetAlwaysDrags(t *testing.T) {
	_, em := newTestEditMode(t)
	em.Enter()
	em.Select("printer_image") // min == max spans

	// Press exactly on its bottom-right corner (200,200).
	em.BeginPress(198, 198)
	if em.State() != EditDrag {
		t.Errorf("state = %s, want drag for non-resizable widget", em.State())
	}
	em.EndPress()
}

func TestCatalogPlacement(t *testing.T) {
	env, em := newTestEditMode(t)
	env.power.SetInt(1)
	env.mgr.Rebuild() // places power somewhere; remove it again for the catalog
	env.mgr.Disable("power")
	env.mgr.Layout().Remove("power")

	em.Enter()
	ids := em.OpenCatalog(0, 2)
	if em.State() != EditCatalogOpen {
		t.Fatalf("state = %s, want catalog", em.State())
	}
	found := false
	for _, id := range ids {
		if id == "power" {
			found = true
		}
	}
	if !found {
		t.Fatalf("power not in catalog: %v", ids)
	}

	if !em.PlaceFromCatalog("power") {
		t.Fatal("catalog placement failed")
	}
	p, ok := env.mgr.Layout().PlacementOf("power")
	if !ok || p.Col != 0 || p.Row != 2 {
		t.Errorf("placed at (%d,%d) ok=%v, want origin (0,2)", p.Col, p.Row, ok)
	}
	if em.State() != EditInspect {
		t.Errorf("state = %s after placement", em.State())
	}
}

func TestCatalogSurvivesPanelDeactivation(t *testing.T) {
	_, em := newTestEditMode(t)
	em.Enter()
	em.OpenCatalog(0, 2)

	em.OnPanelDeactivate()
	if !em.Editing() {
		t.Error("catalog deactivation ended the edit session")
	}

	em.CloseCatalog()
	em.OnPanelDeactivate()
	if em.Editing() {
		t.Error("inspect deactivation did not end the session")
	}
}

func TestRemoveSelected(t *testing.T) {
	env, em := newTestEditMode(t)
	em.Enter()
	em.Select("tips")
	em.RemoveSelected()

	if _, ok := env.mgr.Layout().PlacementOf("tips"); ok {
		t.Error("removed widget still placed")
	}
	if env.mgr.Entry("tips").Enabled {
		t.Error("removed widget still enabled")
	}
	if em.Selected() != "" {
		t.Error("selection survived removal")
	}
}

func TestDragFreezesUpdateQueue(t *testing.T) {
	env, em := newTestEditMode(t)
	em.Enter()
	em.Select("print_status")
	em.BeginPress(250, 250)

	ran := false
	env.queue.Post(func() { ran = true })
	if env.queue.Drain() != 0 || ran {
		t.Error("queue drained during drag")
	}

	em.EndPress()
	if env.queue.Drain() != 1 || !ran {
		t.Error("queue still frozen after release")
	}
}
