package widgets

import "testing"

func TestRegisterBuiltins(t *testing.T) {
	r := NewDefRegistry()
	RegisterBuiltins(r)

	ids := r.IDs()
	if len(ids) < 10 {
		t.Fatalf("only %d builtin widgets registered", len(ids))
	}

	status, ok := r.Get("print_status")
	if !ok {
		t.Fatal("print_status not in catalog")
	}
	if !status.DefaultEnabled || !status.Resizable() {
		t.Error("print_status should be enabled and resizable by default")
	}

	mesh, ok := r.Get("bed_mesh")
	if !ok {
		t.Fatal("bed_mesh not in catalog")
	}
	if mesh.HardwareGate != "printer_has_bed_mesh" {
		t.Errorf("bed_mesh gate = %q", mesh.HardwareGate)
	}
	if mesh.DefaultEnabled {
		t.Error("gated widgets start disabled")
	}

	// Calling twice must not panic or duplicate.
	RegisterBuiltins(r)
	if got := len(r.IDs()); got != len(ids) {
		t.Errorf("re-registration changed catalog size: %d -> %d", got, len(ids))
	}
}
