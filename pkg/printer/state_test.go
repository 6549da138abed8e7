package printer

import (
	"testing"

	"helixscreen/pkg/subject"
)

func newTestProjector() *Projector {
	return NewProjector(nil, subject.NewUpdateQueue())
}

func TestDiscoveryMultiExtruder(t *testing.T) {
	p := newTestProjector()
	p.applyDiscovery([]string{
		"extruder", "extruder1", "heater_bed", "toolhead",
	}, 0)

	if got := p.ToolCount.GetInt(); got != 2 {
		t.Errorf("tool_count = %d, want 2", got)
	}
	if got := p.HasSecondExtruder.GetInt(); got != 1 {
		t.Errorf("printer_has_second_extruder = %d, want 1", got)
	}
	if p.ExtruderView("extruder1") == nil {
		t.Error("no view allocated for extruder1")
	}
	if p.ExtruderView("extruder") != p.Extruder {
		t.Error("primary extruder view not shared")
	}
}

func TestDiscoveryCapabilityGates(t *testing.T) {
	p := newTestProjector()
	p.applyDiscovery([]string{
		"extruder", "heater_bed", "toolhead", "bed_mesh",
		"temperature_sensor chamber",
		"filament_switch_sensor runout",
		"filament_motion_sensor encoder",
		"neopixel case_light",
	}, 2)

	if p.HasChamberSensor.GetInt() != 1 {
		t.Error("chamber sensor gate not set")
	}
	if p.HasBedMesh.GetInt() != 1 {
		t.Error("bed mesh gate not set")
	}
	if p.HasLED.GetInt() != 1 {
		t.Error("led gate not set")
	}
	if got := p.FilamentSensorCount.GetInt(); got != 2 {
		t.Errorf("filament_sensor_count = %d, want 2", got)
	}
	if got := p.PowerDeviceCount.GetInt(); got != 2 {
		t.Errorf("power_device_count = %d, want 2", got)
	}
	if p.HasSecondExtruder.GetInt() != 0 {
		t.Error("second extruder gate set without extruder1")
	}
	if p.SensorView("temperature_sensor chamber") == nil {
		t.Error("no view for chamber sensor")
	}
}

func TestStatusUpdateCentiDegrees(t *testing.T) {
	p := newTestProjector()

	p.applyStatus(map[string]map[string]any{
		"extruder":   {"temperature": 205.37, "target": 210.0},
		"heater_bed": {"temperature": 60.04, "target": 60.0, "power": 0.5},
	})

	if got := p.Extruder.Temperature.GetInt(); got != 20537 {
		t.Errorf("extruder temp = %d, want 20537", got)
	}
	if got := p.Extruder.Target.GetInt(); got != 21000 {
		t.Errorf("extruder target = %d, want 21000", got)
	}
	if got := p.Bed.Temperature.GetInt(); got != 6004 {
		t.Errorf("bed temp = %d, want 6004", got)
	}
	if got := p.Bed.Power.GetInt(); got != 50 {
		t.Errorf("bed power = %d, want 50", got)
	}
}

func TestStatusUpdateFiresOnlyOnChange(t *testing.T) {
	p := newTestProjector()
	fired := 0
	p.Extruder.Temperature.AddObserver(func(*subject.Subject) { fired++ })

	p.applyStatus(map[string]map[string]any{"extruder": {"temperature": 205.0}})
	p.applyStatus(map[string]map[string]any{"extruder": {"temperature": 205.001}})
	p.applyStatus(map[string]map[string]any{"extruder": {"temperature": 205.3}})

	// 205.0 and 205.001 round to the same centi-degree value.
	if fired != 2 {
		t.Errorf("observer fired %d times, want 2", fired)
	}
}

func TestStatusUpdatePrintStatsCompleteFreeze(t *testing.T) {
	p := newTestProjector()

	p.applyStatus(map[string]map[string]any{
		"print_stats": {
			"state":          "printing",
			"filename":       "benchy.gcode",
			"print_duration": 3600.0,
			"info":           map[string]any{"current_layer": 97.0, "total_layer": 100.0},
		},
		"virtual_sdcard": {"progress": 0.97},
	})

	if got := p.Lifecycle.Progress.GetInt(); got != 97 {
		t.Fatalf("progress = %d, want 97", got)
	}

	p.applyStatus(map[string]map[string]any{
		"print_stats": {"state": "complete"},
	})

	if got := p.Lifecycle.Progress.GetInt(); got != 100 {
		t.Errorf("progress = %d, want 100", got)
	}
	if got := p.Lifecycle.RemainingSeconds.GetInt(); got != 0 {
		t.Errorf("remaining = %d, want 0", got)
	}
	if got := p.Lifecycle.ElapsedSeconds.GetInt(); got != 3600 {
		t.Errorf("elapsed = %d, want 3600", got)
	}

	// Post-terminal zeroes from the server are ignored.
	p.applyStatus(map[string]map[string]any{
		"virtual_sdcard": {"progress": 0.0},
		"print_stats":    {"print_duration": 0.0},
	})
	if got := p.Lifecycle.Progress.GetInt(); got != 100 {
		t.Errorf("post-terminal progress = %d, want 100", got)
	}
}

func TestStatusUpdateToolhead(t *testing.T) {
	p := newTestProjector()
	p.applyStatus(map[string]map[string]any{
		"toolhead": {
			"position":   []any{10.5, 20.25, 0.3, 0.0},
			"homed_axes": "xyz",
		},
	})

	if got := p.Toolhead.PosX.GetFloat(); got != 10.5 {
		t.Errorf("x = %v", got)
	}
	if got := p.Toolhead.PosZ.GetFloat(); got != 0.3 {
		t.Errorf("z = %v", got)
	}
	if got := p.Toolhead.HomedAxes.GetString(); got != "xyz" {
		t.Errorf("homed_axes = %q", got)
	}
}

func TestStatusUpdateGcodeMoveFactors(t *testing.T) {
	p := newTestProjector()
	p.Lifecycle.SetState(LifecyclePrinting)

	p.applyStatus(map[string]map[string]any{
		"gcode_move": {"speed_factor": 1.5, "extrude_factor": 0.95},
	})

	if got := p.Lifecycle.SpeedFactor.GetInt(); got != 150 {
		t.Errorf("speed factor = %d, want 150", got)
	}
	if got := p.Lifecycle.FlowFactor.GetInt(); got != 95 {
		t.Errorf("flow factor = %d, want 95", got)
	}
}

func TestRegisterSubjectsIdempotent(t *testing.T) {
	p := newTestProjector()
	reg := subject.NewRegistry()

	if err := p.RegisterSubjects(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := p.RegisterSubjects(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}

	if reg.Lookup(subject.GlobalScope, "tool_count") != p.ToolCount {
		t.Error("tool_count not resolvable")
	}
	if reg.Lookup(subject.GlobalScope, "extruder_temp") != p.Extruder.Temperature {
		t.Error("extruder_temp not resolvable")
	}
}

func TestCentiDegreesRounding(t *testing.T) {
	cases := []struct {
		in   float64
		want int64
	}{
		{0, 0},
		{205.37, 20537},
		{205.374, 20537},
		{205.376, 20538},
		{-10.5, -1050},
	}
	for _, c := range cases {
		if got := centiDegrees(c.in); got != c.want {
			t.Errorf("centiDegrees(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}
