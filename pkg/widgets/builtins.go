package widgets

// RegisterBuiltins fills the catalog with the stock home-panel widgets.
// Hardware-gated entries disappear from the grid until discovery flips
// their gate subject non-zero.
func RegisterBuiltins(r *Registry) {
	builtins := []*Def{
		{
			ID:             "print_status",
			DisplayName:    "Print Status",
			Icon:           "print",
			Description:    "Current job, progress and remaining time",
			TranslationTag: "widget_print_status",
			DefaultEnabled: true,
			DefaultColspan: 2, DefaultRowspan: 2,
			MinColspan: 2, MaxColspan: 4,
			MinRowspan: 1, MaxRowspan: 2,
		},
		{
			ID:             "extruder_temp",
			DisplayName:    "Nozzle",
			Icon:           "nozzle",
			Description:    "Extruder temperature and target",
			TranslationTag: "widget_extruder_temp",
			DefaultEnabled: true,
			DefaultColspan: 1, DefaultRowspan: 1,
			MinColspan: 1, MaxColspan: 2,
			MinRowspan: 1, MaxRowspan: 1,
		},
		{
			ID:             "bed_temp",
			DisplayName:    "Bed",
			Icon:           "bed",
			Description:    "Heated bed temperature and target",
			TranslationTag: "widget_bed_temp",
			DefaultEnabled: true,
			DefaultColspan: 1, DefaultRowspan: 1,
			MinColspan: 1, MaxColspan: 2,
			MinRowspan: 1, MaxRowspan: 1,
		},
		{
			ID:             "second_extruder_temp",
			DisplayName:    "Nozzle 2",
			Icon:           "nozzle",
			Description:    "Second extruder temperature and target",
			TranslationTag: "widget_second_extruder_temp",
			HardwareGate:   "printer_has_second_extruder",
			DefaultColspan: 1, DefaultRowspan: 1,
			MinColspan: 1, MaxColspan: 2,
			MinRowspan: 1, MaxRowspan: 1,
		},
		{
			ID:             "chamber_temp",
			DisplayName:    "Chamber",
			Icon:           "chamber",
			Description:    "Chamber temperature",
			TranslationTag: "widget_chamber_temp",
			HardwareGate:   "printer_has_chamber_sensor",
			DefaultColspan: 1, DefaultRowspan: 1,
		},
		{
			ID:             "part_fan",
			DisplayName:    "Part Fan",
			Icon:           "fan",
			Description:    "Part cooling fan speed",
			TranslationTag: "widget_part_fan",
			DefaultEnabled: true,
			DefaultColspan: 1, DefaultRowspan: 1,
		},
		{
			ID:             "led_control",
			DisplayName:    "Lights",
			Icon:           "led",
			Description:    "Printer LED brightness and color",
			TranslationTag: "widget_led_control",
			HardwareGate:   "printer_has_led",
			DefaultColspan: 1, DefaultRowspan: 1,
		},
		{
			ID:             "bed_mesh",
			DisplayName:    "Bed Mesh",
			Icon:           "mesh",
			Description:    "Probed bed surface preview",
			TranslationTag: "widget_bed_mesh",
			HardwareGate:   "printer_has_bed_mesh",
			DefaultColspan: 2, DefaultRowspan: 2,
			MinColspan: 2, MaxColspan: 4,
			MinRowspan: 2, MaxRowspan: 3,
		},
		{
			ID:             "filament_sensor",
			DisplayName:    "Filament",
			Icon:           "filament",
			Description:    "Runout sensor state",
			TranslationTag: "widget_filament_sensor",
			HardwareGate:   "filament_sensor_count",
			DefaultColspan: 1, DefaultRowspan: 1,
		},
		{
			ID:             "power_devices",
			DisplayName:    "Power",
			Icon:           "power",
			Description:    "Moonraker power device switches",
			TranslationTag: "widget_power_devices",
			HardwareGate:   "power_device_count",
			DefaultColspan: 1, DefaultRowspan: 1,
			MinColspan: 1, MaxColspan: 2,
			MinRowspan: 1, MaxRowspan: 2,
		},
		{
			ID:             "ams_gates",
			DisplayName:    "Filament Changer",
			Icon:           "ams",
			Description:    "Gate status and active tool",
			TranslationTag: "widget_ams_gates",
			HardwareGate:   "tool_count",
			DefaultColspan: 2, DefaultRowspan: 1,
			MinColspan: 2, MaxColspan: 4,
			MinRowspan: 1, MaxRowspan: 2,
		},
		{
			ID:             firmwareRestartWidget,
			DisplayName:    "Firmware Restart",
			Icon:           "restart",
			Description:    "Restart Klipper after an error or shutdown",
			TranslationTag: "widget_firmware_restart",
			DefaultColspan: 1, DefaultRowspan: 1,
		},
		{
			ID:             "speed_factors",
			DisplayName:    "Speed & Flow",
			Icon:           "speed",
			Description:    "Speed and extrusion factor overrides",
			TranslationTag: "widget_speed_factors",
			DefaultColspan: 1, DefaultRowspan: 1,
			MinColspan: 1, MaxColspan: 2,
			MinRowspan: 1, MaxRowspan: 1,
		},
	}
	for _, d := range builtins {
		// Ignore duplicate errors so a panel-specific catalog can
		// pre-register overrides before the stock set.
		_ = r.Register(d)
	}
}
