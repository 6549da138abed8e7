// Package printer projects Klipper object state into subjects. The
// projector discovers the printer's objects after each connect, derives
// capability gates from what it finds, subscribes to status updates, and
// merges incremental patches into typed views whose fields map 1:1 to
// subjects.
package printer

import (
	"encoding/json"
	"fmt"
	"strings"

	"helixscreen/pkg/log"
	"helixscreen/pkg/moonraker"
	"helixscreen/pkg/subject"
)

// Temperatures are published as centi-degrees (x100) in integer subjects
// so observer fires happen on real changes, not float jitter.
func centiDegrees(v float64) int64 {
	if v < 0 {
		return int64(v*100 - 0.5)
	}
	return int64(v*100 + 0.5)
}

// HeaterView projects one heater (extruder, heater_bed).
type HeaterView struct {
	Temperature *subject.Subject // int, centi-degrees
	Target      *subject.Subject // int, centi-degrees
	Power       *subject.Subject // int, percent 0..100
}

func newHeaterView() *HeaterView {
	return &HeaterView{
		Temperature: subject.NewInt(0),
		Target:      subject.NewInt(0),
		Power:       subject.NewInt(0),
	}
}

func (h *HeaterView) apply(fields map[string]any) {
	if v, ok := numField(fields, "temperature"); ok {
		h.Temperature.SetInt(centiDegrees(v))
	}
	if v, ok := numField(fields, "target"); ok {
		h.Target.SetInt(centiDegrees(v))
	}
	if v, ok := numField(fields, "power"); ok {
		h.Power.SetInt(int64(v*100 + 0.5))
	}
}

// SensorView projects a read-only temperature sensor.
type SensorView struct {
	Temperature *subject.Subject // int, centi-degrees
}

func newSensorView() *SensorView {
	return &SensorView{Temperature: subject.NewInt(0)}
}

func (s *SensorView) apply(fields map[string]any) {
	if v, ok := numField(fields, "temperature"); ok {
		s.Temperature.SetInt(centiDegrees(v))
	}
}

// FanView projects a fan's duty cycle.
type FanView struct {
	Speed *subject.Subject // int, percent 0..100
}

func newFanView() *FanView {
	return &FanView{Speed: subject.NewInt(0)}
}

func (f *FanView) apply(fields map[string]any) {
	if v, ok := numField(fields, "speed"); ok {
		f.Speed.SetInt(int64(v*100 + 0.5))
	}
}

// ToolheadView projects toolhead position and homing state.
type ToolheadView struct {
	PosX        *subject.Subject // float, mm
	PosY        *subject.Subject // float, mm
	PosZ        *subject.Subject // float, mm
	HomedAxes   *subject.Subject // string, e.g. "xyz"
	MaxVelocity *subject.Subject // float
}

func newToolheadView() *ToolheadView {
	return &ToolheadView{
		PosX:        subject.NewFloat(0),
		PosY:        subject.NewFloat(0),
		PosZ:        subject.NewFloat(0),
		HomedAxes:   subject.NewString(8, ""),
		MaxVelocity: subject.NewFloat(0),
	}
}

func (t *ToolheadView) apply(fields map[string]any) {
	if pos, ok := fields["position"].([]any); ok && len(pos) >= 3 {
		if x, ok := pos[0].(float64); ok {
			t.PosX.SetFloat(x)
		}
		if y, ok := pos[1].(float64); ok {
			t.PosY.SetFloat(y)
		}
		if z, ok := pos[2].(float64); ok {
			t.PosZ.SetFloat(z)
		}
	}
	if v, ok := fields["homed_axes"].(string); ok {
		t.HomedAxes.SetString(v)
	}
	if v, ok := numField(fields, "max_velocity"); ok {
		t.MaxVelocity.SetFloat(v)
	}
}

func numField(fields map[string]any, key string) (float64, bool) {
	v, ok := fields[key].(float64)
	return v, ok
}

// Projector owns all printer-derived subjects.
//
// All mutation happens on the UI goroutine: client notifications arrive
// through the update queue, and discovery results are posted back from
// their worker goroutine.
type Projector struct {
	client *moonraker.Client
	queue  *subject.UpdateQueue
	logger *log.Logger

	started bool
	tokens  []moonraker.SubscriptionToken

	// Connection and Klippy state.
	KlippyState *subject.Subject // string: disconnected/startup/ready/error/shutdown
	Connected   *subject.Subject // int 0/1

	// Capability gates derived from the discovered object list.
	HasSecondExtruder   *subject.Subject // int 0/1
	HasChamberSensor    *subject.Subject // int 0/1
	HasLED              *subject.Subject // int 0/1
	HasBedMesh          *subject.Subject // int 0/1
	FilamentSensorCount *subject.Subject // int
	PowerDeviceCount    *subject.Subject // int
	ToolCount           *subject.Subject // int

	// Fixed typed views.
	Extruder  *HeaterView
	Bed       *HeaterView
	Toolhead  *ToolheadView
	PartFan   *FanView
	Lifecycle *Lifecycle
	ETA       *Estimator

	lastProgress float64
	lastFilename string

	// Late-discovered hardware (extruder1, temperature_sensor X,
	// fan_generic X) gets subjects allocated on demand, keyed by the
	// Klipper object name.
	extruders map[string]*HeaterView
	sensors   map[string]*SensorView
	fans      map[string]*FanView

	objects []string
}

// NewProjector creates an idle projector bound to client and queue.
func NewProjector(client *moonraker.Client, queue *subject.UpdateQueue) *Projector {
	return &Projector{
		client: client,
		queue:  queue,
		logger: log.New("PrinterState"),

		KlippyState: subject.NewString(16, "disconnected"),
		Connected:   subject.NewInt(0),

		HasSecondExtruder:   subject.NewInt(0),
		HasChamberSensor:    subject.NewInt(0),
		HasLED:              subject.NewInt(0),
		HasBedMesh:          subject.NewInt(0),
		FilamentSensorCount: subject.NewInt(0),
		PowerDeviceCount:    subject.NewInt(0),
		ToolCount:           subject.NewInt(0),

		Extruder:  newHeaterView(),
		Bed:       newHeaterView(),
		Toolhead:  newToolheadView(),
		PartFan:   newFanView(),
		Lifecycle: NewLifecycle(),
		ETA:       &Estimator{},

		extruders: make(map[string]*HeaterView),
		sensors:   make(map[string]*SensorView),
		fans:      make(map[string]*FanView),
	}
}

// RegisterSubjects publishes gate and telemetry subjects in the global
// registry so XML bind attributes resolve them by name. Idempotent.
func (p *Projector) RegisterSubjects(reg *subject.Registry) error {
	entries := map[string]*subject.Subject{
		"klippy_state":                p.KlippyState,
		"moonraker_connected":         p.Connected,
		"printer_has_second_extruder": p.HasSecondExtruder,
		"printer_has_chamber_sensor":  p.HasChamberSensor,
		"printer_has_led":             p.HasLED,
		"printer_has_bed_mesh":        p.HasBedMesh,
		"filament_sensor_count":       p.FilamentSensorCount,
		"power_device_count":          p.PowerDeviceCount,
		"tool_count":                  p.ToolCount,
		"extruder_temp":               p.Extruder.Temperature,
		"extruder_target":             p.Extruder.Target,
		"bed_temp":                    p.Bed.Temperature,
		"bed_target":                  p.Bed.Target,
		"part_fan_speed":              p.PartFan.Speed,
		"print_state":                 p.Lifecycle.StateSubject,
		"print_filename":              p.Lifecycle.Filename,
		"print_progress":              p.Lifecycle.Progress,
		"print_layer":                 p.Lifecycle.Layer,
		"print_total_layers":          p.Lifecycle.TotalLayers,
		"print_elapsed":               p.Lifecycle.ElapsedSeconds,
		"print_remaining":             p.Lifecycle.RemainingSeconds,
		"print_speed_factor":          p.Lifecycle.SpeedFactor,
		"print_flow_factor":           p.Lifecycle.FlowFactor,
	}
	for name, s := range entries {
		if err := reg.Register(subject.GlobalScope, name, s); err != nil {
			return err
		}
	}
	return nil
}

// Start wires notification handlers and begins discovery once the client
// connects. Idempotent.
func (p *Projector) Start() {
	if p.started {
		return
	}
	p.started = true

	p.tokens = append(p.tokens,
		p.client.SubscribeMethod("notify_status_update", p.onStatusUpdate),
		p.client.SubscribeMethod("notify_klippy_ready", func(json.RawMessage) {
			p.KlippyState.SetString("ready")
			go p.discover()
		}),
		p.client.SubscribeMethod("notify_klippy_shutdown", func(json.RawMessage) {
			p.KlippyState.SetString("shutdown")
		}),
		p.client.SubscribeMethod("notify_klippy_disconnected", func(json.RawMessage) {
			p.KlippyState.SetString("disconnected")
		}),
	)

	p.client.OnStateChange(func(s moonraker.ConnectionState) {
		if s == moonraker.StateConnected {
			p.Connected.SetInt(1)
			go p.discover()
		} else {
			p.Connected.SetInt(0)
			p.KlippyState.SetString("disconnected")
		}
	})
}

// Stop unregisters all notification handlers.
func (p *Projector) Stop() {
	for _, tok := range p.tokens {
		p.client.Unsubscribe(tok)
	}
	p.tokens = nil
	p.started = false
}

// Objects returns the discovered object list.
func (p *Projector) Objects() []string {
	return p.objects
}

// ExtruderView returns the view for a named extruder object, or nil.
func (p *Projector) ExtruderView(name string) *HeaterView {
	if name == "extruder" {
		return p.Extruder
	}
	return p.extruders[name]
}

// SensorView returns the view for a named temperature sensor, or nil.
func (p *Projector) SensorView(name string) *SensorView {
	return p.sensors[name]
}

// FanView returns the view for a named auxiliary fan, or nil.
func (p *Projector) FanView(name string) *FanView {
	return p.fans[name]
}

// discover runs on a worker goroutine: it issues the blocking discovery
// calls and posts the results to the UI goroutine.
func (p *Projector) discover() {
	info, err := p.client.GetServerInfo()
	if err != nil {
		p.logger.Warn("server.info failed: %v", err)
		return
	}

	pinfo, err := p.client.GetPrinterInfo()
	if err != nil {
		p.logger.Warn("printer.info failed: %v", err)
		return
	}

	objects, err := p.client.ListObjects()
	if err != nil {
		p.logger.Warn("objects.list failed: %v", err)
		return
	}

	powerDevices := p.fetchPowerDeviceCount()

	p.queue.Post(func() {
		p.KlippyState.SetString(info.KlippyState)
		p.logger.Info("discovered %d objects, klippy=%s, version=%s",
			len(objects), info.KlippyState, pinfo.SoftwareVersion)
		p.applyDiscovery(objects, powerDevices)
	})

	// Subscribe after the typed views exist.
	sub := make(map[string][]string, len(objects))
	for _, name := range objects {
		if subscribable(name) {
			sub[name] = nil
		}
	}
	status, err := p.client.SubscribeObjects(sub)
	if err != nil {
		p.logger.Warn("objects.subscribe failed: %v", err)
		return
	}
	p.queue.Post(func() {
		p.applyStatus(status)
	})
}

func (p *Projector) fetchPowerDeviceCount() int {
	var res struct {
		Devices []map[string]any `json:"devices"`
	}
	if err := p.client.Call("machine.device_power.devices", nil, &res); err != nil {
		// Power component is optional; absence is not an error.
		return 0
	}
	return len(res.Devices)
}

func subscribable(object string) bool {
	switch {
	case object == "webhooks", object == "configfile", object == "mcu":
		return false
	case strings.HasPrefix(object, "mcu "):
		return false
	default:
		return true
	}
}

// applyDiscovery populates capability gates and the dynamic view table
// from the object list. UI goroutine.
func (p *Projector) applyDiscovery(objects []string, powerDevices int) {
	p.objects = objects

	toolCount := 0
	filamentSensors := 0
	hasChamber := false
	hasLED := false
	hasBedMesh := false
	secondExtruder := false

	for _, name := range objects {
		switch {
		case name == "extruder":
			toolCount++
		case strings.HasPrefix(name, "extruder") && !strings.Contains(name, " "):
			// extruder1, extruder2, ...
			toolCount++
			secondExtruder = true
			if _, ok := p.extruders[name]; !ok {
				p.extruders[name] = newHeaterView()
			}
		case strings.HasPrefix(name, "temperature_sensor "):
			if _, ok := p.sensors[name]; !ok {
				p.sensors[name] = newSensorView()
			}
			label := strings.TrimPrefix(name, "temperature_sensor ")
			if strings.Contains(strings.ToLower(label), "chamber") {
				hasChamber = true
			}
		case strings.HasPrefix(name, "fan_generic "), strings.HasPrefix(name, "heater_fan "):
			if _, ok := p.fans[name]; !ok {
				p.fans[name] = newFanView()
			}
		case strings.HasPrefix(name, "filament_switch_sensor "),
			strings.HasPrefix(name, "filament_motion_sensor "):
			filamentSensors++
		case strings.HasPrefix(name, "led "), strings.HasPrefix(name, "neopixel "),
			strings.HasPrefix(name, "dotstar "):
			hasLED = true
		case name == "bed_mesh":
			hasBedMesh = true
		}
	}

	p.ToolCount.SetInt(int64(toolCount))
	p.HasSecondExtruder.SetInt(boolToInt(secondExtruder))
	p.HasChamberSensor.SetInt(boolToInt(hasChamber))
	p.HasLED.SetInt(boolToInt(hasLED))
	p.HasBedMesh.SetInt(boolToInt(hasBedMesh))
	p.FilamentSensorCount.SetInt(int64(filamentSensors))
	p.PowerDeviceCount.SetInt(int64(powerDevices))
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// onStatusUpdate handles notify_status_update notifications. Params are
// a JSON array: [statusMap, eventtime].
func (p *Projector) onStatusUpdate(params json.RawMessage) {
	var arr []json.RawMessage
	if err := json.Unmarshal(params, &arr); err != nil || len(arr) == 0 {
		p.logger.Warn("malformed status update: %v", err)
		return
	}
	var status map[string]map[string]any
	if err := json.Unmarshal(arr[0], &status); err != nil {
		p.logger.Warn("malformed status map: %v", err)
		return
	}
	p.applyStatus(status)
}

// applyStatus merges a status patch into the typed views. UI goroutine.
func (p *Projector) applyStatus(status map[string]map[string]any) {
	for object, fields := range status {
		switch {
		case object == "extruder":
			p.Extruder.apply(fields)
		case object == "heater_bed":
			p.Bed.apply(fields)
		case object == "toolhead":
			p.Toolhead.apply(fields)
		case object == "fan":
			p.PartFan.apply(fields)
		case object == "print_stats":
			p.applyPrintStats(fields)
		case object == "virtual_sdcard":
			if v, ok := numField(fields, "progress"); ok {
				p.lastProgress = v
				p.Lifecycle.UpdateProgress(v)
			}
		case object == "gcode_move":
			p.applyGcodeMove(fields)
		default:
			if v, ok := p.extruders[object]; ok {
				v.apply(fields)
			} else if v, ok := p.sensors[object]; ok {
				v.apply(fields)
			} else if v, ok := p.fans[object]; ok {
				v.apply(fields)
			}
		}
	}
}

func (p *Projector) applyPrintStats(fields map[string]any) {
	if v, ok := fields["state"].(string); ok {
		p.Lifecycle.SetState(lifecycleStateFromPrintStats(v))
	}
	if v, ok := fields["filename"].(string); ok {
		p.Lifecycle.SetFilename(v)
		if v != p.lastFilename {
			p.lastFilename = v
			p.ETA.Reset()
			p.fetchSlicerEstimate(v)
		}
	}

	if v, ok := numField(fields, "print_duration"); ok {
		elapsed := int64(v)
		remaining := p.ETA.Remaining(v, p.lastProgress)
		p.Lifecycle.UpdateTimes(elapsed, remaining)
	}

	if info, ok := fields["info"].(map[string]any); ok {
		var cur, total int64 = -1, 0
		if v, ok := numField(info, "current_layer"); ok {
			cur = int64(v)
		}
		if v, ok := numField(info, "total_layer"); ok {
			total = int64(v)
		}
		p.Lifecycle.UpdateLayers(cur, total)
	}
}

// fetchSlicerEstimate pulls the slicer's estimated_time from the file
// metadata so the countdown has something to show before extrapolation
// becomes reliable.
func (p *Projector) fetchSlicerEstimate(filename string) {
	if p.client == nil || filename == "" {
		return
	}
	go func() {
		meta, err := p.client.GetFileMetadata(filename)
		if err != nil {
			p.logger.Debug("metadata fetch for %s failed: %v", filename, err)
			return
		}
		if v, ok := numField(meta, "estimated_time"); ok && v > 0 {
			p.ETA.SetSlicerEstimate(v)
		}
	}()
}

func (p *Projector) applyGcodeMove(fields map[string]any) {
	var speed, flow int64
	if v, ok := numField(fields, "speed_factor"); ok {
		speed = int64(v*100 + 0.5)
	}
	if v, ok := numField(fields, "extrude_factor"); ok {
		flow = int64(v*100 + 0.5)
	}
	if speed > 0 || flow > 0 {
		p.Lifecycle.UpdateFactors(speed, flow)
	}
}

// SetHeaterTarget issues a temperature set for a heater object.
func (p *Projector) SetHeaterTarget(heater string, celsius float64) {
	var script string
	switch heater {
	case "extruder", "extruder1", "extruder2", "extruder3":
		script = fmt.Sprintf("SET_HEATER_TEMPERATURE HEATER=%s TARGET=%.1f", heater, celsius)
	case "heater_bed":
		script = fmt.Sprintf("SET_HEATER_TEMPERATURE HEATER=heater_bed TARGET=%.1f", celsius)
	default:
		script = fmt.Sprintf("SET_HEATER_TEMPERATURE HEATER=%s TARGET=%.1f", heater, celsius)
	}
	p.client.RunGCodeAsync(script, func(err error) {
		if err != nil {
			p.logger.Warn("set %s target failed: %v", heater, err)
		}
	})
}

// SetFanSpeed sets the part fan duty cycle (0..100 percent).
func (p *Projector) SetFanSpeed(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	script := fmt.Sprintf("M106 S%d", percent*255/100)
	p.client.RunGCodeAsync(script, func(err error) {
		if err != nil {
			p.logger.Warn("set fan speed failed: %v", err)
		}
	})
}
