// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package kconfig

import (
	"strings"
	"testing"
)

const sampleConfig = `# Printer configuration
[printer]
kinematics: corexy
max_velocity = 300

[probe]
z_offset: 1.5
samples: 3

[gcode_macro START_PRINT]
gcode:
    G28
    # heat things up
    M190 S{params.BED|default(60)}
    G1 Z5 F3000

#*# <---------------------- SAVE_CONFIG ---------------------->
#*# DO NOT EDIT THIS BLOCK OR BELOW. The contents are auto-generated.
#*#
#*# [probe]
#*# z_offset = 1.970
`

func TestParseSections(t *testing.T) {
	s := Parse(sampleConfig)

	if len(s.Sections) != 3 {
		t.Fatalf("sections = %d, want 3", len(s.Sections))
	}
	names := []string{"printer", "probe", "gcode_macro start_print"}
	for i, want := range names {
		if s.Sections[i].Name != want {
			t.Errorf("section %d = %q, want %q", i, s.Sections[i].Name, want)
		}
	}
}

func TestParseDelimiters(t *testing.T) {
	s := Parse(sampleConfig)
	printer := s.Section("printer")

	k := printer.Key("kinematics")
	if k == nil || k.Delimiter != ':' || k.RawValue != "corexy" {
		t.Errorf("kinematics = %+v", k)
	}
	v := printer.Key("max_velocity")
	if v == nil || v.Delimiter != '=' || v.RawValue != "300" {
		t.Errorf("max_velocity = %+v", v)
	}
}

func TestParseMultiline(t *testing.T) {
	s := Parse(sampleConfig)
	macro := s.Section("gcode_macro START_PRINT")
	if macro == nil {
		t.Fatal("macro section not found")
	}
	g := macro.Key("gcode")
	if g == nil {
		t.Fatal("gcode key not found")
	}
	if !g.Multiline() {
		t.Error("gcode not detected as multiline")
	}
	if g.EndLine-g.Line != 4 {
		t.Errorf("multiline span = %d lines, want 5", g.EndLine-g.Line+1)
	}
	if !strings.Contains(g.RawValue, "G28") || !strings.Contains(g.RawValue, "G1 Z5 F3000") {
		t.Errorf("raw value = %q", g.RawValue)
	}
}

func TestSaveConfigTerminatesParsing(t *testing.T) {
	s := Parse(sampleConfig)
	if s.SaveConfigLine < 0 {
		t.Fatal("SAVE_CONFIG marker not found")
	}
	// The [probe] inside the autosave block must not create structure:
	// the structured probe section still says z_offset 1.5.
	if v, _ := s.GetValue("probe", "z_offset"); v != "1.5" {
		t.Errorf("z_offset = %q, want 1.5", v)
	}
}

func TestRoundTripIdentity(t *testing.T) {
	for _, content := range []string{
		sampleConfig,
		"",
		"[a]\nx: 1",
		"[a]\nx: 1\n\n\n",
	} {
		if got := Parse(content).Serialize(); got != content {
			t.Errorf("round trip changed content:\n%q\n->\n%q", content, got)
		}
	}
}

func TestSetValueTouchesOnlyValueBytes(t *testing.T) {
	s := Parse(sampleConfig)
	if err := s.SetValue("probe", "z_offset", "1.234"); err != nil {
		t.Fatal(err)
	}

	got := s.Serialize()
	want := strings.Replace(sampleConfig, "z_offset: 1.5", "z_offset: 1.234", 1)
	if got != want {
		t.Errorf("serialized:\n%q\nwant:\n%q", got, want)
	}

	// The SAVE_CONFIG block is byte-identical.
	idx := strings.Index(got, "#*# <")
	if idx < 0 || got[idx:] != sampleConfig[strings.Index(sampleConfig, "#*# <"):] {
		t.Error("SAVE_CONFIG block changed")
	}
}

func TestSetValuePreservesDelimiterStyle(t *testing.T) {
	s := Parse("[printer]\nmax_velocity =   300\n")
	if err := s.SetValue("printer", "max_velocity", "500"); err != nil {
		t.Fatal(err)
	}
	if got := s.Serialize(); got != "[printer]\nmax_velocity =   500\n" {
		t.Errorf("serialized %q", got)
	}
}

func TestSetValueUnknownTargets(t *testing.T) {
	s := Parse(sampleConfig)
	if err := s.SetValue("nope", "x", "1"); err == nil {
		t.Error("unknown section accepted")
	}
	if err := s.SetValue("probe", "nope", "1"); err == nil {
		t.Error("unknown key accepted")
	}
}

func TestSetValueMultilineReplacement(t *testing.T) {
	s := Parse(sampleConfig)
	if err := s.SetValue("gcode_macro START_PRINT", "gcode", "G28\nG1 Z10"); err != nil {
		t.Fatal(err)
	}
	g := s.Section("gcode_macro start_print").Key("gcode")
	if g == nil || !g.Multiline() {
		t.Fatalf("gcode after edit = %+v", g)
	}
	if v, _ := s.GetValue("probe", "z_offset"); v != "1.5" {
		t.Error("unrelated key disturbed")
	}
	if s.SaveConfigLine < 0 {
		t.Error("SAVE_CONFIG marker lost")
	}
}

func TestAddKeyAfterLastKey(t *testing.T) {
	s := Parse(sampleConfig)
	if err := s.AddKey("probe", "speed", "5.0"); err != nil {
		t.Fatal(err)
	}

	probe := s.Section("probe")
	if len(probe.Keys) != 3 {
		t.Fatalf("keys = %d, want 3", len(probe.Keys))
	}
	if probe.Keys[2].Name != "speed" {
		t.Errorf("last key = %q", probe.Keys[2].Name)
	}
	if v, _ := s.GetValue("probe", "speed"); v != "5.0" {
		t.Errorf("speed = %q", v)
	}
	// The new line sits between samples and the blank line before the
	// next section.
	lines := s.Lines()
	samples := probe.Key("samples")
	if lines[samples.Line+1] != "speed: 5.0" {
		t.Errorf("line after samples = %q", lines[samples.Line+1])
	}
}

func TestRemoveKeyCommentsOut(t *testing.T) {
	s := Parse(sampleConfig)
	before := len(s.Lines())
	if err := s.RemoveKey("probe", "samples"); err != nil {
		t.Fatal(err)
	}

	if len(s.Lines()) != before {
		t.Error("line count changed")
	}
	if s.Section("probe").Key("samples") != nil {
		t.Error("removed key still parsed")
	}
	if !strings.Contains(s.Serialize(), "#samples: 3") {
		t.Error("key not commented out")
	}
}

func TestRemoveMultilineKeyCommentsWholeSpan(t *testing.T) {
	s := Parse(sampleConfig)
	if err := s.RemoveKey("gcode_macro START_PRINT", "gcode"); err != nil {
		t.Fatal(err)
	}
	out := s.Serialize()
	for _, line := range []string{"#gcode:", "#    G28", "#    G1 Z5 F3000"} {
		if !strings.Contains(out, line) {
			t.Errorf("missing commented line %q", line)
		}
	}
}
