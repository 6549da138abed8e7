// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package kconfig

import (
	"testing"
)

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern, name string
		want          bool
	}{
		{"macros.cfg", "macros.cfg", true},
		{"macros.cfg", "macros2.cfg", false},
		{"*.cfg", "macros.cfg", true},
		{"*.cfg", "macros.conf", false},
		{"conf.d/*.cfg", "conf.d/fans.cfg", true},
		{"board?.cfg", "board1.cfg", true},
		{"board?.cfg", "board.cfg", false},
		{"*", "anything", true},
		{"", "", true},
		{"", "x", false},
		{"a*b*c", "axxbyyc", true},
		{"a*b*c", "axxbyy", false},
	}
	for _, c := range cases {
		if got := GlobMatch(c.pattern, c.name); got != c.want {
			t.Errorf("GlobMatch(%q, %q) = %v, want %v", c.pattern, c.name, got, c.want)
		}
	}
}

func TestExtractIncludes(t *testing.T) {
	s := Parse("[include mainsail.cfg]\n[printer]\nkinematics: corexy\n[include conf.d/*.cfg]\n")
	got := ExtractIncludes(s)
	if len(got) != 2 || got[0] != "mainsail.cfg" || got[1] != "conf.d/*.cfg" {
		t.Errorf("includes = %v", got)
	}
}

func TestResolvePath(t *testing.T) {
	if got := ResolvePath("macros.cfg", "/home/pi/printer.cfg"); got != "/home/pi/macros.cfg" {
		t.Errorf("relative resolve = %q", got)
	}
	if got := ResolvePath("/etc/klipper/x.cfg", "/home/pi/printer.cfg"); got != "/etc/klipper/x.cfg" {
		t.Errorf("absolute resolve = %q", got)
	}
}

func TestResolveActiveFilesOrder(t *testing.T) {
	files := map[string]string{
		"/cfg/printer.cfg": "[include hw/*.cfg]\n[printer]\nkinematics: corexy\n",
		"/cfg/hw/fans.cfg": "[fan]\npin: PA1\n",
		"/cfg/hw/probe.cfg": "[probe]\nz_offset: 1.5\n",
	}
	order, err := ResolveActiveFiles("/cfg/printer.cfg", files, 5)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/cfg/hw/fans.cfg", "/cfg/hw/probe.cfg", "/cfg/printer.cfg"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestResolveActiveFilesCycle(t *testing.T) {
	files := map[string]string{
		"/cfg/a.cfg": "[include b.cfg]\n[x]\nk: 1\n",
		"/cfg/b.cfg": "[include a.cfg]\n[y]\nk: 2\n",
	}
	order, err := ResolveActiveFiles("/cfg/a.cfg", files, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 {
		t.Errorf("cycle order = %v", order)
	}
}

func TestResolveActiveFilesDepthBound(t *testing.T) {
	files := map[string]string{
		"/cfg/0.cfg": "[include 1.cfg]\n",
		"/cfg/1.cfg": "[include 2.cfg]\n",
		"/cfg/2.cfg": "[include 3.cfg]\n",
		"/cfg/3.cfg": "[x]\nk: 1\n",
	}
	if _, err := ResolveActiveFiles("/cfg/0.cfg", files, 2); err == nil {
		t.Error("depth bound not enforced")
	}
	if _, err := ResolveActiveFiles("/cfg/0.cfg", files, 5); err != nil {
		t.Errorf("legal depth rejected: %v", err)
	}
}

func TestMergeActiveLaterFilesOverride(t *testing.T) {
	files := map[string]string{
		"/cfg/base.cfg":    "[probe]\nz_offset: 1.0\nsamples: 3\n",
		"/cfg/printer.cfg": "[include base.cfg]\n[probe]\nz_offset: 1.5\n",
	}
	order, err := ResolveActiveFiles("/cfg/printer.cfg", files, 5)
	if err != nil {
		t.Fatal(err)
	}
	merged := MergeActive(order, files)

	probe := merged["probe"]
	if probe == nil {
		t.Fatal("probe section missing")
	}
	if probe.File != "/cfg/printer.cfg" {
		t.Errorf("owning file = %q", probe.File)
	}
	if probe.Key("z_offset").RawValue != "1.5" {
		t.Errorf("z_offset = %q, want override 1.5", probe.Key("z_offset").RawValue)
	}
	if probe.Key("samples").RawValue != "3" {
		t.Errorf("samples = %q, want inherited 3", probe.Key("samples").RawValue)
	}
}
