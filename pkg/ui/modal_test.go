// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package ui

import (
	"testing"
)

// hookRecorder builds a modal whose lifecycle appends to a shared trace.
func hookRecorder(id string, persistent bool, trace *[]string) *Modal {
	return &Modal{
		ID:         id,
		Persistent: persistent,
		Build: func() error {
			*trace = append(*trace, id+":build")
			return nil
		},
		Destroy: func() {
			*trace = append(*trace, id+":destroy")
		},
		Hooks: Hooks{
			OnShow:   func() { *trace = append(*trace, id+":show") },
			OnHide:   func() { *trace = append(*trace, id+":hide") },
			OnOK:     func() { *trace = append(*trace, id+":ok") },
			OnCancel: func() { *trace = append(*trace, id+":cancel") },
		},
	}
}

func assertTrace(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("trace = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("trace = %v, want %v", got, want)
		}
	}
}

func TestBackdropDismissesOnlyTopmost(t *testing.T) {
	var trace []string
	s := NewModalStack()
	s.Push(hookRecorder("settings", false, &trace))
	s.Push(hookRecorder("confirm", false, &trace))

	if s.BackdropPressed("settings") {
		t.Error("buried modal dismissed by its backdrop")
	}
	if s.Len() != 2 {
		t.Fatalf("depth = %d", s.Len())
	}

	if !s.BackdropPressed("confirm") {
		t.Error("topmost backdrop ignored")
	}
	if s.Len() != 1 || s.Top().ID != "settings" {
		t.Errorf("top after dismiss = %v", s.Top())
	}
}

func TestEscapeRoutesToTopmost(t *testing.T) {
	var trace []string
	s := NewModalStack()
	s.Push(hookRecorder("a", false, &trace))
	s.Push(hookRecorder("b", false, &trace))
	trace = nil

	if !s.Escape() {
		t.Fatal("escape not handled")
	}
	assertTrace(t, trace, "b:cancel", "b:hide", "b:destroy")

	s.Pop()
	if s.Escape() {
		t.Error("escape handled with empty stack")
	}
}

func TestBackPopsOneAndReactivates(t *testing.T) {
	var trace []string
	reactivated := 0
	s := NewModalStack()
	s.OnPanelReactivate = func() { reactivated++ }

	s.Push(hookRecorder("a", false, &trace))
	s.Push(hookRecorder("b", false, &trace))

	s.Back()
	if s.Top().ID != "a" || reactivated != 0 {
		t.Errorf("top = %v, reactivated = %d", s.Top(), reactivated)
	}
	s.Back()
	if s.Len() != 0 || reactivated != 1 {
		t.Errorf("depth = %d, reactivated = %d", s.Len(), reactivated)
	}
}

func TestPersistentModalBuiltOnce(t *testing.T) {
	var trace []string
	m := hookRecorder("persistent", true, &trace)
	s := NewModalStack()

	s.Push(m)
	s.Pop()
	s.Push(m)
	s.Pop()

	assertTrace(t, trace,
		"persistent:build", "persistent:show", "persistent:hide",
		"persistent:show", "persistent:hide")
}

func TestOnDemandModalRebuiltPerShow(t *testing.T) {
	var trace []string
	m := hookRecorder("demand", false, &trace)
	s := NewModalStack()

	s.Push(m)
	s.Pop()
	s.Push(m)
	s.Pop()

	assertTrace(t, trace,
		"demand:build", "demand:show", "demand:hide", "demand:destroy",
		"demand:build", "demand:show", "demand:hide", "demand:destroy")
}

func TestPanelDeactivateFiresOnFirstOverlayOnly(t *testing.T) {
	var causes []string
	s := NewModalStack()
	s.OnPanelDeactivate = func(cause string) { causes = append(causes, cause) }

	var trace []string
	s.Push(hookRecorder("widget_catalog", false, &trace))
	s.Push(hookRecorder("confirm", false, &trace))

	if len(causes) != 1 || causes[0] != "widget_catalog" {
		t.Errorf("deactivation causes = %v", causes)
	}
}

func TestConfirmTopRunsOKThenPops(t *testing.T) {
	var trace []string
	s := NewModalStack()
	s.Push(hookRecorder("save", false, &trace))
	trace = nil

	s.ConfirmTop()
	assertTrace(t, trace, "save:ok", "save:hide", "save:destroy")
}

func TestPlaceKeyboard(t *testing.T) {
	cases := []struct {
		name        string
		align       KeyboardAlign
		top, height int
		want        KeyboardAlign
	}{
		{"explicit top wins", KeyboardTop, 400, 100, KeyboardTop},
		{"explicit bottom wins", KeyboardBottom, 10, 100, KeyboardBottom},
		{"auto, modal in top half", KeyboardAuto, 20, 100, KeyboardBottom},
		{"auto, modal in bottom half", KeyboardAuto, 300, 150, KeyboardTop},
		{"auto, centered modal leans top", KeyboardAuto, 200, 200, KeyboardTop},
	}
	for _, c := range cases {
		if got := PlaceKeyboard(c.align, c.top, c.height, 480); got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}
