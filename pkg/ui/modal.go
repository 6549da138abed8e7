// Modal and overlay stack for HelixScreen
//
// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package ui holds the toolkit-independent interaction logic: the modal
// stack, keyboard placement, and the notification center.
package ui

import (
	"helixscreen/pkg/log"
)

// Hooks are the lifecycle callbacks a modal provides. Any of them may be
// nil.
type Hooks struct {
	OnShow     func()
	OnHide     func()
	OnOK       func()
	OnCancel   func()
	OnTertiary func()
}

// Modal is one dismissable overlay. Persistent modals are built once and
// shown/hidden; create-on-demand modals are built per show and destroyed
// on hide.
type Modal struct {
	ID         string
	Persistent bool
	Hooks      Hooks

	// Build allocates the modal's widgets; called on every show for
	// create-on-demand modals and on the first show for persistent ones.
	Build func() error
	// Destroy frees a create-on-demand modal after hide.
	Destroy func()

	built bool
}

// ModalStack manages the overlay stack. Push appends to the back (the
// topmost overlay); dismissal always targets the topmost.
type ModalStack struct {
	logger *log.Logger
	stack  []*Modal

	// OnPanelDeactivate fires when the first overlay covers the base
	// panel, with the ID of the modal that caused it. Grid edit mode
	// uses the ID to survive catalog-caused deactivation.
	OnPanelDeactivate func(causeID string)
	// OnPanelReactivate fires when the last overlay is dismissed.
	OnPanelReactivate func()
}

func NewModalStack() *ModalStack {
	return &ModalStack{logger: log.New("ModalStack")}
}

// Len returns the number of overlays on the stack.
func (s *ModalStack) Len() int {
	return len(s.stack)
}

// Top returns the topmost modal, or nil.
func (s *ModalStack) Top() *Modal {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

// Push shows a modal on top of the stack.
func (s *ModalStack) Push(m *Modal) error {
	if !m.built && m.Build != nil {
		if err := m.Build(); err != nil {
			return err
		}
	}
	m.built = true

	if len(s.stack) == 0 && s.OnPanelDeactivate != nil {
		s.OnPanelDeactivate(m.ID)
	}
	s.stack = append(s.stack, m)
	if m.Hooks.OnShow != nil {
		m.Hooks.OnShow()
	}
	s.logger.Debug("pushed %s (depth %d)", m.ID, len(s.stack))
	return nil
}

// Pop hides and removes the topmost modal, then re-activates whatever is
// newly on top.
func (s *ModalStack) Pop() {
	if len(s.stack) == 0 {
		return
	}
	m := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]

	if m.Hooks.OnHide != nil {
		m.Hooks.OnHide()
	}
	if !m.Persistent {
		if m.Destroy != nil {
			m.Destroy()
		}
		m.built = false
	}
	s.logger.Debug("popped %s (depth %d)", m.ID, len(s.stack))

	if len(s.stack) == 0 && s.OnPanelReactivate != nil {
		s.OnPanelReactivate()
	}
}

// BackdropPressed handles a click on a modal's backdrop. Only the
// topmost modal is dismissable this way; a press on a buried backdrop is
// ignored.
func (s *ModalStack) BackdropPressed(modalID string) bool {
	top := s.Top()
	if top == nil || top.ID != modalID {
		return false
	}
	s.cancelTop()
	return true
}

// Escape routes the escape key to the topmost modal.
func (s *ModalStack) Escape() bool {
	if s.Top() == nil {
		return false
	}
	s.cancelTop()
	return true
}

// Back handles the hardware back button: pop one overlay and land on
// whatever is underneath.
func (s *ModalStack) Back() bool {
	if s.Top() == nil {
		return false
	}
	s.Pop()
	return true
}

// ConfirmTop runs the topmost modal's OK hook and dismisses it.
func (s *ModalStack) ConfirmTop() {
	if top := s.Top(); top != nil {
		if top.Hooks.OnOK != nil {
			top.Hooks.OnOK()
		}
		s.Pop()
	}
}

// TertiaryTop runs the topmost modal's third-button hook without
// dismissing; the hook decides what happens next.
func (s *ModalStack) TertiaryTop() {
	if top := s.Top(); top != nil && top.Hooks.OnTertiary != nil {
		top.Hooks.OnTertiary()
	}
}

func (s *ModalStack) cancelTop() {
	top := s.Top()
	if top.Hooks.OnCancel != nil {
		top.Hooks.OnCancel()
	}
	s.Pop()
}
