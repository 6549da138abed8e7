// On-screen keyboard placement for HelixScreen
//
// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package ui

// KeyboardAlign controls where the on-screen keyboard docks.
type KeyboardAlign int

const (
	// KeyboardAuto docks opposite the modal that holds the focused field.
	KeyboardAuto KeyboardAlign = iota
	KeyboardTop
	KeyboardBottom
)

// PlaceKeyboard picks the vertical keyboard position for a focused text
// field. modalTop/modalHeight describe the modal holding the field; with
// KeyboardAuto the keyboard goes to whichever screen half the modal's
// center is not in, so it never covers the field being edited.
func PlaceKeyboard(align KeyboardAlign, modalTop, modalHeight, screenHeight int) KeyboardAlign {
	switch align {
	case KeyboardTop, KeyboardBottom:
		return align
	}
	center := modalTop + modalHeight/2
	if center < screenHeight/2 {
		return KeyboardBottom
	}
	return KeyboardTop
}
