// Klipper config edits for HelixScreen
//
// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package kconfig

import (
	"fmt"
	"strings"

	"helixscreen/pkg/errors"
)

// SetValue replaces the value of section.key, keeping every byte of the
// prefix: key spelling, delimiter, and the whitespace after it. A value
// containing newlines becomes a multiline block with the section's
// continuation indent.
func (s *Structure) SetValue(section, key, value string) error {
	sec := s.Section(section)
	if sec == nil {
		return errors.New(errors.ErrConfigValidation,
			fmt.Sprintf("no section [%s]", section))
	}
	k := sec.Key(key)
	if k == nil {
		return errors.New(errors.ErrConfigValidation,
			fmt.Sprintf("no key %s in [%s]", key, section))
	}

	line := s.lines[k.Line]
	delim := strings.IndexByte(line, k.Delimiter)
	prefix := line[:delim+1]
	ws := line[delim+1:]
	cut := len(ws) - len(strings.TrimLeft(ws, " \t"))
	prefix += ws[:cut]
	if cut == 0 {
		prefix += " "
	}

	parts := strings.Split(value, "\n")
	newLines := []string{prefix + parts[0]}
	for _, part := range parts[1:] {
		newLines = append(newLines, "    "+part)
	}

	s.splice(k.Line, k.EndLine+1, newLines)
	return nil
}

// AddKey appends a new option after the last key of the section.
func (s *Structure) AddKey(section, key, value string) error {
	sec := s.Section(section)
	if sec == nil {
		return errors.New(errors.ErrConfigValidation,
			fmt.Sprintf("no section [%s]", section))
	}
	if sec.Key(key) != nil {
		return s.SetValue(section, key, value)
	}

	insert := sec.Line + 1
	if n := len(sec.Keys); n > 0 {
		insert = sec.Keys[n-1].EndLine + 1
	}
	s.splice(insert, insert, []string{key + ": " + value})
	return nil
}

// RemoveKey comments the key's lines out with a leading '#' instead of
// deleting them, so line numbers stay stable for any pending diff.
func (s *Structure) RemoveKey(section, key string) error {
	sec := s.Section(section)
	if sec == nil {
		return errors.New(errors.ErrConfigValidation,
			fmt.Sprintf("no section [%s]", section))
	}
	k := sec.Key(key)
	if k == nil {
		return errors.New(errors.ErrConfigValidation,
			fmt.Sprintf("no key %s in [%s]", key, section))
	}

	for i := k.Line; i <= k.EndLine; i++ {
		s.lines[i] = "#" + s.lines[i]
	}
	s.reparse()
	return nil
}

// splice replaces lines [from, to) with replacement and reparses.
func (s *Structure) splice(from, to int, replacement []string) {
	out := make([]string, 0, len(s.lines)-(to-from)+len(replacement))
	out = append(out, s.lines[:from]...)
	out = append(out, replacement...)
	out = append(out, s.lines[to:]...)
	s.lines = out
	s.reparse()
}
