// Klipper config parser for HelixScreen
//
// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package kconfig edits printer.cfg without disturbing it: a dialect of
// INI with multiline values, globbed [include] directives, and a magic
// SAVE_CONFIG block appended by Klipper. All edits operate on the raw
// line array so serialize(parse(x)) == x and untouched bytes stay
// untouched.
package kconfig

import (
	"strings"
)

// Key is one option inside a section. Names are lowercased for lookup;
// the raw line keeps the original spelling.
type Key struct {
	Name      string
	Delimiter byte // ':' or '='
	Line      int  // line index of the key
	EndLine   int  // last line of a multiline value, == Line otherwise
	RawValue  string
}

// Multiline reports whether the value spans continuation lines.
func (k *Key) Multiline() bool {
	return k.EndLine > k.Line
}

// Section is one [name] block with its keys in file order.
type Section struct {
	Name string
	Line int
	Keys []*Key

	// File is the owning config file, filled in by include resolution.
	File string
}

// Key looks up an option by (lowercased) name.
func (s *Section) Key(name string) *Key {
	name = strings.ToLower(name)
	for _, k := range s.Keys {
		if k.Name == name {
			return k
		}
	}
	return nil
}

// Structure is the parsed view over a raw line array.
type Structure struct {
	lines           []string
	trailingNewline bool

	Sections []*Section

	// SaveConfigLine is the index of the SAVE_CONFIG marker, or -1.
	SaveConfigLine int
}

// Parse builds the structured view of a config file. Comments, blank
// lines, and everything after the SAVE_CONFIG marker are preserved in
// the line array but carry no structure.
func Parse(content string) *Structure {
	s := &Structure{
		trailingNewline: strings.HasSuffix(content, "\n"),
		SaveConfigLine:  -1,
	}
	s.lines = strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	if content == "" {
		s.lines = nil
	}
	s.reparse()
	return s
}

// reparse rebuilds sections and keys from the line array. Mutations call
// this instead of patching indices.
func (s *Structure) reparse() {
	s.Sections = nil
	s.SaveConfigLine = -1

	var current *Section
	var lastKey *Key

	for i, line := range s.lines {
		if isSaveConfigMarker(line) {
			s.SaveConfigLine = i
			break
		}
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "" || trimmed[0] == '#' || trimmed[0] == ';':
			// Indented comments inside a multiline value belong to it.
			if lastKey != nil && isContinuation(line) {
				lastKey.EndLine = i
			}
		case line[0] == '[':
			end := strings.IndexByte(line, ']')
			if end < 0 {
				continue
			}
			current = &Section{
				Name: strings.ToLower(strings.TrimSpace(line[1:end])),
				Line: i,
			}
			s.Sections = append(s.Sections, current)
			lastKey = nil
		case isContinuation(line):
			if lastKey != nil {
				lastKey.EndLine = i
				lastKey.RawValue += "\n" + strings.TrimRight(line, " \t")
			}
		default:
			if current == nil {
				continue
			}
			name, delim, value, ok := splitKeyLine(line)
			if !ok {
				continue
			}
			lastKey = &Key{
				Name:      name,
				Delimiter: delim,
				Line:      i,
				EndLine:   i,
				RawValue:  value,
			}
			current.Keys = append(current.Keys, lastKey)
		}
	}
}

// isSaveConfigMarker matches the "#*# <...SAVE_CONFIG...>" banner that
// Klipper writes above its autosave block.
func isSaveConfigMarker(line string) bool {
	return strings.HasPrefix(line, "#*#") &&
		strings.Contains(line, "<") &&
		strings.Contains(line, "SAVE_CONFIG")
}

func isContinuation(line string) bool {
	return len(line) > 0 && (line[0] == ' ' || line[0] == '\t')
}

// splitKeyLine splits "key: value" or "key = value" on whichever
// delimiter comes first.
func splitKeyLine(line string) (name string, delim byte, value string, ok bool) {
	colon := strings.IndexByte(line, ':')
	equals := strings.IndexByte(line, '=')
	pos := colon
	delim = ':'
	if pos < 0 || (equals >= 0 && equals < pos) {
		pos = equals
		delim = '='
	}
	if pos < 0 {
		return "", 0, "", false
	}
	name = strings.ToLower(strings.TrimSpace(line[:pos]))
	if name == "" {
		return "", 0, "", false
	}
	value = strings.TrimSpace(line[pos+1:])
	return name, delim, value, true
}

// Section looks up a section by (lowercased) name. With duplicates the
// last one wins, matching Klipper's override order.
func (s *Structure) Section(name string) *Section {
	name = strings.ToLower(name)
	var found *Section
	for _, sec := range s.Sections {
		if sec.Name == name {
			found = sec
		}
	}
	return found
}

// GetValue returns the raw value of section.key.
func (s *Structure) GetValue(section, key string) (string, bool) {
	sec := s.Section(section)
	if sec == nil {
		return "", false
	}
	k := sec.Key(key)
	if k == nil {
		return "", false
	}
	return k.RawValue, true
}

// Serialize reassembles the exact file contents.
func (s *Structure) Serialize() string {
	out := strings.Join(s.lines, "\n")
	if s.trailingNewline && len(s.lines) > 0 {
		out += "\n"
	}
	return out
}

// Lines returns the raw line array. Callers must not mutate it.
func (s *Structure) Lines() []string {
	return s.lines
}
