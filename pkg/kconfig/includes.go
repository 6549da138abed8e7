// Include resolution for HelixScreen's config editor
//
// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package kconfig

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"helixscreen/pkg/errors"
)

// GlobMatch matches name against an include pattern with '*' (any run)
// and '?' (one character).
func GlobMatch(pattern, name string) bool {
	return globMatch(pattern, name)
}

func globMatch(p, n string) bool {
	for len(p) > 0 {
		switch p[0] {
		case '*':
			for len(p) > 0 && p[0] == '*' {
				p = p[1:]
			}
			if p == "" {
				return true
			}
			for i := 0; i <= len(n); i++ {
				if globMatch(p, n[i:]) {
					return true
				}
			}
			return false
		case '?':
			if n == "" {
				return false
			}
		default:
			if n == "" || p[0] != n[0] {
				return false
			}
		}
		p = p[1:]
		n = n[1:]
	}
	return n == ""
}

// ExtractIncludes returns the include patterns of a file in order.
func ExtractIncludes(s *Structure) []string {
	var out []string
	for _, sec := range s.Sections {
		if strings.HasPrefix(sec.Name, "include ") {
			pattern := strings.TrimSpace(sec.Name[len("include "):])
			if pattern != "" {
				out = append(out, pattern)
			}
		}
	}
	return out
}

// ResolvePath anchors a relative include pattern at the directory of the
// including file.
func ResolvePath(pattern, fromFile string) string {
	if path.IsAbs(pattern) {
		return path.Clean(pattern)
	}
	return path.Clean(path.Join(path.Dir(fromFile), pattern))
}

// ResolveActiveFiles walks the include graph from entry and returns the
// active files in merge order: includes expand before the including
// file, so the includer's own sections override what it pulled in, and
// later files override earlier ones. files maps path → content. A file
// is visited once; cycles are broken by the visited set and runaway
// nesting by maxDepth.
func ResolveActiveFiles(entry string, files map[string]string, maxDepth int) ([]string, error) {
	visited := make(map[string]bool)
	var order []string

	var walk func(file string, depth int) error
	walk = func(file string, depth int) error {
		if visited[file] {
			return nil
		}
		visited[file] = true
		if depth > maxDepth {
			return errors.New(errors.ErrConfigValidation,
				fmt.Sprintf("include depth exceeds %d at %s", maxDepth, file))
		}
		content, ok := files[file]
		if !ok {
			return nil
		}

		for _, pattern := range ExtractIncludes(Parse(content)) {
			resolved := ResolvePath(pattern, file)
			for _, match := range matchingFiles(resolved, files) {
				if err := walk(match, depth+1); err != nil {
					return err
				}
			}
		}
		order = append(order, file)
		return nil
	}

	if err := walk(entry, 0); err != nil {
		return nil, err
	}
	return order, nil
}

// matchingFiles returns the known files matching a resolved pattern,
// sorted for a stable include order.
func matchingFiles(pattern string, files map[string]string) []string {
	var out []string
	for name := range files {
		if GlobMatch(pattern, name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// MergeActive flattens the active files (in resolution order) into
// section → key → value, recording the owning file of every section and
// key. Later files override earlier ones.
func MergeActive(order []string, files map[string]string) map[string]*Section {
	merged := make(map[string]*Section)

	for _, file := range order {
		content, ok := files[file]
		if !ok {
			continue
		}
		for _, sec := range Parse(content).Sections {
			if strings.HasPrefix(sec.Name, "include ") {
				continue
			}
			target, ok := merged[sec.Name]
			if !ok {
				target = &Section{Name: sec.Name, File: file}
				merged[sec.Name] = target
			}
			target.File = file
			for _, k := range sec.Keys {
				if existing := target.Key(k.Name); existing != nil {
					existing.RawValue = k.RawValue
				} else {
					copied := *k
					target.Keys = append(target.Keys, &copied)
				}
			}
		}
	}
	return merged
}
