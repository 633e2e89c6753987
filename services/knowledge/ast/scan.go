// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"strings"
)

// scanSource is the shared input for the heuristic extractors: the source
// split into lines, plus a parallel "stripped" view with string literals and
// comments blanked out so keyword-anchored patterns do not fire inside
// strings.
//
// The stripping is line-oriented and approximate: template literals and
// block comments spanning lines are handled, but exotic nesting (a backtick
// string containing "*/") can confuse it. That imprecision is part of the
// heuristic extractors' documented best-effort contract.
type scanSource struct {
	lines    []string
	stripped []string
}

// newScanSource splits content into lines and computes the stripped view.
//
// lineComment is the language's line-comment prefix ("//" or "#").
// blockComments enables /* ... */ handling.
func newScanSource(content []byte, lineComment string, blockComments bool) *scanSource {
	lines := strings.Split(string(content), "\n")
	stripped := make([]string, len(lines))

	inBlockComment := false
	for i, line := range lines {
		stripped[i] = stripLine(line, lineComment, blockComments, &inBlockComment)
	}
	return &scanSource{lines: lines, stripped: stripped}
}

// stripLine blanks string literals and comments in one line, preserving
// length and column positions (blanked characters become spaces).
func stripLine(line, lineComment string, blockComments bool, inBlockComment *bool) string {
	out := []rune(line)
	var quote rune // active string delimiter, 0 when outside strings

	for i := 0; i < len(out); i++ {
		c := out[i]

		if *inBlockComment {
			if blockComments && c == '*' && i+1 < len(out) && out[i+1] == '/' {
				*inBlockComment = false
				out[i], out[i+1] = ' ', ' '
				i++
				continue
			}
			out[i] = ' '
			continue
		}

		if quote != 0 {
			if c == '\\' && i+1 < len(out) {
				out[i], out[i+1] = ' ', ' '
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			out[i] = ' '
			continue
		}

		switch {
		case c == '"' || c == '\'' || c == '`':
			quote = c
			out[i] = ' '
		case blockComments && c == '/' && i+1 < len(out) && out[i+1] == '*':
			*inBlockComment = true
			out[i], out[i+1] = ' ', ' '
			i++
		case strings.HasPrefix(string(out[i:]), lineComment):
			for j := i; j < len(out); j++ {
				out[j] = ' '
			}
			return string(out)
		}
	}

	// Single-quoted strings do not continue across lines in any of the
	// heuristic languages; template literals do, but treating each line
	// independently keeps the scanner simple at the cost of occasional
	// false positives inside multi-line templates.
	return string(out)
}

// blockEnd returns the 0-indexed line on which the brace block opened at or
// after startIdx closes. Scans the stripped view so braces in strings and
// comments are ignored. Returns startIdx when no opening brace is found
// (single-line declaration) and the last line when the block never closes
// (truncated or malformed source).
func (s *scanSource) blockEnd(startIdx int) int {
	depth := 0
	opened := false
	for i := startIdx; i < len(s.stripped); i++ {
		for _, c := range s.stripped[i] {
			switch c {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
				if opened && depth == 0 {
					return i
				}
			}
		}
		// Declarations that never open a block (e.g. "type X = Y" or an
		// abstract method) end on their own line.
		if !opened && i > startIdx {
			return startIdx
		}
	}
	if !opened {
		return startIdx
	}
	return len(s.stripped) - 1
}

// docAbove collects the comment block immediately above declIdx, handling
// both line comments and /* */ blocks. Returns the comment text with
// markers trimmed, or "".
func (s *scanSource) docAbove(declIdx int, lineComment string) string {
	var parts []string
	i := declIdx - 1

	// Skip decorator/annotation lines between comment and declaration.
	for i >= 0 {
		trimmed := strings.TrimSpace(s.lines[i])
		if strings.HasPrefix(trimmed, "@") {
			i--
			continue
		}
		break
	}

	// Closing of a block comment directly above.
	if i >= 0 && strings.HasSuffix(strings.TrimSpace(s.lines[i]), "*/") {
		for ; i >= 0; i-- {
			trimmed := strings.TrimSpace(s.lines[i])
			cleaned := strings.TrimPrefix(trimmed, "/**")
			cleaned = strings.TrimPrefix(cleaned, "/*")
			cleaned = strings.TrimSuffix(cleaned, "*/")
			cleaned = strings.TrimPrefix(strings.TrimSpace(cleaned), "*")
			cleaned = strings.TrimSpace(cleaned)
			if cleaned != "" {
				parts = append([]string{cleaned}, parts...)
			}
			if strings.HasPrefix(trimmed, "/*") {
				break
			}
		}
		return strings.Join(parts, " ")
	}

	// Run of line comments directly above.
	for ; i >= 0; i-- {
		trimmed := strings.TrimSpace(s.lines[i])
		if !strings.HasPrefix(trimmed, lineComment) {
			break
		}
		cleaned := strings.TrimSpace(strings.TrimPrefix(trimmed, lineComment))
		parts = append([]string{cleaned}, parts...)
	}
	return strings.Join(parts, " ")
}

// annotationsAbove collects @Name decorator/annotation lines immediately
// above declIdx (TypeScript decorators, Java annotations).
func (s *scanSource) annotationsAbove(declIdx int) []string {
	var names []string
	for i := declIdx - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(s.lines[i])
		if !strings.HasPrefix(trimmed, "@") {
			break
		}
		name := strings.TrimPrefix(trimmed, "@")
		if idx := strings.IndexAny(name, "( \t"); idx >= 0 {
			name = name[:idx]
		}
		if name != "" {
			names = append([]string{name}, names...)
		}
	}
	return names
}

// splitNameList splits "A, B<T>, C" into bare names with generic arguments
// removed.
func splitNameList(list string) []string {
	var names []string
	for _, part := range strings.Split(list, ",") {
		name := strings.TrimSpace(part)
		if idx := strings.IndexAny(name, "<( "); idx >= 0 {
			name = name[:idx]
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}
