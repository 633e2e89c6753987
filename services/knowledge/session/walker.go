// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/AleutianAI/codegraph/services/knowledge/ast"
)

// defaultSkipDirs are directory names never descended into, regardless of
// exclude patterns.
var defaultSkipDirs = map[string]bool{
	"vendor":       true,
	"node_modules": true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
	"target":       true,
}

// CompileExcludes compiles user-supplied exclude patterns. Patterns match
// root-relative slash paths, with '/' as the glob separator
// ("**/*_test.go", "generated/**").
func CompileExcludes(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("bad exclude pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func matchAny(globs []glob.Glob, path string) bool {
	for _, g := range globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// collectFiles walks root and returns the parseable files as sorted,
// root-relative slash paths.
//
// Hidden directories, defaultSkipDirs, and exclude matches are skipped.
// A non-empty languages set keeps only files whose parser reports one of
// those languages.
func collectFiles(root string, registry *ast.Registry, languages map[string]bool, excludes []glob.Glob) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			name := d.Name()
			if defaultSkipDirs[name] || strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			if matchAny(excludes, rel) {
				return fs.SkipDir
			}
			return nil
		}

		if matchAny(excludes, rel) {
			return nil
		}
		parser, err := registry.ForFile(rel)
		if err != nil {
			return nil // not a parseable extension
		}
		if len(languages) > 0 && !languages[parser.Language()] {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}
