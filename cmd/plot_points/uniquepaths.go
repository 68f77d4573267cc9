// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"path/filepath"
	"slices"
	"strings"
)

// MinimalUniquePaths returns, for each path, the minimal identifier that distinguishes it from the other
// paths: the path component where it differs from the others, or "first...last" of the differing
// components if there are more than one. A single path is named by its base name.
func MinimalUniquePaths(paths ...string) []string {
	splitPaths := make([][]string, len(paths))
	for ii, path := range paths {
		splitPaths[ii] = strings.Split(filepath.Clean(path), string(filepath.Separator))
	}
	result := make([]string, len(paths))
	for ii, components := range splitPaths {
		var diffIndexes []int
		for jj, otherComponents := range splitPaths {
			if ii == jj {
				continue
			}
			for k := range min(len(components), len(otherComponents)) {
				if components[k] != otherComponents[k] && !slices.Contains(diffIndexes, k) {
					diffIndexes = append(diffIndexes, k)
				}
			}
		}
		slices.Sort(diffIndexes)
		switch len(diffIndexes) {
		case 0:
			result[ii] = components[len(components)-1]
		case 1:
			result[ii] = components[diffIndexes[0]]
		default:
			result[ii] = components[diffIndexes[0]] + "..." + components[diffIndexes[len(diffIndexes)-1]]
		}
	}
	return result
}
