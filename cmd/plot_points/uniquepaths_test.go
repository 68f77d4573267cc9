// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinimalUniquePaths(t *testing.T) {
	assert.Equal(t, []string{"seed_1"}, MinimalUniquePaths("/out/plot_points/seed_1"))
	assert.Equal(t, []string{"seed_1", "seed_2"},
		MinimalUniquePaths("/out/plot_points/seed_1", "/out/plot_points/seed_2/"))
	assert.Equal(t, []string{"a...seed_1", "b...seed_2"},
		MinimalUniquePaths("/out/a/plot_points/seed_1", "/out/b/plot_points/seed_2"))
	assert.Empty(t, MinimalUniquePaths())
}
