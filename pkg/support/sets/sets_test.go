// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := Make[string](10)
	assert.Len(t, s, 0)

	s.Insert("dev", "test")
	assert.Len(t, s, 2)
	assert.True(t, s.Has("dev"))
	assert.False(t, s.Has("train"))

	s2 := MakeWith("test", "train")
	s3 := s.Sub(s2)
	assert.Len(t, s3, 1)
	assert.True(t, s3.Has("dev"))

	assert.Equal(t, []string{"dev", "test"}, Sorted(s))
	assert.Equal(t, []int{-3, 1, 7}, Sorted(MakeWith(7, -3, 1, 7)))
}
