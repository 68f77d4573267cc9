// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dump

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/attnlens/attnlens/pkg/attention"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoExamplesJSON = `{
  "sent_10": {"sentence": "b", "tokens": ["x", "[MASK]", "</s>"],
              "attention": [[[[1,0,0],[0,1,0],[0,0,1]]]]},
  "sent_2":  {"sentence": "a", "tokens": ["y", "[MASK]", "</s>"],
              "attention": [[[[0.5,0.5,0],[0,1,0],[0,0,1]]]]}
}`

func TestDirJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName("dev", ExtJSON)), []byte(twoExamplesJSON), 0o644))
	d, err := NewDir(dir)
	require.NoError(t, err)
	examples, err := d.Examples("dev")
	require.NoError(t, err)
	require.Len(t, examples, 2)
	assert.Equal(t, "sent_2", examples[0].Name)
	assert.Equal(t, "a", examples[0].Sentence)
	assert.Equal(t, "sent_10", examples[1].Name)
	assert.Equal(t, 0.5, examples[0].Attention.Row(0, 0, 0)[1])

	_, err = d.Examples("test")
	assert.Error(t, err)
}

func TestDirJSONL(t *testing.T) {
	dir := t.TempDir()
	examples := []attention.Example{
		{Name: "b_3", Sentence: "s3", Tokens: []string{"[MASK]", "</s>"}, Attention: attention.Tensor{{{{1, 0}, {0, 1}}}}},
		{Name: "b_1", Sentence: "s1", Tokens: []string{"[MASK]", "</s>"}, Attention: attention.Tensor{{{{0, 1}, {1, 0}}}}},
	}
	require.NoError(t, WriteJSONL(filepath.Join(dir, FileName("test", ExtJSONL)), examples))
	d := &Dir{Path: dir}
	p, err := d.FilePath("test")
	require.NoError(t, err)
	assert.Equal(t, ExtJSONL, filepath.Ext(p))
	loaded, err := d.Examples("test")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "b_1", loaded[0].Name)
	assert.Equal(t, examples[1].Attention, loaded[0].Attention)
	assert.Equal(t, examples[0], loaded[1])
}

func TestDecodeErrors(t *testing.T) {
	// Ragged attention.
	_, err := DecodeJSON(strings.NewReader(`{"a": {"tokens": ["x", "y"], "attention": [[[[1,0],[1]]]]}}`))
	assert.Error(t, err)

	// Tokens and attention disagree.
	_, err = DecodeJSONL(strings.NewReader(`{"tokens": ["x"], "attention": [[[[1,0],[0,1]]]]}`))
	assert.Error(t, err)

	// Not JSON.
	_, err = DecodeJSONL(strings.NewReader("\n{oops\n"))
	assert.ErrorContains(t, err, "line 2")

	// Unnamed examples are named after their line.
	examples, err := DecodeJSONL(strings.NewReader(`{"tokens": ["x"], "attention": [[[[1]]]]}` + "\n"))
	require.NoError(t, err)
	assert.Equal(t, "line_1", examples[0].Name)
}
