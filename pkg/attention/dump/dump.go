// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dump loads the attention dumps written by the evaluation of the entity-typing model: one file
// per evaluation set ("dev", "test", ...) in a data directory.
//
// Two layouts are supported:
//
//   - output_attentions_<set>.json: a JSON object mapping the example name to
//     `{"sentence": ..., "tokens": [...], "attention": [[[[...]]]]}`.
//   - output_attentions_<set>.jsonl: one JSON object per line, the same fields plus "name".
//
// Examples are returned sorted by their name, in natural order ("sent_2" before "sent_10").
package dump

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/attnlens/attnlens/pkg/attention"
	"github.com/attnlens/attnlens/pkg/support/fsutil"
	"github.com/attnlens/attnlens/pkg/support/xslices"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// FilePrefix of the attention dump files.
	FilePrefix = "output_attentions_"

	// ExtJSON is the extension of the JSON object layout.
	ExtJSON = ".json"

	// ExtJSONL is the extension of the JSON-lines layout.
	ExtJSONL = ".jsonl"
)

// FileName returns the base file name of the dump of the given evaluation set, for the given extension.
func FileName(evalSet, ext string) string {
	return FilePrefix + evalSet + ext
}

// Dir is a directory with attention dumps. It implements the source of examples for the analysis package.
type Dir struct {
	Path string
}

// NewDir returns a Dir for the given path, expanding a leading "~".
func NewDir(path string) (*Dir, error) {
	path, err := fsutil.ReplaceTildeInDir(path)
	if err != nil {
		return nil, err
	}
	return &Dir{Path: path}, nil
}

// FilePath returns the path of the dump of evalSet, preferring the JSON object layout if both exist.
func (d *Dir) FilePath(evalSet string) (string, error) {
	for _, ext := range []string{ExtJSON, ExtJSONL} {
		p := filepath.Join(d.Path, FileName(evalSet, ext))
		exists, err := fsutil.FileExists(p)
		if err != nil {
			return "", err
		}
		if exists {
			return p, nil
		}
	}
	return "", errors.Errorf("no attention dump for evaluation set %q in %q (looked for %s{%s,%s})",
		evalSet, d.Path, FileName(evalSet, ""), ExtJSON, ExtJSONL)
}

// Examples loads and validates all examples of evalSet.
func (d *Dir) Examples(evalSet string) ([]attention.Example, error) {
	p, err := d.FilePath(evalSet)
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("loading attention dump %q", p)
	f, err := os.Open(p)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open attention dump %q", p)
	}
	defer func() { _ = f.Close() }()
	var examples []attention.Example
	if filepath.Ext(p) == ExtJSONL {
		examples, err = DecodeJSONL(f)
	} else {
		examples, err = DecodeJSON(f)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "attention dump %q", p)
	}
	return examples, nil
}

// DecodeJSON reads the JSON object layout: example name to example.
func DecodeJSON(r io.Reader) ([]attention.Example, error) {
	var byName map[string]attention.Example
	if err := json.NewDecoder(r).Decode(&byName); err != nil {
		return nil, errors.Wrap(err, "failed to decode attention dump")
	}
	examples := make([]attention.Example, 0, len(byName))
	for _, name := range xslices.NaturalKeys(byName) {
		e := byName[name]
		e.Name = name
		if err := validate(&e); err != nil {
			return nil, err
		}
		examples = append(examples, e)
	}
	return examples, nil
}

// DecodeJSONL reads the JSON-lines layout, one example per line. Empty lines are skipped.
// Examples without a name are named after their line number.
func DecodeJSONL(r io.Reader) ([]attention.Example, error) {
	scanner := bufio.NewScanner(r)
	// Attention tensors make for very long lines.
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<30)
	var examples []attention.Example
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e attention.Example
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, errors.Wrapf(err, "failed to decode example in line %d", lineNum)
		}
		if e.Name == "" {
			e.Name = fmt.Sprintf("line_%d", lineNum)
		}
		if err := validate(&e); err != nil {
			return nil, err
		}
		examples = append(examples, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed reading line %d", lineNum+1)
	}
	slices.SortStableFunc(examples, func(a, b attention.Example) int {
		return xslices.NaturalCompare(a.Name, b.Name)
	})
	return examples, nil
}

func validate(e *attention.Example) error {
	if err := e.Attention.Validate(); err != nil {
		return errors.WithMessagef(err, "example %q", e.Name)
	}
	if seqLen := e.Attention.SeqLen(); seqLen != len(e.Tokens) {
		return errors.Errorf("example %q has %d tokens but attention over %d positions", e.Name, len(e.Tokens), seqLen)
	}
	return nil
}

// WriteJSONL writes the examples in the JSON-lines layout to filePath, creating or truncating it.
func WriteJSONL(filePath string, examples []attention.Example) error {
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create attention dump %q", filePath)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for ii := range examples {
		if err = enc.Encode(&examples[ii]); err != nil {
			_ = f.Close()
			return errors.Wrapf(err, "failed to encode example %q", examples[ii].Name)
		}
	}
	if err = w.Flush(); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to write attention dump %q", filePath)
	}
	return errors.Wrapf(f.Close(), "failed to close attention dump %q", filePath)
}
