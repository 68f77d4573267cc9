// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiments

import (
	"os"
	"regexp"
	"strings"

	"github.com/attnlens/attnlens/pkg/support/fsutil"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// NameChanges maps experiment directory names to display names, e.g.:
// "learning_rate_1e-05" -> "a.Learning rate = 1e-5".
type NameChanges map[string]string

// LoadNameChanges reads the name changes from a YAML or JSON file (JSON being valid YAML).
func LoadNameChanges(filePath string) (NameChanges, error) {
	filePath, err := fsutil.ReplaceTildeInDir(filePath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read name changes file %q", filePath)
	}
	var changes NameChanges
	if err = yaml.Unmarshal(data, &changes); err != nil {
		return nil, errors.Wrapf(err, "failed to parse name changes file %q", filePath)
	}
	return changes, nil
}

// Apply returns the display name of an experiment, or the name itself if it has no change.
func (nc NameChanges) Apply(name string) string {
	if changed, ok := nc[name]; ok {
		return changed
	}
	return name
}

// orderingPrefix matches prefixes like "a." or "c." used in display names to order the experiments.
var orderingPrefix = regexp.MustCompile(`^[a-zA-Z]\.`)

const robustPrefix = "robust_"

// DisplayLabel removes the ordering prefix ("a.") and the "robust_" prefix from a display name.
func DisplayLabel(name string) string {
	name = orderingPrefix.ReplaceAllString(name, "")
	return strings.TrimPrefix(name, robustPrefix)
}

// DisplayLabels applies DisplayLabel to all names.
func DisplayLabels(names []string) []string {
	labels := make([]string, len(names))
	for ii, name := range names {
		labels[ii] = DisplayLabel(name)
	}
	return labels
}

// Title returns the name of the parameter varied by an experiment, from a display label like
// "Learning rate = 1e-5". If there is no "=", the label is returned trimmed.
func Title(label string) string {
	before, _, _ := strings.Cut(label, "=")
	return strings.TrimSpace(before)
}
