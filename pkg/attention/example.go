// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package attention

import (
	"strings"

	"github.com/attnlens/attnlens/pkg/support/xslices"
)

const (
	// MaskToken is the token the model predicts the entity type from.
	MaskToken = "[MASK]"

	// EntityToken marks the start and the end of the entity span in the sentence.
	EntityToken = "[ENTITY]"

	// DefaultMaskIndex is the position of MaskToken in the tokens: it is followed by one terminal marker.
	DefaultMaskIndex = -2

	// NumTrailingTokens is the number of special tokens at the end of the sequence (mask and terminal
	// marker) that are not counted as sentence tokens.
	NumTrailingTokens = 2
)

// Example is one evaluated sentence with the attention computed over its tokens.
type Example struct {
	Name      string   `json:"name,omitempty"`
	Sentence  string   `json:"sentence"`
	Tokens    []string `json:"tokens"`
	Attention Tensor   `json:"attention"`
}

// NumTokens returns the number of sentence tokens, that is, the tokens excluding the trailing mask and
// terminal marker.
func (e *Example) NumTokens() int {
	return max(len(e.Tokens)-NumTrailingTokens, 0)
}

// HasMaskAt returns whether the token at index (negative values count from the end) is maskToken.
func (e *Example) HasMaskAt(index int, maskToken string) bool {
	idx, ok := xslices.NormalizeIndex(index, len(e.Tokens))
	return ok && e.Tokens[idx] == maskToken
}

var specialCharsReplacer = strings.NewReplacer("Ġ", "", "▁", " ", "</w>", "")

// FormatSpecialChars removes the byte-pair-encoding markers from tokens, for display.
// It returns a new slice.
func FormatSpecialChars(tokens []string) []string {
	return xslices.Map(tokens, specialCharsReplacer.Replace)
}
