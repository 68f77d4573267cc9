// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provide generic slice and map helpers missing from the standard slices package.
package xslices

import (
	"cmp"
	"flag"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/exp/constraints"
)

// At takes an element at the given `index`, where `index` can be negative, in which case it takes from the end
// of the slice.
func At[T any](slice []T, index int) T {
	if index < 0 {
		index = len(slice) + index
	}
	return slice[index]
}

// Last returns the last element of a slice.
func Last[T any](slice []T) T {
	return At(slice, -1)
}

// NormalizeIndex converts a possibly negative `index` into a position in a slice of length `n`.
// It returns false if the index falls outside of `[0, n)`.
func NormalizeIndex(index, n int) (int, bool) {
	if index < 0 {
		index = n + index
	}
	return index, index >= 0 && index < n
}

// Keys returns the keys of a map in the form of a slice, in no particular order.
func Keys[K comparable, V any](m map[K]V) []K {
	s := make([]K, 0, len(m))
	for k := range m {
		s = append(s, k)
	}
	return s
}

// SortedKeys returns the sorted keys of a map in the form of a slice.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	s := Keys(m)
	slices.Sort(s)
	return s
}

// NaturalKeys returns the keys of a map sorted in "natural order", see NaturalCompare.
func NaturalKeys[V any](m map[string]V) []string {
	s := Keys(m)
	slices.SortFunc(s, NaturalCompare)
	return s
}

// NaturalCompare compares strings treating embedded runs of digits as numbers, so that "sent_2" sorts before
// "sent_10".
func NaturalCompare(a, b string) int {
	for a != "" && b != "" {
		aDigits, bDigits := leadingDigits(a), leadingDigits(b)
		if aDigits != "" && bDigits != "" {
			aNum, _ := strconv.ParseUint(aDigits, 10, 64)
			bNum, _ := strconv.ParseUint(bDigits, 10, 64)
			if c := cmp.Compare(aNum, bNum); c != 0 {
				return c
			}
			a, b = a[len(aDigits):], b[len(bDigits):]
			continue
		}
		if c := cmp.Compare(a[0], b[0]); c != 0 {
			return c
		}
		a, b = a[1:], b[1:]
	}
	return cmp.Compare(len(a), len(b))
}

func leadingDigits(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
	if end == -1 {
		return s
	}
	return s[:end]
}

// Iota returns a slice of incremental values, starting with start and of length len.
// Eg: Iota(3.0, 2) -> []float64{3.0, 4.0}
func Iota[T constraints.Integer | constraints.Float](start T, len int) (slice []T) {
	slice = make([]T, len)
	for ii := range slice {
		slice[ii] = start + T(ii)
	}
	return
}

// Map executes the given function sequentially for every element on in, and returns a mapped slice.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// Make2D creates a `[dim0][dim1]T` slice backed by a single allocation.
func Make2D[T any](dim0, dim1 int) [][]T {
	data := make([]T, dim0*dim1)
	out := make([][]T, dim0)
	for ii := range out {
		out[ii] = data[ii*dim1 : (ii+1)*dim1 : (ii+1)*dim1]
	}
	return out
}

// Flag creates a flag for []T with the given name, description and default value.
// It takes as input a parser for an individual T value.
func Flag[T any](name string, defaultValue []T, usage string,
	parserFn func(valueStr string) (T, error)) *[]T {
	f := &genericSliceFlagImpl[T]{
		parsedSlice: defaultValue,
		parserFn:    parserFn,
	}
	flag.Var(f, name, usage)
	return &f.parsedSlice
}

// genericSliceFlagImpl implements flag.Value for a generic type.
type genericSliceFlagImpl[T any] struct {
	parsedSlice []T
	parserFn    func(valueStr string) (T, error)
}

func (f *genericSliceFlagImpl[T]) String() string {
	parts := make([]string, len(f.parsedSlice))
	for ii, elem := range f.parsedSlice {
		if s, ok := any(elem).(fmt.Stringer); ok {
			parts[ii] = s.String()
		} else {
			parts[ii] = fmt.Sprintf("%v", elem)
		}
	}
	return strings.Join(parts, ",")
}

func (f *genericSliceFlagImpl[T]) Set(listStr string) error {
	if listStr == "" {
		f.parsedSlice = make([]T, 0)
		return nil
	}
	parts := strings.Split(listStr, ",")
	f.parsedSlice = make([]T, len(parts))
	var err error
	for ii, part := range parts {
		f.parsedSlice[ii], err = f.parserFn(strings.TrimSpace(part))
		if err != nil {
			return err
		}
	}
	return nil
}
