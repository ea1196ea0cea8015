// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package document is the codec for rendered value trees: canonical JSON
// with sorted mapping keys, so the same tree always serializes to the
// same bytes.
package document

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Marshal serializes a rendered (token-free) tree. Mapping keys are
// emitted in sorted order, which matches the resolver's traversal order.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func MarshalIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// Parse reads a serialized document back into a plain tree of
// map[string]any, []any and scalars.
func Parse(b []byte) (any, error) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return v, nil
}

// Canonical returns the canonical byte form of v. Structural equality of
// two trees is equality of their canonical forms.
func Canonical(v any) ([]byte, error) {
	return Marshal(v)
}

// Equal compares two trees by canonical form.
func Equal(a, b any) bool {
	ab, err := Canonical(a)
	if err != nil {
		return false
	}
	bb, err := Canonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// Hash computes the SHA-256 hex digest of v's canonical form. Export
// names are derived from it so they stay stable across reruns.
func Hash(v any) (string, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// IsEmpty reports whether v is an empty mapping or sequence.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}

// IsScalar reports whether v is a leaf value: string, number, boolean
// or null.
func IsScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, int, int64, float64, json.Number:
		return true
	}
	return false
}

// Get reads a path from a serialized document.
func Get(doc []byte, path string) gjson.Result {
	return gjson.GetBytes(doc, path)
}

// Set writes a value at a path in a serialized document.
func Set(doc []byte, path string, v any) ([]byte, error) {
	return sjson.SetBytes(doc, path, v)
}
