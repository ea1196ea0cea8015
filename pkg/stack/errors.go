// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package stack

import "fmt"

// UnsupportedCrossUnitValueError is raised at render time when a value
// used across a unit boundary does not resolve to a stable scalar-ish
// identity. Cross-boundary exporting supports leaf values, not arbitrary
// structured trees.
type UnsupportedCrossUnitValueError struct {
	Producing string
	Consuming string
	Hint      string
	Value     any
}

func (e *UnsupportedCrossUnitValueError) Error() string {
	return fmt.Sprintf(
		"value %s cannot cross the unit boundary from %q to %q: only scalar values and reference expressions are exportable (got %T)",
		e.Hint, e.Producing, e.Consuming, e.Value,
	)
}
