// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package connect

import "fmt"

// DuplicateMemberError is returned when a member is added twice to the
// same peer set. Recoverable: the caller may ignore it or halt.
type DuplicateMemberError struct {
	Set    string
	Member string
}

func (e *DuplicateMemberError) Error() string {
	return fmt.Sprintf("member %s already present in peer set %q", e.Member, e.Set)
}

// InvalidRuleRangeError is returned from Allow when a port or protocol
// range is outside the protocol's valid domain.
type InvalidRuleRangeError struct {
	Port   Port
	Reason string
}

func (e *InvalidRuleRangeError) Error() string {
	return fmt.Sprintf("invalid rule range %s: %s", e.Port, e.Reason)
}
