// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package resolve

import (
	"fmt"
	"strings"
)

// CycleError is raised when resolving a token transitively requires
// resolving that same token again. Chain holds the display hints of the
// producer chain, ending with the revisited token.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("resolution cycle detected: %s", strings.Join(e.Chain, " -> "))
}
