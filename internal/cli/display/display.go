// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package display

import (
	"fmt"
	"strings"

	"github.com/platform-engineering-labs/tessera"
)

const (
	Banner = `
 o000o  ooooo  oooo0  oooo0  ooooo oooo0   o0o
   0    0o     0o     0o     0o    0o  0  0o 0o
   0    ooo0   o0o0o  o0o0o  ooo0  ooo0   o0ooo0
   0    0o         0      0  0o    0o 0o  0o  0o
   0    oooo0  0ooo0  0ooo0  ooooo 0o  0o 0o  0o   vversion
`
	DocRoot = "https://docs.tessera.dev/en/latest"
)

func ClearScreen() {
	fmt.Print("\033[2J")   // Move cursor to top left
	fmt.Print("\033[2;1H") // Clear screen
}

func PrintBanner() {
	fmt.Println(LightBlue(strings.Replace(Banner, "version", tessera.Version, 1)))
}

func Success(msg string) {
	fmt.Print(Green(fmt.Sprintf("%s\n", msg)))
}

func Warning(msg string) {
	fmt.Print(Gold(fmt.Sprintf("Warning: %s\n", msg)))
}

func Error(msg string) {
	fmt.Print(Red(fmt.Sprintf("Error: %s\n", msg)))
}

func DefaultLinks() string {
	return Links("Docs", "")
}

func Links(docLinkName string, deepLinkName string) string {
	deepLink := DocRoot
	if deepLinkName != "" {
		deepLink += "/" + deepLinkName
	}

	return "\n" + Gold("Code: ") + "https://github.com/platform-engineering-labs/tessera" +
		"\n" + Gold(fmt.Sprintf("%s: ", docLinkName)) + deepLink +
		"\n" + Gold("Bugs: ") + "https://github.com/platform-engineering-labs/tessera/issues"
}
