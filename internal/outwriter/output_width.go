package outwriter

import (
	"os"

	"github.com/huangsam/repohealth/internal/contract"
	"golang.org/x/term"
)

// GetMaxTextWidth calculates the width left for a free-text column, such as a
// check detail or an error, once fixedWidth is reserved for the other columns.
func GetMaxTextWidth(cfg *contract.Config, fixedWidth int) int {
	var termWidth int

	// Check for absolute width override from flag/env
	if cfg.Width > 0 {
		termWidth = cfg.Width
	}

	if termWidth == 0 { // Not set by override
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	// Reserve generous space for table borders, separators, and padding
	available := termWidth - fixedWidth - 20
	if available < 15 {
		return 15
	}
	if available > 90 {
		return 90
	}
	return available
}
