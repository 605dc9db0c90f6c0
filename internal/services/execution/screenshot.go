package execution

import (
	"fmt"
	"regexp"
	"time"
)

// settleDelay lets the page finish rendering before a failure capture.
const settleDelay = 400 * time.Millisecond

var unsafeNameChars = regexp.MustCompile(`[^\w-]`)

// screenshotName builds a failure artifact name. The batch index plus
// the epoch-millisecond stamp keeps names unique even when two test
// cases share an id.
func screenshotName(index int, tcID string, at time.Time) string {
	return fmt.Sprintf("%03d_%s_%d_failure.png", index, sanitizeName(tcID), at.UnixMilli())
}

func sanitizeName(s string) string {
	return unsafeNameChars.ReplaceAllString(s, "_")
}
