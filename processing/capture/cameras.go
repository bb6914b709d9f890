package capture

import (
	"regexp"

	"github.com/samber/lo"
)

var rearFacing = regexp.MustCompile(`(?i)back|rear|environment`)

// PreferredCamera picks a rear-facing camera by name when there is one and
// otherwise the first camera. It reports false when cameras is empty.
func PreferredCamera(cameras []string) (string, bool) {
	if len(cameras) == 0 {
		return "", false
	}
	if name, ok := lo.Find(cameras, rearFacing.MatchString); ok {
		return name, true
	}
	return cameras[0], true
}
