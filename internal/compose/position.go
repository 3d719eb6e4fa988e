package compose

import (
	"fmt"
	"strconv"

	"github.com/ugckit/ugckit/internal/config"
)

// OverlayCoords maps a corner position to overlay filter coordinate
// expressions. overlayW and overlayH name the layer-size variables in
// the target expression context ("w"/"h" inside an overlay filter).
// Unrecognized positions fail rather than defaulting.
func OverlayCoords(pos config.Position, margin int, overlayW, overlayH string) (string, string, error) {
	switch pos {
	case config.TopLeft:
		return strconv.Itoa(margin), strconv.Itoa(margin), nil
	case config.TopRight:
		return fmt.Sprintf("W-%s-%d", overlayW, margin), strconv.Itoa(margin), nil
	case config.BottomLeft:
		return strconv.Itoa(margin), fmt.Sprintf("H-%s-%d", overlayH, margin), nil
	case config.BottomRight:
		return fmt.Sprintf("W-%s-%d", overlayW, margin), fmt.Sprintf("H-%s-%d", overlayH, margin), nil
	default:
		return "", "", config.Errorf("position", "unrecognized position %q", string(pos))
	}
}
