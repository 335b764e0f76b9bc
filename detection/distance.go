package detection

import (
	"errors"
	"fmt"

	"github.com/khaledhikmat/wildwatch-go/model"
)

// ErrInvalidGeometry is returned when a distance cannot be derived from the
// bounding box or calibration values.
var ErrInvalidGeometry = errors.New("invalid geometry")

// EstimateDistance applies the pinhole similar-triangles approximation:
// distance = knownHeight * focalLength / pixelHeight.
//
// This is a monocular estimate. Its accuracy depends entirely on the focal
// length having been measured for the physical camera in use.
func EstimateDistance(bboxHeightPx, knownHeightCm, focalLengthPx float64) (float64, error) {
	if bboxHeightPx <= 0 {
		return 0, fmt.Errorf("%w: bounding box height %v px", ErrInvalidGeometry, bboxHeightPx)
	}
	if knownHeightCm <= 0 || focalLengthPx <= 0 {
		return 0, fmt.Errorf("%w: known height %v cm, focal length %v px", ErrInvalidGeometry, knownHeightCm, focalLengthPx)
	}
	return knownHeightCm * focalLengthPx / bboxHeightPx, nil
}

// ReferenceHeights holds the real-world heights used for distance estimation.
// A category entry wins over the tier entry.
type ReferenceHeights struct {
	Category map[string]float64
	Tier     map[model.DangerTier]float64
}

// For returns the reference height in cm, or 0 when none is configured.
func (r ReferenceHeights) For(category string, tier model.DangerTier) float64 {
	if h, ok := r.Category[normalizeLabel(category)]; ok && h > 0 {
		return h
	}
	return r.Tier[tier]
}
