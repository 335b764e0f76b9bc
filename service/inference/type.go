package inference

import (
	"gocv.io/x/gocv"

	"github.com/khaledhikmat/wildwatch-go/model"
)

// IService turns a frame into raw detections. Implementations must be safe
// for use by several streamer workers.
type IService interface {
	Detect(camera model.Camera, frame gocv.Mat) ([]model.RawDetection, error)
	// CanSkipFrame reports whether the n-th captured frame may be dropped
	// before reaching the streamers.
	CanSkipFrame(frames int) bool
	Close() error
}

// skipFrame keeps every frameSkip-th frame.
func skipFrame(frames, frameSkip int) bool {
	if frameSkip <= 1 {
		return false
	}
	return frames%frameSkip != 0
}
