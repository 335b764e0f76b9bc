package inference

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/wildwatch-go/model"
)

type fakeService struct {
	frameSkip int
	every     int
	script    []model.RawDetection

	mu    sync.Mutex
	calls int
	next  int
}

// NewFake returns a detector that replays script round-robin, one detection
// every `every` frames. An empty script never detects anything.
func NewFake(frameSkip, every int, script ...model.RawDetection) IService {
	if every <= 0 {
		every = 1
	}
	return &fakeService{
		frameSkip: frameSkip,
		every:     every,
		script:    script,
	}
}

func (svc *fakeService) Detect(camera model.Camera, _ gocv.Mat) ([]model.RawDetection, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.calls++
	if len(svc.script) == 0 || svc.calls%svc.every != 0 {
		return nil, nil
	}

	det := svc.script[svc.next%len(svc.script)]
	svc.next++
	det.CameraID = camera.ID
	return []model.RawDetection{det}, nil
}

func (svc *fakeService) CanSkipFrame(frames int) bool {
	return skipFrame(frames, svc.frameSkip)
}

func (svc *fakeService) Close() error {
	return nil
}
