package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/lgr"
	"github.com/khaledhikmat/wildwatch-go/service/metrics"
)

const (
	// maxReadFailures consecutive failed reads cause the capture to be reopened.
	maxReadFailures = 50
	randomFrameRate = 100 * time.Millisecond
	// systemAlertTimeout bounds the operator notice sent when capture is lost.
	systemAlertTimeout = 30 * time.Second
)

// framer feeds the streamers of one camera. It is the only sender on the
// stream channels and closes them when it exits.
func framer(canxCtx context.Context, svcs ServicesFactory, camera model.Camera, errorStream chan interface{}, statsStream chan interface{}, streamChannels []chan FrameData) {
	go func() {
		defer func() {
			for _, c := range streamChannels {
				close(c)
			}
		}()

		switch camera.FramerType {
		case model.FramerRandom:
			randomFramer(canxCtx, svcs, camera, errorStream, statsStream, streamChannels)
		default:
			captureFramer(canxCtx, svcs, camera, errorStream, statsStream, streamChannels)
		}
	}()
}

func openCapture(camera model.Camera) (*gocv.VideoCapture, error) {
	var source interface{} = camera.Source
	if camera.FramerType == model.FramerDevice {
		idx, err := strconv.Atoi(camera.Source)
		if err != nil {
			return nil, fmt.Errorf("camera %s: device source must be an index, got %q", camera.ID, camera.Source)
		}
		source = idx
	}

	vc, err := gocv.OpenVideoCapture(source)
	if err != nil {
		if vc != nil {
			vc.Close()
		}
		return nil, err
	}
	return vc, nil
}

type framerStats struct {
	name          string
	camera        model.Camera
	start         time.Time
	frames        int
	skippedFrames int
	errors        int
}

func (s *framerStats) emit(statsStream chan interface{}) {
	uptime := int64(time.Since(s.start).Seconds())
	fps := 0
	if uptime > 0 {
		fps = int(float64(s.frames) / float64(uptime))
	}
	report(statsStream, model.FramerStats{
		Name:          s.name,
		Camera:        s.camera.Name,
		Frames:        s.frames,
		SkippedFrames: s.skippedFrames,
		Errors:        s.errors,
		Uptime:        uptime,
		FPS:           fps,
		Timestamp:     time.Now().Unix(),
	})
}

// fanOut hands a clone of img to every streamer. It returns false once the
// context is cancelled.
func fanOut(canxCtx context.Context, img gocv.Mat, streamChannels []chan FrameData) bool {
	now := time.Now()
	for _, streamChan := range streamChannels {
		frame := FrameData{Mat: img.Clone(), Timestamp: now}
		select {
		case <-canxCtx.Done():
			frame.Mat.Close()
			return false
		case streamChan <- frame:
		}
	}
	return true
}

func captureFramer(canxCtx context.Context, svcs ServicesFactory, camera model.Camera, errorStream chan interface{}, statsStream chan interface{}, streamChannels []chan FrameData) {
	stats := &framerStats{name: camera.FramerType + "Framer", camera: camera, start: time.Now()}
	defer stats.emit(statsStream)

	webcam, err := openCapture(camera)
	if err != nil {
		report(errorStream, model.GenError("agent_framer",
			err,
			map[string]interface{}{"camera": camera.ID, "source": camera.Source},
			"error opening capture"))
		return
	}
	defer func() {
		if webcam != nil {
			webcam.Close()
		}
	}()

	failures := 0
	img := gocv.NewMat()
	defer img.Close()

	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info("framer context cancelled",
				slog.String("camera", camera.ID),
			)
			return
		default:
		}

		if ok := webcam.Read(&img); !ok || img.Empty() {
			stats.errors++
			failures++
			if failures < maxReadFailures {
				continue
			}

			report(errorStream, model.GenError("agent_framer",
				fmt.Errorf("%d consecutive read failures", failures),
				map[string]interface{}{"camera": camera.ID},
				"reopening capture"))
			webcam.Close()
			webcam = nil
			failures = 0

			select {
			case <-canxCtx.Done():
				return
			case <-time.After(time.Second):
			}

			webcam, err = openCapture(camera)
			if err != nil {
				report(errorStream, model.GenError("agent_framer",
					err,
					map[string]interface{}{"camera": camera.ID},
					"error reopening capture"))
				captureLost(canxCtx, svcs, camera, err)
				return
			}
			continue
		}

		failures = 0
		stats.frames++
		metrics.FramesTotal.WithLabelValues(camera.ID).Inc()

		if svcs.InferenceSvc.CanSkipFrame(stats.frames) {
			stats.skippedFrames++
			continue
		}

		if !fanOut(canxCtx, img, streamChannels) {
			return
		}
	}
}

// captureLost tells the operators that a camera stopped delivering frames.
func captureLost(canxCtx context.Context, svcs ServicesFactory, camera model.Camera, cause error) {
	if svcs.Handler == nil {
		return
	}
	ctx, cancel := context.WithTimeout(canxCtx, systemAlertTimeout)
	defer cancel()

	svcs.Handler.HandleSystem(ctx, camera.ID,
		fmt.Sprintf("capture lost on %s (%v)", camera.Name, cause))
}

// randomFramer produces synthetic noise frames for running without a camera.
func randomFramer(canxCtx context.Context, svcs ServicesFactory, camera model.Camera, _ chan interface{}, statsStream chan interface{}, streamChannels []chan FrameData) {
	stats := &framerStats{name: "randomFramer", camera: camera, start: time.Now()}
	defer stats.emit(statsStream)

	ticker := time.NewTicker(randomFrameRate)
	defer ticker.Stop()

	img := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer img.Close()

	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info("randomFramer context cancelled",
				slog.String("camera", camera.ID),
			)
			return
		case <-ticker.C:
			stats.frames++
			metrics.FramesTotal.WithLabelValues(camera.ID).Inc()

			if svcs.InferenceSvc.CanSkipFrame(stats.frames) {
				stats.skippedFrames++
				continue
			}

			gocv.RandU(&img, gocv.NewScalar(0, 0, 0, 0), gocv.NewScalar(255, 255, 255, 0))
			if !fanOut(canxCtx, img, streamChannels) {
				return
			}
		}
	}
}
