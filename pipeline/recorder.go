package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/config"
	"github.com/khaledhikmat/wildwatch-go/service/lgr"
)

const (
	maxClipFrames = 1000
	uploadTimeout = 2 * time.Minute
)

// WARNING:
// GoCV writes lightly compressed frames, so clips can get large. Keep
// clip_duration_seconds short.

// Recorder buffers frames only while a recording trigger is active, writes
// the clip to an MP4 file and uploads it to object storage.
func Recorder(canx context.Context, svcs ServicesFactory, camera model.Camera, errorStream chan interface{}, statsStream chan interface{}, _ chan AlertData) chan FrameData {
	in := make(chan FrameData, 100)

	params := svcs.CfgSvc.GetStreamerParameters(config.RecorderStreamerName)
	clipDuration := time.Duration(params.ClipDuration) * time.Second
	if clipDuration <= 0 {
		clipDuration = 10 * time.Second
	}
	fps := params.ClipFPS
	if fps <= 0 {
		fps = 10
	}

	trigger := svcs.Recordings.Register(camera.ID)

	var clips, errors atomic.Int64

	flush := func(clip []FrameData, event model.AlertEvent) {
		defer closeFrames(clip)
		defer func() {
			if r := recover(); r != nil {
				lgr.Logger.Error("recorder flush panic recovered", slog.Any("panic", r))
			}
		}()

		fn, err := saveFramesAsMP4(svcs.CfgSvc.GetRecordingsFolder(), camera, event, clip, fps)
		if err != nil {
			errors.Add(1)
			report(errorStream, model.GenError("agent_recorder",
				err,
				map[string]interface{}{"camera": camera.ID, "event": event.ID},
				"error saving frames as mp4"))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
		defer cancel()

		clipURL, err := svcs.StorageSvc.StoreFile(ctx, fn)
		if err != nil {
			errors.Add(1)
			report(errorStream, model.GenError("agent_recorder",
				err,
				map[string]interface{}{"camera": camera.ID, "event": event.ID},
				"error storing clip %s", fn))
			return
		}
		clips.Add(1)

		lgr.Logger.Info("clip recorded",
			slog.String("camera", camera.ID),
			slog.String("event", event.ID),
			slog.Int("frames", len(clip)),
			slog.String("url", clipURL),
		)

		// The local file is the clip when storage is not remote.
		if strings.HasPrefix(clipURL, "file://") {
			return
		}
		if err := os.Remove(fn); err != nil {
			report(errorStream, model.GenError("agent_recorder",
				err,
				map[string]interface{}{"camera": camera.ID},
				"error deleting the local clip %s", fn))
		}
	}

	go func() {
		defer svcs.Recordings.Unregister(camera.ID, trigger)

		var (
			clip      []FrameData
			event     model.AlertEvent
			recording bool
			until     time.Time
			frames    int
			beginTime = time.Now()
		)

		defer func() {
			uptime := int64(time.Since(beginTime).Seconds())
			st := model.StreamerStats{
				Name:      "recorder",
				Worker:    -1,
				Camera:    camera.Name,
				Frames:    frames,
				Events:    int(clips.Load()),
				Errors:    int(errors.Load()),
				Uptime:    uptime,
				Timestamp: time.Now().Unix(),
			}
			if uptime > 0 {
				st.FPS = int(float64(frames) / float64(uptime))
			}
			report(statsStream, st)
		}()

		// Finish a partial clip on shutdown
		defer func() {
			if len(clip) > 0 {
				go flush(clip, event)
			}
		}()

		for {
			select {
			case ev := <-trigger:
				if recording {
					lgr.Logger.Debug("recording already in progress",
						slog.String("camera", camera.ID),
						slog.String("event", ev.ID),
					)
					continue
				}
				recording, event, until = true, ev, time.Now().Add(clipDuration)
				lgr.Logger.Info("recording started",
					slog.String("camera", camera.ID),
					slog.String("event", ev.ID),
					slog.Duration("duration", clipDuration),
				)

			case f, ok := <-in:
				if !ok {
					return
				}
				frames++

				if !recording || canx.Err() != nil {
					f.Mat.Close()
					continue
				}

				clip = append(clip, f)
				if f.Timestamp.After(until) || len(clip) >= maxClipFrames {
					go flush(clip, event)
					clip, recording = nil, false
				}
			}
		}
	}()

	return in
}

func closeFrames(frames []FrameData) {
	for _, f := range frames {
		f.Mat.Close()
	}
}

func saveFramesAsMP4(folder string, camera model.Camera, event model.AlertEvent, frames []FrameData, fps float64) (string, error) {
	if len(frames) == 0 {
		return "", fmt.Errorf("no frames to save")
	}

	first := frames[0].Mat
	if first.Empty() || first.Cols() <= 0 || first.Rows() <= 0 {
		return "", fmt.Errorf("invalid first frame: cols=%d, rows=%d", first.Cols(), first.Rows())
	}

	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("create recordings folder: %w", err)
	}

	filename := filepath.Join(folder, fmt.Sprintf("%s_%s.mp4", camera.ID, event.ID))
	writer, err := gocv.VideoWriterFile(filename, "mp4v", fps, first.Cols(), first.Rows(), true)
	if err != nil {
		return "", fmt.Errorf("create video writer: %w", err)
	}
	defer writer.Close()

	size := image.Pt(first.Cols(), first.Rows())
	resized := gocv.NewMat()
	defer resized.Close()

	for _, f := range frames {
		if f.Mat.Empty() {
			continue
		}

		mat := f.Mat
		if f.Mat.Cols() != size.X || f.Mat.Rows() != size.Y {
			if err := gocv.Resize(f.Mat, &resized, size, 0, 0, gocv.InterpolationLinear); err != nil {
				return "", fmt.Errorf("resize frame: %w", err)
			}
			mat = resized
		}

		if err := writer.Write(mat); err != nil {
			return "", fmt.Errorf("write frame: %w", err)
		}
	}

	return filename, nil
}
