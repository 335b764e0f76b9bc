package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"
	"gocv.io/x/gocv"

	"github.com/khaledhikmat/wildwatch-go/detection"
	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/config"
	"github.com/khaledhikmat/wildwatch-go/service/lgr"
	"github.com/khaledhikmat/wildwatch-go/service/metrics"
)

// The audit log is shared by every camera so a single writer owns the file.
var (
	auditOnce   sync.Once
	auditLogger *lumberjack.Logger
)

func detectionAuditLog(svcs ServicesFactory) *lumberjack.Logger {
	auditOnce.Do(func() {
		name := svcs.CfgSvc.GetStreamerParameters(config.DetectorStreamerName).AuditLog
		if name == "" {
			return
		}
		if !filepath.IsAbs(name) {
			name = filepath.Join(svcs.CfgSvc.GetDataFolder(), name)
		}
		auditLogger = &lumberjack.Logger{
			Filename:   name,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     7, // days
			Compress:   true,
		}
	})
	return auditLogger
}

type auditEntry struct {
	Time       time.Time        `json:"time"`
	Camera     string           `json:"camera"`
	Category   string           `json:"category"`
	Confidence float64          `json:"confidence"`
	Box        model.BBox       `json:"box"`
	Reason     detection.Reason `json:"reason"`
	Tier       model.DangerTier `json:"tier,omitempty"`
	DistanceCM float64          `json:"distanceCm"`
	Proximity  bool             `json:"proximity"`
	EventID    string           `json:"eventId,omitempty"`
}

func audit(w *lumberjack.Logger, raw model.RawDetection, d detection.Decision, ts time.Time) {
	if w == nil {
		return
	}
	b, err := json.Marshal(auditEntry{
		Time:       ts,
		Camera:     raw.CameraID,
		Category:   raw.Category,
		Confidence: raw.Confidence,
		Box:        raw.Box,
		Reason:     d.Reason,
		Tier:       d.Tier,
		DistanceCM: d.DistanceCM,
		Proximity:  d.Proximity,
		EventID:    d.Event.ID,
	})
	if err != nil {
		return
	}
	_, _ = w.Write(append(b, '\n'))
}

// Detector runs the object detector on incoming frames, feeds every
// detection through the processor and hands emitted events to the alerter.
func Detector(canx context.Context, svcs ServicesFactory, camera model.Camera, errorStream chan interface{}, statsStream chan interface{}, alertStream chan AlertData) chan FrameData {
	in := make(chan FrameData, 100)
	auditLog := detectionAuditLog(svcs)

	lgr.Logger.Info("detector starting...",
		slog.String("camera", camera.ID),
		slog.Int("workers", svcs.CfgSvc.GetStreamerMaxWorkers()),
		slog.String("openCV", gocv.Version()),
	)

	proc := func(frame FrameData, st *model.StreamerStats) {
		defer frame.Mat.Close()

		start := time.Now()
		raws, err := svcs.InferenceSvc.Detect(camera, frame.Mat)
		metrics.InferenceDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			st.Errors++
			report(errorStream, model.GenError("agent_detector",
				err,
				map[string]interface{}{"camera": camera.ID},
				"error running object detection"))
			return
		}

		for _, raw := range raws {
			raw.CameraID = camera.ID
			st.Detections++

			d := svcs.Processor.Decide(raw, frame.Timestamp)
			audit(auditLog, raw, d, frame.Timestamp)

			tier := string(d.Tier)
			if tier == "" {
				tier = "none"
			}
			metrics.DetectionsTotal.WithLabelValues(camera.ID, tier).Inc()
			metrics.DecisionsTotal.WithLabelValues(string(d.Reason)).Inc()

			if !d.Emitted() {
				continue
			}
			st.Events++

			alert := AlertData{Mat: frame.Mat.Clone(), Event: d.Event}
			select {
			case alertStream <- alert:
			default:
				alert.Mat.Close()
				metrics.AlertsDroppedTotal.Inc()
				lgr.Logger.Warn("alertStream full, dropping alert",
					slog.String("camera", camera.ID),
					slog.String("event", d.Event.ID),
					slog.String("tier", string(d.Event.Tier)),
				)
			}
		}
	}

	for i := 0; i < svcs.CfgSvc.GetStreamerMaxWorkers(); i++ {
		go func(worker int) {
			st := model.StreamerStats{
				Name:   "detector",
				Worker: worker,
				Camera: camera.Name,
			}
			beginTime := time.Now()
			var totalProcTime time.Duration

			defer func() {
				st.Uptime = int64(time.Since(beginTime).Seconds())
				if st.Uptime > 0 {
					st.FPS = int(float64(st.Frames) / float64(st.Uptime))
				}
				if st.Frames > 0 {
					st.AvgProcTime = totalProcTime.Seconds() / float64(st.Frames)
				}
				st.Timestamp = time.Now().Unix()
				report(statsStream, st)
			}()

			// The framer closes in; frames still buffered after cancellation
			// are released without processing.
			for f := range in {
				if canx.Err() != nil {
					f.Mat.Close()
					continue
				}

				start := time.Now()
				proc(f, &st)
				st.Frames++
				totalProcTime += time.Since(start)
			}

			lgr.Logger.Info("detector worker exited",
				slog.String("camera", camera.ID),
				slog.Int("worker", worker),
			)
		}(i)
	}

	return in
}
