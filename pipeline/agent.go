package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/lgr"
)

// report sends a stats or error value to the manager. A manager that has
// already shut down is not waited on forever.
func report(stream chan interface{}, v interface{}) {
	select {
	case stream <- v:
	case <-time.After(reportTimeout):
		lgr.Logger.Warn("report dropped", slog.String("type", fmt.Sprintf("%T", v)))
	}
}

// Agent runs the framer and streamers of one camera until the context is
// cancelled, refreshing the camera heartbeat on every period.
func Agent(canxCtx context.Context,
	svcs ServicesFactory,
	errorStream chan interface{},
	statsStream chan interface{},
	alertStream chan AlertData,
	camera model.Camera,
	agentID string,
	streamers []Streamer) error {
	lgr.Logger.Info(
		"agent starting....",
		slog.String("agentID", agentID),
		slog.String("camera", camera.ID),
		slog.String("framerType", camera.FramerType),
		slog.String("source", camera.Source),
		slog.Int("streamers", len(streamers)),
	)

	if len(streamers) == 0 {
		return fmt.Errorf("camera %s: no streamers", camera.ID)
	}

	agentStartTime := time.Now()
	agentStats := model.AgentStats{
		ID:     agentID,
		Camera: camera.Name,
	}

	err := svcs.DataSvc.UpdateCameraAgentID(camera.ID, agentID)
	if err != nil {
		return fmt.Errorf("error updating camera agent id: %w", err)
	}

	streamChannels := make([]chan FrameData, 0, len(streamers))
	for _, streamer := range streamers {
		streamChannels = append(streamChannels, streamer(canxCtx, svcs, camera, errorStream, statsStream, alertStream))
	}

	framer(canxCtx, svcs, camera, errorStream, statsStream, streamChannels)

	heartbeat := time.NewTicker(time.Duration(svcs.CfgSvc.GetAgentHeartbeatPeriod()) * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"agent context cancelled",
				slog.String("agentID", agentID),
				slog.String("camera", camera.ID),
			)
			return nil

		case <-heartbeat.C:
			// Keep the camera from being reported as orphaned
			err := svcs.DataSvc.UpdateCameraAgentHeartbeat(camera.ID)
			if err != nil {
				lgr.Logger.Error(
					"error updating camera agent heartbeat",
					slog.String("camera", camera.ID),
					slog.Any("error", err),
				)
			}

			agentStats.Uptime = int64(time.Since(agentStartTime).Seconds())
			agentStats.Timestamp = time.Now().Unix()
			report(statsStream, agentStats)
		}
	}
}
