package mode

import (
	"context"
	"log/slog"
	"time"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/pipeline"
	"github.com/khaledhikmat/wildwatch-go/service/lgr"
)

// The agents monitor looks for cameras without a live agent and publishes
// them so the agents manager can pick them up.
func Monitor(canxCtx context.Context, svcs pipeline.ServicesFactory, _ []pipeline.Streamer, _ pipeline.Alerter) error {
	period := time.Duration(svcs.CfgSvc.GetAgentsManagerPeriodicTimeout()) * time.Second
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	publish := func() {
		cameras, err := svcs.DataSvc.RetrieveOrphanedCameras(svcs.CfgSvc.GetMaxAgents())
		if err != nil {
			procError(svcs.DataSvc, model.GenError("agents_monitor",
				err,
				map[string]interface{}{},
				"error retrieving orphaned cameras"))
			return
		}

		if len(cameras) > 0 {
			lgr.Logger.Debug("orphaned cameras found", slog.Int("cameras", len(cameras)))
		}

		err = svcs.OrphanSvc.Publish(cameras)
		if err != nil {
			procError(svcs.DataSvc, model.GenError("agents_monitor",
				err,
				map[string]interface{}{},
				"error publishing through orphan service"))
		}
	}

	publish()
	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"agents monitor context cancelled",
			)
			return nil

		case <-ticker.C:
			publish()
		}
	}
}
