package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/lgr"
	"github.com/khaledhikmat/wildwatch-go/service/metrics"
	"github.com/khaledhikmat/wildwatch-go/service/notify"
)

// SystemKind labels system alerts in metrics and logs.
const SystemKind = "system"

// RenderSystem builds the operator message for a runtime problem on a camera.
func RenderSystem(cameraID, problem string, at time.Time) notify.Message {
	return notify.Message{
		Subject: fmt.Sprintf("SYSTEM ALERT: Camera %s", cameraID),
		Text: fmt.Sprintf("SYSTEM ALERT (Camera %s): %s [%s]",
			cameraID, problem, at.Format(timestampLayout)),
	}
}

// DispatchSystem texts the farmer contacts about a runtime problem, such as
// a camera whose capture was lost. It uses SMS only.
func (d *Dispatcher) DispatchSystem(ctx context.Context, cameraID, problem string, at time.Time, enabled model.ChannelsEnabled) model.DispatchResult {
	var result model.DispatchResult

	recipients := d.contacts.FarmerNumbers
	ch, ok := d.channels[notify.SMS]
	if !enabled.SMS || !ok || len(recipients) == 0 {
		lgr.Logger.Warn("system alert not delivered, sms unavailable",
			slog.String("camera", cameraID),
			slog.String("problem", problem),
		)
		return result
	}

	result.Channels = []model.ChannelResult{
		d.send(ctx, delivery{channel: ch, recipients: recipients}, RenderSystem(cameraID, problem, at)),
	}
	return result
}

// HandleSystem dispatches a system alert and accounts for it.
func (h *Handler) HandleSystem(ctx context.Context, cameraID, problem string) model.DispatchResult {
	result := h.dispatcher.DispatchSystem(ctx, cameraID, problem, h.now(), h.enabled)

	status := result.Status()
	metrics.AlertsTotal.WithLabelValues(SystemKind, status).Inc()
	for _, c := range result.Channels {
		outcome := "success"
		if !c.Success {
			outcome = "failure"
		}
		metrics.ChannelDeliveriesTotal.WithLabelValues(c.Channel, outcome).Inc()
	}

	lgr.Logger.Warn("system alert handled",
		slog.String("camera", cameraID),
		slog.String("problem", problem),
		slog.String("status", status),
	)
	return result
}
