package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/data"
	"github.com/khaledhikmat/wildwatch-go/service/lgr"
	"github.com/khaledhikmat/wildwatch-go/service/metrics"
	"github.com/khaledhikmat/wildwatch-go/service/publisher"
	"github.com/khaledhikmat/wildwatch-go/service/storage"
)

// RecordTrigger asks the camera's recorder to capture a clip for an event.
type RecordTrigger func(event model.AlertEvent)

// Handler runs the full life of one emitted event: persist, upload the
// snapshot, dispatch, record the outcome, publish and trigger recording.
type Handler struct {
	dispatcher *Dispatcher
	enabled    model.ChannelsEnabled
	dataSvc    data.IService
	storageSvc storage.IService
	pubSvc     publisher.IService
	record     RecordTrigger
	now        func() time.Time
}

func NewHandler(dispatcher *Dispatcher,
	enabled model.ChannelsEnabled,
	datasvc data.IService,
	storagesvc storage.IService,
	pubsvc publisher.IService,
	record RecordTrigger) *Handler {
	if record == nil {
		record = func(model.AlertEvent) {}
	}
	return &Handler{
		dispatcher: dispatcher,
		enabled:    enabled,
		dataSvc:    datasvc,
		storageSvc: storagesvc,
		pubSvc:     pubsvc,
		record:     record,
		now:        time.Now,
	}
}

// Handle processes one event. Channel failures are part of the returned
// result; the error is only set when the event could not be persisted.
func (h *Handler) Handle(ctx context.Context, event model.AlertEvent, snapshot []byte) (model.DispatchResult, error) {
	if err := h.dataSvc.NewAlertEvent(event); err != nil {
		return model.DispatchResult{EventID: event.ID, Tier: event.Tier},
			fmt.Errorf("persist alert event %s: %w", event.ID, err)
	}

	if len(snapshot) > 0 {
		key := fmt.Sprintf("snapshots/%s/%s.jpg", event.CameraID, event.ID)
		url, err := h.storageSvc.StoreBytes(ctx, key, snapshot, "image/jpeg")
		if err != nil {
			lgr.Logger.Warn("snapshot upload failed",
				slog.String("event", event.ID),
				slog.Any("error", err),
			)
		} else {
			event.SnapshotURL = url
		}
	}

	start := h.now()
	result := h.dispatcher.Dispatch(ctx, event, h.enabled)
	metrics.DispatchDuration.Observe(h.now().Sub(start).Seconds())

	record := model.AlertRecord{
		Event:     event,
		Result:    result,
		Status:    result.Status(),
		CreatedAt: h.now(),
	}
	if err := h.dataSvc.NewAlertRecord(record); err != nil {
		lgr.Logger.Error("persist alert outcome failed",
			slog.String("event", event.ID),
			slog.Any("error", err),
		)
	}

	if err := h.pubSvc.Publish(ctx, record); err != nil {
		lgr.Logger.Warn("alert publish failed",
			slog.String("event", event.ID),
			slog.Any("error", err),
		)
	}

	if result.RecordVideo {
		h.record(event)
	}

	metrics.AlertsTotal.WithLabelValues(event.Kind(), record.Status).Inc()
	for _, c := range result.Channels {
		outcome := "success"
		if !c.Success {
			outcome = "failure"
		}
		metrics.ChannelDeliveriesTotal.WithLabelValues(c.Channel, outcome).Inc()
	}

	lgr.Logger.Info("alert handled",
		slog.String("event", event.ID),
		slog.String("camera", event.CameraID),
		slog.String("kind", event.Kind()),
		slog.String("category", event.Category),
		slog.Float64("distance", event.DistanceCM),
		slog.String("status", record.Status),
		slog.Bool("tampering", result.PossibleTampering),
	)
	return result, nil
}
