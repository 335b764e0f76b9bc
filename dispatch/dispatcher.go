// Package dispatch routes alert events to notification channels by danger
// tier and records what each channel did.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/config"
	"github.com/khaledhikmat/wildwatch-go/service/lgr"
	"github.com/khaledhikmat/wildwatch-go/service/notify"
)

const defaultChannelTimeout = 10 * time.Second

// Route is the routing decision for one event.
type Route struct {
	SMS               []string
	Email             []string
	Cue               string
	LoggedOnly        bool
	RecordVideo       bool
	PossibleTampering bool
}

type Dispatcher struct {
	contacts      config.Contacts
	notifyLowTier bool
	timeout       time.Duration
	channels      map[string]notify.Channel
	tracer        trace.Tracer
}

func NewDispatcher(contacts config.Contacts, params config.AlertParameters, channels ...notify.Channel) *Dispatcher {
	timeout := time.Duration(params.ChannelTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultChannelTimeout
	}

	return &Dispatcher{
		contacts:      contacts,
		notifyLowTier: params.NotifyLowTier,
		timeout:       timeout,
		channels: lo.SliceToMap(channels, func(c notify.Channel) (string, notify.Channel) {
			return c.Name(), c
		}),
		tracer: otel.Tracer("github.com/khaledhikmat/wildwatch-go/dispatch"),
	}
}

// Route decides recipients, sound cue and flags for an event.
func (d *Dispatcher) Route(event model.AlertEvent) Route {
	c := d.contacts
	switch {
	case event.Proximity:
		return Route{
			SMS:               c.SecurityNumbers,
			Email:             c.SecurityEmails,
			Cue:               CueProximity,
			RecordVideo:       true,
			PossibleTampering: true,
		}
	case event.Tier == model.TierHigh:
		return Route{
			SMS:         lo.Uniq(append(append([]string{}, c.FarmerNumbers...), c.AuthorityNumbers...)),
			Email:       lo.Uniq(append(append([]string{}, c.FarmerEmails...), c.AuthorityEmails...)),
			Cue:         CueDeterrent,
			RecordVideo: true,
		}
	case event.Tier == model.TierMedium:
		return Route{
			SMS:         c.FarmerNumbers,
			Cue:         CueMonitoring,
			RecordVideo: true,
		}
	case event.Tier == model.TierHuman:
		return Route{
			SMS:   c.SecurityNumbers,
			Email: c.SecurityEmails,
			Cue:   CueWarning,
		}
	default:
		if d.notifyLowTier {
			return Route{SMS: c.FarmerNumbers}
		}
		return Route{LoggedOnly: true}
	}
}

type delivery struct {
	channel    notify.Channel
	recipients []string
}

// Dispatch sends the event on every enabled channel of its route. Channels
// run concurrently, each with its own timeout and a single attempt. A channel
// failure is recorded in the result and never affects the others.
func (d *Dispatcher) Dispatch(ctx context.Context, event model.AlertEvent, enabled model.ChannelsEnabled) model.DispatchResult {
	ctx, span := d.tracer.Start(ctx, "dispatch",
		trace.WithAttributes(
			attribute.String("event.id", event.ID),
			attribute.String("event.kind", event.Kind()),
			attribute.String("camera.id", event.CameraID),
		))
	defer span.End()

	route := d.Route(event)
	result := model.DispatchResult{
		EventID:           event.ID,
		Tier:              event.Tier,
		LoggedOnly:        route.LoggedOnly,
		RecordVideo:       route.RecordVideo,
		PossibleTampering: route.PossibleTampering,
	}
	if route.LoggedOnly {
		lgr.Logger.Info("alert logged only",
			slog.String("event", event.ID),
			slog.String("camera", event.CameraID),
			slog.String("category", event.Category),
			slog.Float64("distance", event.DistanceCM),
		)
		return result
	}

	var deliveries []delivery
	add := func(on bool, name string, recipients []string, needsRecipients bool) {
		if !on {
			return
		}
		if needsRecipients && len(recipients) == 0 {
			lgr.Logger.Debug("channel skipped, no recipients",
				slog.String("channel", name),
				slog.String("event", event.ID),
			)
			return
		}
		ch, ok := d.channels[name]
		if !ok {
			lgr.Logger.Warn("channel skipped, not configured",
				slog.String("channel", name),
				slog.String("event", event.ID),
			)
			return
		}
		deliveries = append(deliveries, delivery{channel: ch, recipients: recipients})
	}
	add(enabled.SMS, notify.SMS, route.SMS, true)
	add(enabled.Email, notify.Email, route.Email, true)
	add(enabled.Sound && route.Cue != "", notify.Sound, nil, false)

	if len(deliveries) == 0 {
		lgr.Logger.Warn("alert not delivered, no channel attempted",
			slog.String("event", event.ID),
			slog.String("kind", event.Kind()),
			slog.String("camera", event.CameraID),
		)
		return result
	}

	msg := Render(event)
	results := make([]model.ChannelResult, len(deliveries))

	var g errgroup.Group
	for i, dl := range deliveries {
		i, dl := i, dl
		g.Go(func() error {
			results[i] = d.send(ctx, dl, msg)
			return nil
		})
	}
	_ = g.Wait()

	result.Channels = results
	for _, r := range result.Failed() {
		span.AddEvent("channel failed", trace.WithAttributes(
			attribute.String("channel", r.Channel),
			attribute.String("error", r.Error),
		))
		lgr.Logger.Error("channel delivery failed",
			slog.String("channel", r.Channel),
			slog.String("event", event.ID),
			slog.String("error", r.Error),
		)
	}
	span.SetAttributes(attribute.String("dispatch.status", result.Status()))
	if result.Status() == model.AlertStatusFailed {
		span.SetStatus(codes.Error, "all channels failed")
	}
	return result
}

func (d *Dispatcher) send(ctx context.Context, dl delivery, msg notify.Message) model.ChannelResult {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	res := model.ChannelResult{
		Channel:    dl.channel.Name(),
		Recipients: len(dl.recipients),
	}
	if err := dl.channel.Send(ctx, dl.recipients, msg); err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	return res
}

// Close closes every registered channel.
func (d *Dispatcher) Close() {
	for name, ch := range d.channels {
		if err := ch.Close(); err != nil {
			lgr.Logger.Warn("channel close", slog.String("channel", name), slog.Any("error", err))
		}
	}
}
