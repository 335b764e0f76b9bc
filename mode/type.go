package mode

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/pipeline"
	"github.com/khaledhikmat/wildwatch-go/service/data"
	"github.com/khaledhikmat/wildwatch-go/service/lgr"
	"github.com/khaledhikmat/wildwatch-go/service/metrics"
)

type Processor func(canxCtx context.Context,
	svcs pipeline.ServicesFactory,
	streamers []pipeline.Streamer,
	alerter pipeline.Alerter) error

func procStats(datasvc data.IService, stats interface{}) {
	var err error
	switch stats := stats.(type) {
	case model.AgentsManagerStats:
		err = datasvc.NewAgentsManagerStats(stats)
	case model.AgentStats:
		err = datasvc.NewAgentStats(stats)
	case model.FramerStats:
		err = datasvc.NewFramerStats(stats)
	case model.StreamerStats:
		err = datasvc.NewStreamerStats(stats)
	case model.AlerterStats:
		err = datasvc.NewAlerterStats(stats)
	default:
		lgr.Logger.Error(
			"unknown stats type",
			slog.Any("stats", stats),
		)
		return
	}

	if err != nil {
		lgr.Logger.Error(
			"failed to store stats",
			slog.String("type", fmt.Sprintf("%T", stats)),
			slog.Any("error", err),
		)
	}
}

func procError(datasvc data.IService, e interface{}) {
	err, ok := e.(error)
	if !ok {
		err = fmt.Errorf("%v", e)
	}

	processor := "unknown"
	var cerr model.CustomError
	if xerrors.As(err, &cerr) {
		processor = cerr.Processor
	}
	metrics.RuntimeErrorsTotal.WithLabelValues(processor).Inc()

	lgr.Logger.Error(
		"runtime error",
		slog.String("processor", processor),
		slog.Any("error", err),
	)

	if errTemp := datasvc.NewError(err); errTemp != nil {
		lgr.Logger.Error(
			"failed to store error",
			slog.Any("error", errTemp),
		)
	}
}
