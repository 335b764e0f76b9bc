package main

import (
	"context"
	"log/slog"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/wildwatch-go/detection"
	"github.com/khaledhikmat/wildwatch-go/dispatch"
	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/pipeline"
	"github.com/khaledhikmat/wildwatch-go/service/config"
	"github.com/khaledhikmat/wildwatch-go/service/data"
	"github.com/khaledhikmat/wildwatch-go/service/inference"
	"github.com/khaledhikmat/wildwatch-go/service/lgr"
	"github.com/khaledhikmat/wildwatch-go/service/notify"
	"github.com/khaledhikmat/wildwatch-go/service/orphan"
	"github.com/khaledhikmat/wildwatch-go/service/publisher"
	"github.com/khaledhikmat/wildwatch-go/service/storage"
)

// simulatedDetections feed the fake detector when running without a model.
var simulatedDetections = []model.RawDetection{
	{Category: "deer", Confidence: 0.82, Box: model.BBox{X: 120, Y: 140, Width: 90, Height: 160}},
	{Category: "tiger", Confidence: 0.91, Box: model.BBox{X: 200, Y: 100, Width: 180, Height: 220}},
	{Category: "person", Confidence: 0.88, Box: model.BBox{X: 260, Y: 40, Width: 160, Height: 420}},
	{Category: "rabbit", Confidence: 0.77, Box: model.BBox{X: 300, Y: 380, Width: 40, Height: 30}},
}

func newProcessor(cfgSvc config.IService) *detection.Processor {
	params := cfgSvc.GetDetectionParameters()
	return detection.NewProcessor(
		detection.ConfigFromParameters(params, cfgSvc.GetCameras()),
		detection.NewClassifier(params.HighDangerSpecies, params.MediumRiskSpecies, params.HumanLabels),
		detection.NewThrottle(),
	)
}

// newChannels builds the outbound channels. A channel without credentials is
// replaced by a fake that only logs, so routing still runs end to end.
func newChannels(cfgSvc config.IService) []notify.Channel {
	var channels []notify.Channel

	tw := cfgSvc.GetTwilio()
	sms, err := notify.NewTwilio(notify.TwilioConfig{
		AccountSID:    tw.AccountSID,
		AuthToken:     tw.AuthToken,
		From:          tw.FromNumber,
		RatePerSecond: tw.RatePerSecond,
	})
	if err != nil {
		lgr.Logger.Warn("sms channel simulated", slog.Any("error", err))
		channels = append(channels, notify.NewFake(notify.SMS))
	} else {
		channels = append(channels, sms)
	}

	smtp := cfgSvc.GetSMTP()
	from := smtp.From
	if from == "" {
		from = smtp.Username
	}
	email, err := notify.NewEmail(notify.EmailConfig{
		Host:     smtp.Host,
		Port:     smtp.Port,
		Username: smtp.Username,
		Password: smtp.Password,
		From:     from,
	})
	if err != nil {
		lgr.Logger.Warn("email channel simulated", slog.Any("error", err))
		channels = append(channels, notify.NewFake(notify.Email))
	} else {
		channels = append(channels, email)
	}

	snd := cfgSvc.GetSound()
	sound, err := notify.NewSound(snd.Player, snd.Files)
	if err != nil {
		lgr.Logger.Warn("sound channel simulated", slog.Any("error", err))
		channels = append(channels, notify.NewFake(notify.Sound))
	} else {
		channels = append(channels, sound)
	}

	return channels
}

func newInference(cfgSvc config.IService, simulate bool) inference.IService {
	if !simulate {
		svc, err := inference.NewYolo(
			cfgSvc.GetStreamerParameters(config.DetectorStreamerName),
			cfgSvc.GetFrameSkip(),
			cfgSvc.GetStreamerMaxWorkers(),
		)
		if err == nil {
			return svc
		}
		lgr.Logger.Warn("object detector unavailable, no detections will be made", slog.Any("error", err))
		return inference.NewFake(cfgSvc.GetFrameSkip(), 1)
	}

	lgr.Logger.Info("simulating detections", slog.Int("script", len(simulatedDetections)))
	return inference.NewFake(cfgSvc.GetFrameSkip(), 50, simulatedDetections...)
}

type closers []func() error

func (c closers) close() {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			lgr.Logger.Warn("error closing service", slog.Any("error", err))
		}
	}
}

// newServices builds everything the runtime needs. The returned closers
// release the services in reverse order.
func newServices(ctx context.Context, cfgSvc config.IService, simulate bool) (pipeline.ServicesFactory, closers, error) {
	var cl closers

	dataSvc, err := data.New(cfgSvc)
	if err != nil {
		return pipeline.ServicesFactory{}, cl, xerrors.Errorf("data service: %w", err)
	}
	cl = append(cl, dataSvc.Finalize)

	storageSvc, err := storage.New(ctx, cfgSvc)
	if err != nil {
		cl.close()
		return pipeline.ServicesFactory{}, nil, xerrors.Errorf("storage service: %w", err)
	}

	pubSvc, err := publisher.New(cfgSvc)
	if err != nil {
		cl.close()
		return pipeline.ServicesFactory{}, nil, xerrors.Errorf("publisher service: %w", err)
	}
	cl = append(cl, pubSvc.Close)

	inferenceSvc := newInference(cfgSvc, simulate)
	cl = append(cl, inferenceSvc.Close)

	dispatcher := dispatch.NewDispatcher(cfgSvc.GetContacts(), cfgSvc.GetAlertParameters(), newChannels(cfgSvc)...)
	cl = append(cl, func() error {
		dispatcher.Close()
		return nil
	})

	alerts := cfgSvc.GetAlertParameters()
	recordings := pipeline.NewTriggers()
	handler := dispatch.NewHandler(dispatcher,
		model.ChannelsEnabled{SMS: alerts.SMSEnabled, Email: alerts.EmailEnabled, Sound: alerts.SoundEnabled},
		dataSvc,
		storageSvc,
		pubSvc,
		recordings.Fire,
	)

	return pipeline.ServicesFactory{
		CfgSvc:       cfgSvc,
		DataSvc:      dataSvc,
		OrphanSvc:    orphan.NewMemory(),
		StorageSvc:   storageSvc,
		InferenceSvc: inferenceSvc,
		Processor:    newProcessor(cfgSvc),
		Handler:      handler,
		Recordings:   recordings,
	}, cl, nil
}
