package publisher

import (
	"context"
	"log/slog"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/lgr"
)

type fakeService struct{}

func NewFake() IService {
	return &fakeService{}
}

func (svc *fakeService) Publish(_ context.Context, record model.AlertRecord) error {
	lgr.Logger.Debug("alert not published, no event bus configured",
		slog.String("event", record.Event.ID),
	)
	return nil
}

func (svc *fakeService) Close() error {
	return nil
}
