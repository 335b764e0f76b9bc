package storage

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/khaledhikmat/wildwatch-go/service/config"
	"github.com/khaledhikmat/wildwatch-go/service/lgr"
)

type fakeService struct {
	CfgSvc config.IService
}

// NewFake keeps objects where they are and returns file:// URLs. Snapshots
// are not retained.
func NewFake(cfgsvc config.IService) IService {
	return &fakeService{
		CfgSvc: cfgsvc,
	}
}

func (svc *fakeService) StoreFile(_ context.Context, fileName string) (string, error) {
	abs, err := filepath.Abs(fileName)
	if err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(abs), nil
}

func (svc *fakeService) StoreBytes(_ context.Context, key string, data []byte, _ string) (string, error) {
	lgr.Logger.Debug("fake storage discarded object",
		slog.String("key", key),
		slog.Int("bytes", len(data)),
	)
	return "", nil
}
