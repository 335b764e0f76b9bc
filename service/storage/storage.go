package storage

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/wildwatch-go/service/config"
)

// New returns the storage service selected by configuration.
func New(ctx context.Context, cfgsvc config.IService) (IService, error) {
	params := cfgsvc.GetStorage()
	switch params.Provider {
	case "", ProviderFake:
		return NewFake(cfgsvc), nil
	case ProviderMinio:
		return NewMinio(ctx, params)
	default:
		return nil, xerrors.Errorf("unknown storage provider %q", params.Provider)
	}
}
