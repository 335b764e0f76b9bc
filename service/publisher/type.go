package publisher

import (
	"context"

	"github.com/khaledhikmat/wildwatch-go/model"
)

// IService publishes alert outcomes to downstream consumers.
type IService interface {
	Publish(ctx context.Context, record model.AlertRecord) error
	Close() error
}
