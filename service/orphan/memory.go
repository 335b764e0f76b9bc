package orphan

import (
	"log/slog"
	"sync"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/lgr"
)

type memoryService struct {
	mu         sync.Mutex
	subscribed bool
	cameras    chan []model.Camera
}

// NewMemory returns an in-process orphan service. Only the latest batch is
// kept: the monitor republishes on every period, so an unread batch is stale.
func NewMemory() IService {
	return &memoryService{
		cameras: make(chan []model.Camera, 1),
	}
}

func (svc *memoryService) Publish(cameras []model.Camera) error {
	if len(cameras) == 0 {
		return nil
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	if !svc.subscribed {
		lgr.Logger.Debug("orphan service has no subscriber", slog.Int("cameras", len(cameras)))
		return nil
	}

	// Replace an unread batch
	select {
	case <-svc.cameras:
	default:
	}
	svc.cameras <- cameras
	return nil
}

// Subscribe always returns the same channel. Subscribing twice is harmless.
func (svc *memoryService) Subscribe() (<-chan []model.Camera, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.subscribed = true
	return svc.cameras, nil
}

func (svc *memoryService) Unsubscribe() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.subscribed = false
	select {
	case <-svc.cameras:
	default:
	}
	return nil
}
