package orphan

import "github.com/khaledhikmat/wildwatch-go/model"

// IService carries batches of cameras that have no live agent from the
// monitor to whichever manager is subscribed.
type IService interface {
	Publish(cameras []model.Camera) error
	Subscribe() (<-chan []model.Camera, error)
	Unsubscribe() error
}
