package publisher

import "github.com/khaledhikmat/wildwatch-go/service/config"

// New returns a Kafka publisher when brokers are configured, otherwise a fake.
func New(cfgsvc config.IService) (IService, error) {
	params := cfgsvc.GetKafka()
	if len(params.Brokers) == 0 {
		return NewFake(), nil
	}
	return NewKafka(params)
}
