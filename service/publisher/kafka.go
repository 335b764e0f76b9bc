package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/config"
)

type kafkaService struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafka publishes alert records as JSON, keyed by camera id so that the
// alerts of one camera stay ordered within a partition.
func NewKafka(params config.KafkaParameters) (IService, error) {
	if len(params.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if params.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	producer, err := sarama.NewSyncProducer(params.Brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return NewKafkaWithProducer(producer, params.Topic), nil
}

func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	return cfg
}

func NewKafkaWithProducer(producer sarama.SyncProducer, topic string) IService {
	return &kafkaService{
		producer: producer,
		topic:    topic,
	}
}

func (svc *kafkaService) Publish(ctx context.Context, record model.AlertRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: svc.topic,
		Key:   sarama.StringEncoder(record.Event.CameraID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("kind"), Value: []byte(record.Event.Kind())},
			{Key: []byte("status"), Value: []byte(record.Status)},
		},
	}

	if _, _, err := svc.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to publish alert %s: %w", record.Event.ID, err)
	}
	return nil
}

func (svc *kafkaService) Close() error {
	if err := svc.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}
