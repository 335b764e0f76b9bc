package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/config"
)

func TestKafkaPublish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig())

	record := model.AlertRecord{
		Event:  model.AlertEvent{ID: "e1", CameraID: "cam-1", Tier: model.TierHigh, Category: "tiger"},
		Status: "sent",
	}

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got model.AlertRecord
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.Event.ID != "e1" || got.Event.Category != "tiger" {
			return errors.New("unexpected payload")
		}
		return nil
	})

	svc := NewKafkaWithProducer(producer, "wildwatch-alerts")
	if err := svc.Publish(context.Background(), record); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestKafkaPublishFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	svc := NewKafkaWithProducer(producer, "wildwatch-alerts")
	err := svc.Publish(context.Background(), model.AlertRecord{Event: model.AlertEvent{ID: "e1"}})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Errorf("expected ErrOutOfBrokers, got %v", err)
	}
	svc.Close()
}

func TestKafkaPublishCanceled(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig())
	svc := NewKafkaWithProducer(producer, "wildwatch-alerts")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Publish(ctx, model.AlertRecord{}); err == nil {
		t.Error("expected error on canceled context")
	}
	svc.Close()
}

func TestNewWithoutBrokersIsFake(t *testing.T) {
	svc, err := New(config.NewHardCoded())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := svc.(*fakeService); !ok {
		t.Errorf("expected fake publisher, got %T", svc)
	}
	if err := svc.Publish(context.Background(), model.AlertRecord{}); err != nil {
		t.Errorf("fake Publish: %v", err)
	}
}
