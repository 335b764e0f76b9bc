package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/config"
	"github.com/khaledhikmat/wildwatch-go/service/data"
)

type stubStorage struct {
	err  error
	keys []string
}

func (s *stubStorage) StoreFile(_ context.Context, fileName string) (string, error) {
	return "http://store/" + fileName, s.err
}

func (s *stubStorage) StoreBytes(_ context.Context, key string, _ []byte, _ string) (string, error) {
	s.keys = append(s.keys, key)
	if s.err != nil {
		return "", s.err
	}
	return "http://store/" + key, nil
}

type stubPublisher struct {
	mu      sync.Mutex
	err     error
	records []model.AlertRecord
}

func (p *stubPublisher) Publish(_ context.Context, record model.AlertRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, record)
	return p.err
}

func (p *stubPublisher) Close() error { return nil }

func newDataService(t *testing.T) data.IService {
	t.Helper()
	settings := config.DefaultSettings()
	settings.DataFolder = t.TempDir()
	cfg, err := config.NewFromSettings(settings)
	if err != nil {
		t.Fatal(err)
	}
	svc, err := data.NewFilesDB(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func TestHandlerFlow(t *testing.T) {
	f := newFixture(testContacts, config.AlertParameters{})
	dataSvc := newDataService(t)
	store := &stubStorage{}
	pub := &stubPublisher{}

	var recorded []model.AlertEvent
	h := NewHandler(f.dispatcher, allChannels, dataSvc, store, pub, func(e model.AlertEvent) {
		recorded = append(recorded, e)
	})

	ev := event(model.TierHigh, "tiger", false)
	res, err := h.Handle(context.Background(), ev, []byte{0xff, 0xd8})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Status() != "sent" {
		t.Errorf("status = %q", res.Status())
	}

	if len(store.keys) != 1 || store.keys[0] != "snapshots/cam-1/ev-tiger.jpg" {
		t.Errorf("snapshot keys = %v", store.keys)
	}
	sms := f.sms.calls()
	if len(sms) != 1 || len(sms[0].msg.Attachments) != 1 || sms[0].msg.Attachments[0] != "http://store/snapshots/cam-1/ev-tiger.jpg" {
		t.Errorf("snapshot url not attached: %+v", sms)
	}

	if len(recorded) != 1 || recorded[0].ID != "ev-tiger" {
		t.Errorf("recording not triggered: %+v", recorded)
	}
	if len(pub.records) != 1 || pub.records[0].Status != "sent" {
		t.Errorf("published = %+v", pub.records)
	}

	alerts, err := dataSvc.RetrieveAlerts(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 || alerts[0].Status != "sent" || alerts[0].Event.SnapshotURL == "" {
		t.Errorf("persisted = %+v", alerts)
	}
}

func TestHandlerToleratesCollaboratorFailures(t *testing.T) {
	f := newFixture(testContacts, config.AlertParameters{})
	f.sms.err = errors.New("twilio 500")
	dataSvc := newDataService(t)
	store := &stubStorage{err: errors.New("bucket missing")}
	pub := &stubPublisher{err: errors.New("no brokers")}

	h := NewHandler(f.dispatcher, allChannels, dataSvc, store, pub, nil)

	ev := event(model.TierHuman, "person", false)
	res, err := h.Handle(context.Background(), ev, []byte{1})
	if err != nil {
		t.Fatalf("collaborator failures must not fail the handler: %v", err)
	}
	if res.Status() != "partial" {
		t.Errorf("status = %q, want partial", res.Status())
	}
	if res.RecordVideo {
		t.Error("plain human sighting should not record video")
	}

	alerts, _ := dataSvc.RetrieveAlerts(0)
	if len(alerts) != 1 || alerts[0].Status != "partial" || alerts[0].Event.SnapshotURL != "" {
		t.Errorf("persisted = %+v", alerts)
	}
}

func TestHandlerWithoutSnapshot(t *testing.T) {
	f := newFixture(testContacts, config.AlertParameters{})
	store := &stubStorage{}
	h := NewHandler(f.dispatcher, allChannels, newDataService(t), store, &stubPublisher{}, nil)

	if _, err := h.Handle(context.Background(), event(model.TierLow, "rabbit", false), nil); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(store.keys) != 0 {
		t.Error("nothing should be uploaded without a snapshot")
	}
}
