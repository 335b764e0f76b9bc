package orphan

import (
	"testing"

	"github.com/khaledhikmat/wildwatch-go/model"
)

func TestMemoryPublishWithoutSubscriber(t *testing.T) {
	svc := NewMemory()
	if err := svc.Publish([]model.Camera{{ID: "cam-1"}}); err != nil {
		t.Fatal(err)
	}

	ch, err := svc.Subscribe()
	if err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-ch:
		t.Errorf("unexpected batch %v", got)
	default:
	}
}

func TestMemoryKeepsLatestBatch(t *testing.T) {
	svc := NewMemory()
	ch, _ := svc.Subscribe()

	_ = svc.Publish([]model.Camera{{ID: "cam-1"}})
	_ = svc.Publish([]model.Camera{{ID: "cam-2"}, {ID: "cam-3"}})
	_ = svc.Publish(nil)

	got := <-ch
	if len(got) != 2 || got[0].ID != "cam-2" {
		t.Errorf("expected the latest batch, got %v", got)
	}
	select {
	case extra := <-ch:
		t.Errorf("unexpected batch %v", extra)
	default:
	}
}

func TestMemoryUnsubscribeDropsPending(t *testing.T) {
	svc := NewMemory()
	ch, _ := svc.Subscribe()
	_ = svc.Publish([]model.Camera{{ID: "cam-1"}})

	if err := svc.Unsubscribe(); err != nil {
		t.Fatal(err)
	}
	_ = svc.Publish([]model.Camera{{ID: "cam-2"}})

	select {
	case got := <-ch:
		t.Errorf("unexpected batch after unsubscribe %v", got)
	default:
	}

	again, _ := svc.Subscribe()
	if again != ch {
		t.Error("subscribe should return the same channel")
	}
}
