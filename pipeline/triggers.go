package pipeline

import (
	"log/slog"
	"sync"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/lgr"
)

// Triggers routes recording requests to the recorder streamer of each camera.
type Triggers struct {
	mu       sync.Mutex
	triggers map[string]chan model.AlertEvent
}

func NewTriggers() *Triggers {
	return &Triggers{
		triggers: map[string]chan model.AlertEvent{},
	}
}

// Register returns the trigger channel for a camera. A second registration
// for the same camera replaces the first.
func (t *Triggers) Register(cameraID string) <-chan model.AlertEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan model.AlertEvent, 1)
	t.triggers[cameraID] = ch
	return ch
}

// Unregister removes the trigger channel if it is still the registered one.
func (t *Triggers) Unregister(cameraID string, ch <-chan model.AlertEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cur, ok := t.triggers[cameraID]; ok && (<-chan model.AlertEvent)(cur) == ch {
		delete(t.triggers, cameraID)
	}
}

// Fire asks the camera's recorder for a clip. It never blocks: a trigger
// arriving while one is pending is folded into it.
func (t *Triggers) Fire(event model.AlertEvent) {
	t.mu.Lock()
	ch, ok := t.triggers[event.CameraID]
	t.mu.Unlock()

	if !ok {
		lgr.Logger.Debug("no recorder for camera",
			slog.String("camera", event.CameraID),
			slog.String("event", event.ID),
		)
		return
	}

	select {
	case ch <- event:
	default:
	}
}
