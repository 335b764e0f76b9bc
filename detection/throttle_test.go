package detection

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/khaledhikmat/wildwatch-go/model"
)

var t0 = time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)

func TestThrottleCooldown(t *testing.T) {
	th := NewThrottle()
	key := Key{CameraID: "0", Tier: model.TierHigh}
	cooldown := 60 * time.Second

	if !th.ShouldEmit(key, t0, cooldown) {
		t.Error("t=0 should be admitted")
	}
	if th.ShouldEmit(key, t0.Add(30*time.Second), cooldown) {
		t.Error("t=30 should be suppressed")
	}
	if !th.ShouldEmit(key, t0.Add(61*time.Second), cooldown) {
		t.Error("t=61 should be admitted")
	}

	last, ok := th.Last(key)
	if !ok || !last.Equal(t0.Add(61*time.Second)) {
		t.Errorf("last = %v, want t=61", last)
	}
}

func TestThrottleAdmitsAtExactCooldown(t *testing.T) {
	th := NewThrottle()
	key := Key{CameraID: "0", Tier: model.TierMedium}

	th.ShouldEmit(key, t0, time.Minute)
	if !th.ShouldEmit(key, t0.Add(time.Minute), time.Minute) {
		t.Error("elapsed == cooldown should be admitted")
	}
}

func TestThrottleSuppressionKeepsState(t *testing.T) {
	th := NewThrottle()
	key := Key{CameraID: "0", Tier: model.TierHigh}

	th.ShouldEmit(key, t0, time.Minute)
	th.ShouldEmit(key, t0.Add(50*time.Second), time.Minute)

	// Suppressed calls must not extend the window.
	if !th.ShouldEmit(key, t0.Add(60*time.Second), time.Minute) {
		t.Error("window should be measured from the last admission")
	}
}

func TestThrottleKeyIndependence(t *testing.T) {
	th := NewThrottle()
	a := Key{CameraID: "0", Tier: model.TierHigh}
	b := Key{CameraID: "1", Tier: model.TierHigh}
	c := Key{CameraID: "0", Tier: model.TierMedium}
	d := Key{CameraID: "0", Tier: model.TierHuman, Proximity: true}

	for _, k := range []Key{a, b, c, d} {
		if !th.ShouldEmit(k, t0, time.Minute) {
			t.Errorf("first occurrence of %+v should be admitted", k)
		}
	}
	if th.Len() != 4 {
		t.Errorf("len = %d, want 4", th.Len())
	}
}

func TestThrottleClockBackwards(t *testing.T) {
	th := NewThrottle()
	key := Key{CameraID: "0", Tier: model.TierHigh}

	th.ShouldEmit(key, t0, 0)
	if th.ShouldEmit(key, t0.Add(-time.Second), 0) {
		t.Error("clock moving backwards should suppress even with zero cooldown")
	}
}

func TestThrottleConcurrentSameKey(t *testing.T) {
	th := NewThrottle()
	key := Key{CameraID: "0", Tier: model.TierHigh}

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if th.ShouldEmit(key, t0, time.Minute) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if admitted.Load() != 1 {
		t.Errorf("admitted = %d, want exactly 1", admitted.Load())
	}
}

func TestThrottleReset(t *testing.T) {
	th := NewThrottle()
	key := Key{CameraID: "0", Tier: model.TierHigh}

	th.ShouldEmit(key, t0, time.Minute)
	th.Reset()

	if !th.ShouldEmit(key, t0.Add(time.Second), time.Minute) {
		t.Error("key should be admitted after reset")
	}
}
