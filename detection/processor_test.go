package detection

import (
	"sync"
	"testing"
	"time"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/config"
)

func testConfig() Config {
	return Config{
		ConfidenceThreshold: 0.5,
		MinDistanceAlertCM:  50,
		Cooldown:            60 * time.Second,
		TierCooldowns:       map[model.DangerTier]time.Duration{},
		FocalLengthPx:       120,
		CameraFocalLengths:  map[string]float64{},
		Heights: ReferenceHeights{
			Category: map[string]float64{"person": 100},
			Tier: map[model.DangerTier]float64{
				model.TierHuman:  170,
				model.TierHigh:   100,
				model.TierMedium: 60,
				model.TierLow:    30,
			},
		},
	}
}

func newTestProcessor(cfg Config) *Processor {
	return NewProcessor(cfg, NewClassifier(testHigh, testMedium, testHuman), NewThrottle())
}

func TestProcessTigerThenSuppressed(t *testing.T) {
	p := newTestProcessor(testConfig())
	raw := model.RawDetection{
		CameraID:   "0",
		Category:   "tiger",
		Confidence: 0.9,
		Box:        model.BBox{X: 10, Y: 20, Width: 200, Height: 150},
	}

	ev, ok := p.Process(raw, t0)
	if !ok {
		t.Fatal("first tiger detection should emit an event")
	}
	if ev.Tier != model.TierHigh || ev.CameraID != "0" {
		t.Errorf("event = %+v, want tier high on camera 0", ev)
	}
	if ev.ID == "" {
		t.Error("event id should be set")
	}
	if !ev.Timestamp.Equal(t0) {
		t.Errorf("timestamp = %v, want %v", ev.Timestamp, t0)
	}
	if ev.DistanceCM != 100*120/150.0 {
		t.Errorf("distance = %v, want %v", ev.DistanceCM, 100*120/150.0)
	}

	if _, ok := p.Process(raw, t0.Add(10*time.Second)); ok {
		t.Error("identical detection 10s later should be suppressed")
	}
}

func TestProcessProximityEvent(t *testing.T) {
	p := newTestProcessor(testConfig())
	raw := model.RawDetection{
		CameraID:   "0",
		Category:   "person",
		Confidence: 0.8,
		Box:        model.BBox{Width: 120, Height: 300},
	}

	ev, ok := p.Process(raw, t0)
	if !ok {
		t.Fatal("close person should emit an event")
	}
	if ev.DistanceCM != 40 {
		t.Fatalf("distance = %v, want 40", ev.DistanceCM)
	}
	if ev.Tier != model.TierHuman || !ev.Proximity {
		t.Errorf("event = %+v, want human proximity event", ev)
	}
	if ev.Kind() != "proximity" {
		t.Errorf("kind = %q, want proximity", ev.Kind())
	}
}

func TestProcessDistantPersonIsNotProximity(t *testing.T) {
	p := newTestProcessor(testConfig())
	raw := model.RawDetection{CameraID: "0", Category: "Person", Confidence: 0.8, Box: model.BBox{Height: 100}}

	ev, ok := p.Process(raw, t0)
	if !ok {
		t.Fatal("person should emit an event")
	}
	if ev.Proximity {
		t.Errorf("person at %vcm should not be a proximity event", ev.DistanceCM)
	}

	// Proximity and plain human sightings are throttled separately.
	near := model.RawDetection{CameraID: "0", Category: "person", Confidence: 0.8, Box: model.BBox{Height: 300}}
	if _, ok := p.Process(near, t0.Add(time.Second)); !ok {
		t.Error("proximity event should not be throttled by a plain human event")
	}
}

func TestProcessBelowThreshold(t *testing.T) {
	p := newTestProcessor(testConfig())

	for _, category := range []string{"tiger", "person", "rabbit"} {
		raw := model.RawDetection{CameraID: "0", Category: category, Confidence: 0.3, Box: model.BBox{Height: 100}}
		d := p.Decide(raw, t0)
		if d.Emitted() || d.Reason != ReasonBelowThreshold {
			t.Errorf("%s at 0.3 should be rejected, got %s", category, d.Reason)
		}
	}

	if p.throttle.Len() != 0 {
		t.Error("rejected detections must not touch the throttle")
	}
}

func TestProcessInvalidGeometryKeepsEvent(t *testing.T) {
	p := newTestProcessor(testConfig())
	raw := model.RawDetection{CameraID: "0", Category: "person", Confidence: 0.9, Box: model.BBox{Height: 0}}

	ev, ok := p.Process(raw, t0)
	if !ok {
		t.Fatal("invalid geometry must not abort the pipeline")
	}
	if ev.HasDistance() || ev.DistanceCM != model.DistanceUnknown {
		t.Errorf("distance = %v, want unknown", ev.DistanceCM)
	}
	if ev.Proximity {
		t.Error("unknown distance cannot be a proximity event")
	}
}

func TestProcessCamerasIndependent(t *testing.T) {
	p := newTestProcessor(testConfig())

	for _, cam := range []string{"0", "1", "2"} {
		raw := model.RawDetection{CameraID: cam, Category: "bear", Confidence: 0.7, Box: model.BBox{Height: 50}}
		if _, ok := p.Process(raw, t0); !ok {
			t.Errorf("camera %s should not be throttled by other cameras", cam)
		}
	}
}

func TestProcessFrameMultipleCategories(t *testing.T) {
	p := newTestProcessor(testConfig())
	frame := []model.RawDetection{
		{CameraID: "0", Category: "tiger", Confidence: 0.9, Box: model.BBox{Height: 100}},
		{CameraID: "0", Category: "lion", Confidence: 0.9, Box: model.BBox{Height: 100}},
		{CameraID: "0", Category: "deer", Confidence: 0.9, Box: model.BBox{Height: 100}},
		{CameraID: "0", Category: "rabbit", Confidence: 0.2, Box: model.BBox{Height: 100}},
	}

	events := p.ProcessFrame(frame, t0)
	// tiger and lion share the (camera, high) key, so only the first one is admitted.
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Category != "tiger" || events[1].Category != "deer" {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestProcessTierCooldownOverride(t *testing.T) {
	cfg := testConfig()
	cfg.TierCooldowns[model.TierHuman] = 10 * time.Second
	cfg.ProximityCooldown = 5 * time.Second
	p := newTestProcessor(cfg)

	if got := p.Cooldown(model.TierHuman, false); got != 10*time.Second {
		t.Errorf("human cooldown = %v, want 10s", got)
	}
	if got := p.Cooldown(model.TierHuman, true); got != 5*time.Second {
		t.Errorf("proximity cooldown = %v, want 5s", got)
	}
	if got := p.Cooldown(model.TierHigh, false); got != 60*time.Second {
		t.Errorf("high cooldown = %v, want default 60s", got)
	}

	raw := model.RawDetection{CameraID: "0", Category: "person", Confidence: 0.9, Box: model.BBox{Height: 50}}
	p.Process(raw, t0)
	if _, ok := p.Process(raw, t0.Add(11*time.Second)); !ok {
		t.Error("human event should be admitted after its 10s tier cooldown")
	}
}

func TestProcessCameraFocalLength(t *testing.T) {
	cfg := testConfig()
	cfg.CameraFocalLengths["far"] = 1200
	p := newTestProcessor(cfg)

	raw := model.RawDetection{CameraID: "far", Category: "person", Confidence: 0.9, Box: model.BBox{Height: 300}}
	ev, ok := p.Process(raw, t0)
	if !ok {
		t.Fatal("expected event")
	}
	if ev.DistanceCM != 400 || ev.Proximity {
		t.Errorf("event = %+v, want 400cm non-proximity", ev)
	}
}

func TestProcessConcurrentCameras(t *testing.T) {
	p := newTestProcessor(testConfig())

	var mu sync.Mutex
	perCamera := map[string]int{}

	var wg sync.WaitGroup
	for _, cam := range []string{"0", "1", "2", "3"} {
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func(cam string) {
				defer wg.Done()
				raw := model.RawDetection{CameraID: cam, Category: "tiger", Confidence: 0.9, Box: model.BBox{Height: 100}}
				if _, ok := p.Process(raw, t0); ok {
					mu.Lock()
					perCamera[cam]++
					mu.Unlock()
				}
			}(cam)
		}
	}
	wg.Wait()

	for _, cam := range []string{"0", "1", "2", "3"} {
		if perCamera[cam] != 1 {
			t.Errorf("camera %s emitted %d events, want 1", cam, perCamera[cam])
		}
	}
}

func TestConfigFromParameters(t *testing.T) {
	params := config.DetectionParameters{
		ConfidenceThreshold:      0.6,
		MinDistanceAlert:         30,
		AlertCooldownSeconds:     60,
		TierCooldownSeconds:      map[string]int{"human": 20},
		ProximityCooldownSeconds: 5,
		FocalLengthPx:            700,
		CategoryHeightsCM:        map[string]float64{"Elephant": 300},
		TierHeightsCM:            map[string]float64{"high": 100},
	}
	cameras := []model.Camera{{ID: "0", FocalLengthPx: 900}, {ID: "1"}}

	cfg := ConfigFromParameters(params, cameras)

	if cfg.Cooldown != time.Minute || cfg.ProximityCooldown != 5*time.Second {
		t.Errorf("cooldowns = %v / %v", cfg.Cooldown, cfg.ProximityCooldown)
	}
	if cfg.TierCooldowns[model.TierHuman] != 20*time.Second {
		t.Errorf("human cooldown = %v, want 20s", cfg.TierCooldowns[model.TierHuman])
	}
	if cfg.Heights.Category["elephant"] != 300 {
		t.Errorf("category heights not normalised: %v", cfg.Heights.Category)
	}
	if cfg.CameraFocalLengths["0"] != 900 {
		t.Errorf("camera focal = %v, want 900", cfg.CameraFocalLengths["0"])
	}
	if _, ok := cfg.CameraFocalLengths["1"]; ok {
		t.Error("camera without focal length should use the default")
	}
}

func TestConfigFromParametersIgnoresUnknownTierKeys(t *testing.T) {
	params := config.DetectionParameters{
		AlertCooldownSeconds: 60,
		TierCooldownSeconds:  map[string]int{"proximity": 5, "low": 30, "Medium": 40},
		TierHeightsCM:        map[string]float64{"giant": 500},
	}

	cfg := ConfigFromParameters(params, nil)

	if got := cfg.TierCooldowns[model.TierLow]; got != 30*time.Second {
		t.Errorf("low cooldown = %v, want 30s", got)
	}
	if got := cfg.TierCooldowns[model.TierMedium]; got != 40*time.Second {
		t.Errorf("medium cooldown = %v, want 40s", got)
	}
	if len(cfg.TierCooldowns) != 2 {
		t.Errorf("unexpected tier cooldowns %v", cfg.TierCooldowns)
	}
	if len(cfg.Heights.Tier) != 0 {
		t.Errorf("unexpected tier heights %v", cfg.Heights.Tier)
	}
}
