package detection

import (
	"time"

	"github.com/google/uuid"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/config"
)

// Config holds the policy values used by the Processor.
type Config struct {
	ConfidenceThreshold float64
	MinDistanceAlertCM  float64
	Cooldown            time.Duration
	TierCooldowns       map[model.DangerTier]time.Duration
	ProximityCooldown   time.Duration // zero falls back to the human tier cooldown
	FocalLengthPx       float64
	CameraFocalLengths  map[string]float64
	Heights             ReferenceHeights
}

// ConfigFromParameters builds a processor config from the configuration
// service values. Per-camera focal lengths override the default.
func ConfigFromParameters(p config.DetectionParameters, cameras []model.Camera) Config {
	cfg := Config{
		ConfidenceThreshold: p.ConfidenceThreshold,
		MinDistanceAlertCM:  p.MinDistanceAlert,
		Cooldown:            time.Duration(p.AlertCooldownSeconds) * time.Second,
		TierCooldowns:       map[model.DangerTier]time.Duration{},
		ProximityCooldown:   time.Duration(p.ProximityCooldownSeconds) * time.Second,
		FocalLengthPx:       p.FocalLengthPx,
		CameraFocalLengths:  map[string]float64{},
		Heights: ReferenceHeights{
			Category: map[string]float64{},
			Tier:     map[model.DangerTier]float64{},
		},
	}

	// Keys that name no tier are ignored; config validation rejects them.
	for key, secs := range p.TierCooldownSeconds {
		if tier, ok := model.LookupTier(key); ok {
			cfg.TierCooldowns[tier] = time.Duration(secs) * time.Second
		}
	}
	for category, h := range p.CategoryHeightsCM {
		cfg.Heights.Category[normalizeLabel(category)] = h
	}
	for key, h := range p.TierHeightsCM {
		if tier, ok := model.LookupTier(key); ok {
			cfg.Heights.Tier[tier] = h
		}
	}
	for _, c := range cameras {
		if c.FocalLengthPx > 0 {
			cfg.CameraFocalLengths[c.ID] = c.FocalLengthPx
		}
	}

	return cfg
}

// Reason explains a processing decision.
type Reason string

const (
	ReasonEmitted        Reason = "emitted"
	ReasonBelowThreshold Reason = "below_threshold"
	ReasonSuppressed     Reason = "suppressed"
)

// Decision is the full outcome of processing one detection.
type Decision struct {
	Reason     Reason
	Tier       model.DangerTier
	Proximity  bool
	DistanceCM float64
	Event      model.AlertEvent
}

func (d Decision) Emitted() bool {
	return d.Reason == ReasonEmitted
}

// Processor applies classification, distance estimation and throttling to
// raw detections. It is safe for concurrent use; the throttle is the only
// shared state.
type Processor struct {
	cfg        Config
	classifier *Classifier
	throttle   *Throttle
	newID      func() string
}

func NewProcessor(cfg Config, classifier *Classifier, throttle *Throttle) *Processor {
	return &Processor{
		cfg:        cfg,
		classifier: classifier,
		throttle:   throttle,
		newID:      uuid.NewString,
	}
}

// Process returns the alert event for a detection, if one should be emitted.
func (p *Processor) Process(raw model.RawDetection, now time.Time) (model.AlertEvent, bool) {
	d := p.Decide(raw, now)
	return d.Event, d.Emitted()
}

// ProcessFrame processes every detection of one frame independently.
func (p *Processor) ProcessFrame(raws []model.RawDetection, now time.Time) []model.AlertEvent {
	var events []model.AlertEvent
	for _, raw := range raws {
		if ev, ok := p.Process(raw, now); ok {
			events = append(events, ev)
		}
	}
	return events
}

func (p *Processor) Decide(raw model.RawDetection, now time.Time) Decision {
	if raw.Confidence < p.cfg.ConfidenceThreshold {
		return Decision{Reason: ReasonBelowThreshold, DistanceCM: model.DistanceUnknown}
	}

	tier := p.classifier.Classify(raw.Category)

	distance, err := EstimateDistance(
		float64(raw.Box.Height),
		p.cfg.Heights.For(raw.Category, tier),
		p.focalLength(raw.CameraID),
	)
	if err != nil {
		distance = model.DistanceUnknown
	}

	proximity := tier == model.TierHuman &&
		distance != model.DistanceUnknown &&
		distance < p.cfg.MinDistanceAlertCM

	d := Decision{
		Reason:     ReasonSuppressed,
		Tier:       tier,
		Proximity:  proximity,
		DistanceCM: distance,
	}

	key := Key{CameraID: raw.CameraID, Tier: tier, Proximity: proximity}
	if !p.throttle.ShouldEmit(key, now, p.Cooldown(tier, proximity)) {
		return d
	}

	d.Reason = ReasonEmitted
	d.Event = model.AlertEvent{
		ID:         p.newID(),
		CameraID:   raw.CameraID,
		Tier:       tier,
		Category:   raw.Category,
		DistanceCM: distance,
		Confidence: raw.Confidence,
		Proximity:  proximity,
		Box:        raw.Box,
		Timestamp:  now,
	}
	return d
}

// Cooldown returns the throttle window for a tier.
func (p *Processor) Cooldown(tier model.DangerTier, proximity bool) time.Duration {
	if proximity && p.cfg.ProximityCooldown > 0 {
		return p.cfg.ProximityCooldown
	}
	if c, ok := p.cfg.TierCooldowns[tier]; ok {
		return c
	}
	return p.cfg.Cooldown
}

func (p *Processor) focalLength(cameraID string) float64 {
	if f, ok := p.cfg.CameraFocalLengths[cameraID]; ok {
		return f
	}
	return p.cfg.FocalLengthPx
}
