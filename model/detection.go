package model

import (
	"strings"
	"time"
)

// DangerTier is the severity bucket of a detection.
type DangerTier string

const (
	TierHigh   DangerTier = "high"
	TierMedium DangerTier = "medium"
	TierLow    DangerTier = "low"
	TierHuman  DangerTier = "human"
)

// ParseTier converts a string to a DangerTier. Unknown values map to low.
func ParseTier(s string) DangerTier {
	if t, ok := LookupTier(s); ok {
		return t
	}
	return TierLow
}

// LookupTier reports the DangerTier named by s, if any.
func LookupTier(s string) (DangerTier, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return TierHigh, true
	case "medium":
		return TierMedium, true
	case "low":
		return TierLow, true
	case "human":
		return TierHuman, true
	}
	return "", false
}

// DistanceUnknown marks an event whose distance could not be estimated.
const DistanceUnknown = -1.0

// BBox is a bounding box in pixel units.
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RawDetection is one detector output for one object in one frame.
type RawDetection struct {
	CameraID   string  `json:"cameraId"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Box        BBox    `json:"box"`
}

// AlertEvent is a detection that passed the confidence threshold and the throttle.
type AlertEvent struct {
	ID          string     `json:"id"`
	CameraID    string     `json:"cameraId"`
	Tier        DangerTier `json:"tier"`
	Category    string     `json:"category"`
	DistanceCM  float64    `json:"distanceCm"`
	Confidence  float64    `json:"confidence"`
	Proximity   bool       `json:"proximity"`
	Box         BBox       `json:"box"`
	SnapshotURL string     `json:"snapshotUrl,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

func (e AlertEvent) HasDistance() bool {
	return e.DistanceCM >= 0
}

// Kind names the alert family used in messages, history and metrics.
func (e AlertEvent) Kind() string {
	if e.Proximity {
		return "proximity"
	}
	return string(e.Tier)
}

// ChannelsEnabled toggles the outbound channels for one dispatch.
type ChannelsEnabled struct {
	SMS   bool `json:"sms"`
	Email bool `json:"email"`
	Sound bool `json:"sound"`
}

// ChannelResult is the outcome of one channel for one dispatch.
type ChannelResult struct {
	Channel    string `json:"channel"`
	Recipients int    `json:"recipients"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// DispatchResult lists the per-channel outcomes of one dispatch.
type DispatchResult struct {
	EventID           string          `json:"eventId"`
	Tier              DangerTier      `json:"tier"`
	Channels          []ChannelResult `json:"channels"`
	LoggedOnly        bool            `json:"loggedOnly"`
	RecordVideo       bool            `json:"recordVideo"`
	PossibleTampering bool            `json:"possibleTampering"`
}

// Failed returns the channels that did not deliver.
func (r DispatchResult) Failed() []ChannelResult {
	var failed []ChannelResult
	for _, c := range r.Channels {
		if !c.Success {
			failed = append(failed, c)
		}
	}
	return failed
}

// Alert statuses. Pending marks an event persisted before its dispatch
// finished. Skipped means the route wanted notifications but no channel was
// attempted, which points at disabled channels or missing recipients.
const (
	AlertStatusPending = "pending"
	AlertStatusSent    = "sent"
	AlertStatusPartial = "partial"
	AlertStatusFailed  = "failed"
	AlertStatusLogged  = "logged"
	AlertStatusSkipped = "skipped"
)

// Status summarises the result of a dispatch.
func (r DispatchResult) Status() string {
	if r.LoggedOnly {
		return AlertStatusLogged
	}
	if len(r.Channels) == 0 {
		return AlertStatusSkipped
	}
	failed := len(r.Failed())
	switch {
	case failed == 0:
		return AlertStatusSent
	case failed == len(r.Channels):
		return AlertStatusFailed
	default:
		return AlertStatusPartial
	}
}

// AlertRecord is the persisted outcome of one alert.
type AlertRecord struct {
	Event     AlertEvent     `json:"event"`
	Result    DispatchResult `json:"result"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
}
