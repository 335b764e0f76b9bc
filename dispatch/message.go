package dispatch

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/notify"
)

//go:embed templates/*
var templateFS embed.FS

var htmlTemplate = template.Must(template.New("alert.html").
	Funcs(template.FuncMap{"upper": strings.ToUpper}).
	ParseFS(templateFS, "templates/alert.html"))

const timestampLayout = "2006-01-02 15:04:05"

// Sound cues
const (
	CueDeterrent  = "deterrent"
	CueMonitoring = "monitoring"
	CueWarning    = "warning"
	CueProximity  = "proximity"
)

type templateData struct {
	Heading     string
	Color       string
	Timestamp   string
	CameraID    string
	Category    string
	Distance    string
	Tier        string
	SnapshotURL string
	Action      string
}

func formatDistance(event model.AlertEvent) string {
	if !event.HasDistance() {
		return "unknown distance"
	}
	return fmt.Sprintf("%.0fcm", event.DistanceCM)
}

// Render builds the message every channel receives for an event.
func Render(event model.AlertEvent) notify.Message {
	ts := event.Timestamp.Format(timestampLayout)
	dist := formatDistance(event)

	data := templateData{
		Timestamp:   ts,
		CameraID:    event.CameraID,
		Category:    event.Category,
		Distance:    dist,
		Tier:        string(event.Tier),
		SnapshotURL: event.SnapshotURL,
	}

	var msg notify.Message
	switch {
	case event.Proximity:
		msg.Subject = "SECURITY ALERT: Possible tampering"
		msg.Text = fmt.Sprintf("SECURITY ALERT! Person detected very close (%s) to Camera %s. Possible tampering. [%s]",
			dist, event.CameraID, ts)
		msg.Cue = CueProximity
		data.Heading, data.Color = "SECURITY ALERT", "red"
		data.Action = "Someone is very close to the camera. Check the site."
	case event.Tier == model.TierHigh:
		msg.Subject = "HIGH DANGER: Wildlife Alert"
		msg.Text = fmt.Sprintf("ALERT! Dangerous wildlife detected: %s at %s from Camera %s. Stay away and contact forest authorities. [%s]",
			event.Category, dist, event.CameraID, ts)
		msg.Cue = CueDeterrent
		data.Heading, data.Color = "DANGER ALERT", "red"
		data.Action = "Stay away from the area. Forest authorities have been notified."
	case event.Tier == model.TierMedium:
		msg.Subject = "Wildlife Alert - Medium Risk"
		msg.Text = fmt.Sprintf("Alert: Wildlife detected - %s at %s from Camera %s. Monitor the situation. [%s]",
			event.Category, dist, event.CameraID, ts)
		msg.Cue = CueMonitoring
		data.Heading, data.Color = "Wildlife Alert", "orange"
		data.Action = "Monitor the situation."
	case event.Tier == model.TierHuman:
		msg.Subject = "SECURITY ALERT: Person detected"
		msg.Text = fmt.Sprintf("SECURITY ALERT! Person detected at %s from Camera %s. [%s]",
			dist, event.CameraID, ts)
		msg.Cue = CueWarning
		data.Heading, data.Color = "SECURITY ALERT", "orange"
		data.Action = "Verify the person is authorized."
	default:
		msg.Subject = "Wildlife Notice - Low Risk"
		msg.Text = fmt.Sprintf("Notice: Wildlife detected - %s at %s from Camera %s. [%s]",
			event.Category, dist, event.CameraID, ts)
		data.Heading, data.Color = "Wildlife Notice", "green"
		data.Action = "None."
	}

	if event.SnapshotURL != "" {
		msg.Attachments = []string{event.SnapshotURL}
	}

	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, data); err == nil {
		msg.HTML = buf.String()
	}
	return msg
}
