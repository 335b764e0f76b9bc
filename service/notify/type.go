package notify

import "context"

// Channel names
const (
	SMS   = "sms"
	Email = "email"
	Sound = "sound"
)

// Message is rendered once per dispatch and handed to every channel. Each
// channel picks the parts it understands.
type Message struct {
	Subject     string
	Text        string
	HTML        string
	Cue         string   // sound cue name
	Attachments []string // URLs appended to text bodies
}

// Channel delivers a message to a list of recipients in a single attempt.
// Retries, if any, belong to the underlying client.
type Channel interface {
	Name() string
	Send(ctx context.Context, recipients []string, msg Message) error
	Close() error
}
