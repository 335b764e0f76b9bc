package notify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/khaledhikmat/wildwatch-go/service/lgr"
)

type fakeChannel struct {
	name string
}

// NewFake returns a channel that only logs what it would have sent. It is
// used when a channel is enabled but has no credentials.
func NewFake(name string) Channel {
	return &fakeChannel{name: name}
}

func (f *fakeChannel) Name() string {
	return f.name
}

func (f *fakeChannel) Send(_ context.Context, recipients []string, msg Message) error {
	lgr.Logger.Info(
		"simulated notification",
		slog.String("channel", f.name),
		slog.String("recipients", strings.Join(recipients, ",")),
		slog.String("subject", msg.Subject),
		slog.String("text", msg.Text),
		slog.String("cue", msg.Cue),
	)
	return nil
}

func (f *fakeChannel) Close() error {
	return nil
}
