package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"golang.org/x/time/rate"
)

type TwilioConfig struct {
	AccountSID    string
	AuthToken     string
	From          string
	RatePerSecond float64 // outbound request pacing, defaults to 1
}

func (c *TwilioConfig) Validate() error {
	if c.AccountSID == "" {
		return fmt.Errorf("twilio account sid is required")
	}
	if c.AuthToken == "" {
		return fmt.Errorf("twilio auth token is required")
	}
	if c.From == "" {
		return fmt.Errorf("twilio from number is required")
	}
	return nil
}

// messageCreator is the part of the Twilio v2010 API the channel uses.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioChannel sends SMS through the Twilio Messages API.
type TwilioChannel struct {
	config   TwilioConfig
	messages messageCreator
	limiter  *rate.Limiter
}

func NewTwilio(config TwilioConfig) (*TwilioChannel, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid twilio config: %w", err)
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: config.AccountSID,
		Password: config.AuthToken,
	})
	return newTwilioChannel(config, client.Api), nil
}

func newTwilioChannel(config TwilioConfig, messages messageCreator) *TwilioChannel {
	if config.RatePerSecond <= 0 {
		config.RatePerSecond = 1
	}
	return &TwilioChannel{
		config:   config,
		messages: messages,
		limiter:  rate.NewLimiter(rate.Limit(config.RatePerSecond), 1),
	}
}

func (t *TwilioChannel) Name() string {
	return SMS
}

// Send messages every recipient and joins the failures; one bad number does
// not stop the rest. When pacing cannot fit the next message before the
// deadline, the recipients left over are named in the error.
func (t *TwilioChannel) Send(ctx context.Context, recipients []string, msg Message) error {
	body := msg.Text
	if len(msg.Attachments) > 0 {
		body = body + " " + strings.Join(msg.Attachments, " ")
	}

	var errs []error
	for i, to := range recipients {
		if err := t.limiter.Wait(ctx); err != nil {
			left := recipients[i:]
			errs = append(errs, fmt.Errorf("%d recipients not attempted (%s): %w",
				len(left), strings.Join(left, ", "), err))
			break
		}
		if err := t.send(ctx, to, body); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", to, err))
		}
	}
	return errors.Join(errs...)
}

// send runs one API call. The client takes no context, so a cancelled
// context abandons the call instead of interrupting it.
func (t *TwilioChannel) send(ctx context.Context, to, body string) error {
	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.config.From)
	params.SetBody(body)

	done := make(chan error, 1)
	go func() {
		_, err := t.messages.CreateMessage(params)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *TwilioChannel) Close() error {
	return nil
}
