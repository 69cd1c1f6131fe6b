// Package sms wraps the external SMS delivery provider behind a small
// interface so the signaling core can treat delivery as an optional delegate.
package sms

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioSender delivers SMS through the Twilio REST API.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{client: client, from: from}
}

// Send delivers body to the given number and returns the provider message sid.
// The Twilio SDK does not take a context; the parameter keeps the delegate
// interface uniform for callers and fakes.
func (s *TwilioSender) Send(_ context.Context, to, body string) (string, error) {
	params := &twilioapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio send: %w", err)
	}
	if resp.Sid == nil {
		return "", fmt.Errorf("twilio send: response missing sid")
	}
	return *resp.Sid, nil
}
