// Package twilioapi wraps the parts of the Twilio REST API the service uses.
package twilioapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/claytonlow/twilio-deepgram/internal/model"
)

// DefaultPageLimit caps how many phone numbers are listed.
const DefaultPageLimit = 50

type Config struct {
	AccountSID string
	AuthToken  string
	// HTTPClient overrides the transport, e.g. in tests.
	HTTPClient *http.Client
}

type Client struct {
	rest *twilio.RestClient
}

func New(cfg Config) (*Client, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("twilio account sid and auth token are required")
	}
	params := twilio.ClientParams{
		Username:   cfg.AccountSID,
		Password:   cfg.AuthToken,
		AccountSid: cfg.AccountSID,
	}
	if cfg.HTTPClient != nil {
		cl := &client.Client{
			Credentials: client.NewCredentials(cfg.AccountSID, cfg.AuthToken),
			HTTPClient:  cfg.HTTPClient,
		}
		// NewRestClientWithParams only sets the account on clients it builds itself.
		cl.SetAccountSid(cfg.AccountSID)
		params.Client = cl
	}
	return &Client{rest: twilio.NewRestClientWithParams(params)}, nil
}

// ListPhoneNumbers returns the account's incoming phone numbers.
// twilio-go has no context-aware calls, so the context does not cancel the request;
// bound it with Config.HTTPClient's Timeout instead.
func (c *Client) ListPhoneNumbers(_ context.Context, limit int) ([]model.PhoneNumber, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	params := &openapi.ListIncomingPhoneNumberParams{}
	params.SetLimit(limit)

	records, err := c.rest.Api.ListIncomingPhoneNumber(params)
	if err != nil {
		return nil, fmt.Errorf("list incoming phone numbers: %w", err)
	}

	out := make([]model.PhoneNumber, 0, len(records))
	for _, rec := range records {
		out = append(out, model.PhoneNumber{
			SID:          deref(rec.Sid),
			PhoneNumber:  deref(rec.PhoneNumber),
			FriendlyName: deref(rec.FriendlyName),
			VoiceURL:     deref(rec.VoiceUrl),
		})
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
