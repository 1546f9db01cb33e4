package telephony

import (
	"context"
	"fmt"

	twilio "github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

type callUpdater interface {
	UpdateCall(sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error)
}

// Calls drives live calls out of band through the Twilio REST API.
type Calls struct {
	updater  callUpdater
	voice    string
	language string
	logger   *zap.Logger
}

func NewCalls(accountSID, authToken, voice, language string, logger *zap.Logger) *Calls {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &Calls{
		updater:  client.Api,
		voice:    voice,
		language: language,
		logger:   logger,
	}
}

// SayAndHangup replaces the call's running TwiML, which also tears down its
// media stream, with a spoken message followed by a hangup.
func (c *Calls) SayAndHangup(ctx context.Context, callSID, message string) error {
	doc, err := SayAndHangup(message, c.voice, c.language)
	if err != nil {
		return err
	}

	params := &api.UpdateCallParams{}
	params.SetTwiml(doc)

	done := make(chan error, 1)
	go func() {
		_, err := c.updater.UpdateCall(callSID, params)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("updating call %s: %w", callSID, err)
		}
		c.logger.Debug("call updated with hangup twiml", zap.String("callSid", callSID))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("updating call %s: %w", callSID, ctx.Err())
	}
}
