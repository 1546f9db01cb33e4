package telephony

import (
	"fmt"

	"github.com/twilio/twilio-go/twiml"
)

type StreamParameter struct {
	Name  string
	Value string
}

// ConnectStream answers a call by opening a bidirectional media stream to
// streamURL. Parameters reach the stream as start.customParameters.
func ConnectStream(streamURL string, params ...StreamParameter) (string, error) {
	inner := make([]twiml.Element, 0, len(params))
	for _, p := range params {
		inner = append(inner, &twiml.VoiceParameter{Name: p.Name, Value: p.Value})
	}

	connect := &twiml.VoiceConnect{
		InnerElements: []twiml.Element{
			&twiml.VoiceStream{Url: streamURL, InnerElements: inner},
		},
	}

	doc, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		return "", fmt.Errorf("building connect twiml: %w", err)
	}
	return doc, nil
}

// SayAndHangup speaks message once and ends the call. An empty message
// hangs up straight away.
func SayAndHangup(message, voice, language string) (string, error) {
	verbs := make([]twiml.Element, 0, 2)
	if message != "" {
		verbs = append(verbs, &twiml.VoiceSay{Message: message, Voice: voice, Language: language})
	}
	verbs = append(verbs, &twiml.VoiceHangup{})

	doc, err := twiml.Voice(verbs)
	if err != nil {
		return "", fmt.Errorf("building hangup twiml: %w", err)
	}
	return doc, nil
}
