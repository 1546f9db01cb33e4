package stream

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnrecognizedEvent = errors.New("unrecognized stream event")
	ErrMalformedFrame    = errors.New("malformed stream frame")
)

// InvalidStartError is a start event that cannot open a call. Start holds
// whatever identifiers the frame did carry.
type InvalidStartError struct {
	Start  Start
	Reason string
}

func (e *InvalidStartError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMalformedFrame, e.Reason)
}

func (e *InvalidStartError) Unwrap() error {
	return ErrMalformedFrame
}

func IsInvalidStart(err error) (*InvalidStartError, bool) {
	var ise *InvalidStartError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}

// Message is one inbound frame of the duplex media stream. The set of
// implementations is closed: Start, Media, Stop, Connected, Mark and DTMF.
type Message interface {
	isMessage()
}

type Variant int

const (
	// VariantTelephony is a Twilio media stream: mu-law in, mu-law media
	// frames out, call control over the REST API.
	VariantTelephony Variant = iota
	// VariantBrowser is a web client: PCM16 in, text and PCM16 frames out.
	VariantBrowser
)

func (v Variant) String() string {
	if v == VariantTelephony {
		return "telephony"
	}
	return "browser"
}

type Start struct {
	TenantID     string
	CallID       string
	StreamSID    string
	CallerNumber string
	PizzeriaName string
}

// Variant is telephony whenever the provider assigned a stream sid.
func (s Start) Variant() Variant {
	if s.StreamSID != "" {
		return VariantTelephony
	}
	return VariantBrowser
}

type Media struct {
	Payload []byte
}

type Stop struct{}

// Connected is Twilio's handshake frame, sent before start.
type Connected struct{}

// Mark acknowledges playback of a previously sent mark.
type Mark struct {
	Name string
}

type DTMF struct {
	Digit string
}

func (Start) isMessage()     {}
func (Media) isMessage()     {}
func (Stop) isMessage()      {}
func (Connected) isMessage() {}
func (Mark) isMessage()      {}
func (DTMF) isMessage()      {}

type rawFrame struct {
	Event     string    `json:"event"`
	StreamSID string    `json:"streamSid"`
	Start     *rawStart `json:"start"`
	Media     *rawMedia `json:"media"`
	Audio     *string   `json:"audio"`
	Mark      *struct {
		Name string `json:"name"`
	} `json:"mark"`
	DTMF *struct {
		Digit string `json:"digit"`
	} `json:"dtmf"`
}

type rawStart struct {
	PizzeriaID       string            `json:"pizzeriaId"`
	CallSID          string            `json:"callSid"`
	StreamSID        string            `json:"streamSid"`
	CustomParameters map[string]string `json:"customParameters"`
}

type rawMedia struct {
	Track   string `json:"track"`
	Payload string `json:"payload"`
}

// Parse decodes one inbound text frame.
func Parse(data []byte) (Message, error) {
	var raw rawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch raw.Event {
	case "start":
		return parseStart(raw)
	case "media":
		if raw.Media == nil {
			return nil, fmt.Errorf("%w: media event without media", ErrMalformedFrame)
		}
		return decodeMedia(raw.Media.Payload)
	case "stop":
		return Stop{}, nil
	case "connected":
		return Connected{}, nil
	case "mark":
		var name string
		if raw.Mark != nil {
			name = raw.Mark.Name
		}
		return Mark{Name: name}, nil
	case "dtmf":
		var digit string
		if raw.DTMF != nil {
			digit = raw.DTMF.Digit
		}
		return DTMF{Digit: digit}, nil
	case "":
		if raw.Audio != nil {
			return decodeMedia(*raw.Audio)
		}
		return nil, fmt.Errorf("%w: frame without event", ErrUnrecognizedEvent)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedEvent, raw.Event)
	}
}

func parseStart(raw rawFrame) (Message, error) {
	if raw.Start == nil {
		return nil, &InvalidStartError{Start: Start{StreamSID: raw.StreamSID}, Reason: "start event without start"}
	}

	params := raw.Start.CustomParameters
	start := Start{
		TenantID:     firstNonEmpty(raw.Start.PizzeriaID, params["pizzeriaId"]),
		CallID:       firstNonEmpty(raw.Start.CallSID, params["callSid"]),
		StreamSID:    firstNonEmpty(raw.Start.StreamSID, raw.StreamSID),
		CallerNumber: params["callerNumber"],
		PizzeriaName: params["pizzeriaName"],
	}

	if start.TenantID == "" {
		return nil, &InvalidStartError{Start: start, Reason: "start event without pizzeriaId"}
	}
	if start.Variant() == VariantTelephony && start.CallID == "" {
		return nil, &InvalidStartError{Start: start, Reason: "telephony start event without callSid"}
	}

	return start, nil
}

func decodeMedia(payload string) (Message, error) {
	audio, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: media payload is not base64: %v", ErrMalformedFrame, err)
	}
	return Media{Payload: audio}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
