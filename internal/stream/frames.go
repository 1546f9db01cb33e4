package stream

import "encoding/base64"

// Outbound frames for the browser variant.

type TextFrame struct {
	Text string `json:"text"`
}

type AudioFrame struct {
	Audio string `json:"audio"`
}

func NewTextFrame(text string) TextFrame {
	return TextFrame{Text: text}
}

func NewAudioFrame(pcm []byte) AudioFrame {
	return AudioFrame{Audio: base64.StdEncoding.EncodeToString(pcm)}
}

// Outbound frames for the telephony variant, in Twilio media stream format.

type MediaFrame struct {
	Event     string       `json:"event"`
	StreamSID string       `json:"streamSid"`
	Media     MediaPayload `json:"media"`
}

type MediaPayload struct {
	Payload string `json:"payload"`
}

type MarkFrame struct {
	Event     string      `json:"event"`
	StreamSID string      `json:"streamSid"`
	Mark      MarkPayload `json:"mark"`
}

type MarkPayload struct {
	Name string `json:"name"`
}

type ClearFrame struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
}

func NewMediaFrame(streamSID string, mulaw []byte) MediaFrame {
	return MediaFrame{
		Event:     "media",
		StreamSID: streamSID,
		Media:     MediaPayload{Payload: base64.StdEncoding.EncodeToString(mulaw)},
	}
}

// NewClearFrame asks Twilio to drop audio it has buffered but not played.
func NewClearFrame(streamSID string) ClearFrame {
	return ClearFrame{Event: "clear", StreamSID: streamSID}
}

// NewMarkFrame asks Twilio to echo name back once the audio sent before it
// has finished playing.
func NewMarkFrame(streamSID, name string) MarkFrame {
	return MarkFrame{Event: "mark", StreamSID: streamSID, Mark: MarkPayload{Name: name}}
}
