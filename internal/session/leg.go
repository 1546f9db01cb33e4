package session

import (
	"context"

	"pizzacall/internal/audio"
	"pizzacall/internal/stream"
)

const farewellMark = "farewell"

// Transport is the caller's side of the duplex stream.
type Transport interface {
	ReadFrame() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// CallEnder ends a telephony call out of band.
type CallEnder interface {
	SayAndHangup(ctx context.Context, callSID, message string) error
}

// CallerLeg speaks to the caller in whatever form the stream variant expects.
type CallerLeg interface {
	InputFormat() audio.Format
	OutputSampleRate() int
	SendText(text string) error
	SendAudio(pcm []byte) error
	// Interrupt drops agent speech that has been sent but not yet played.
	Interrupt() error
	// MarkPlayback asks to be told, with a Mark of the given name, when
	// everything sent so far has been played. It reports false when the leg
	// cannot do that.
	MarkPlayback(name string) (bool, error)
	// Hangup says message, when not empty, and ends the call.
	Hangup(ctx context.Context, message string) error
}

type telephonyLeg struct {
	conn      Transport
	streamSID string
	callSID   string
	calls     CallEnder
}

func (l *telephonyLeg) InputFormat() audio.Format {
	return audio.TelephonyFormat
}

func (l *telephonyLeg) OutputSampleRate() int {
	return audio.TelephonyFormat.SampleRate
}

// Twilio plays audio only; the text is already in the transcript.
func (l *telephonyLeg) SendText(string) error {
	return nil
}

func (l *telephonyLeg) SendAudio(pcm []byte) error {
	return l.conn.WriteJSON(stream.NewMediaFrame(l.streamSID, audio.TelephonyFormat.FromPCM16(pcm)))
}

func (l *telephonyLeg) Interrupt() error {
	return l.conn.WriteJSON(stream.NewClearFrame(l.streamSID))
}

func (l *telephonyLeg) MarkPlayback(name string) (bool, error) {
	if err := l.conn.WriteJSON(stream.NewMarkFrame(l.streamSID, name)); err != nil {
		return false, err
	}
	return true, nil
}

func (l *telephonyLeg) Hangup(ctx context.Context, message string) error {
	return l.calls.SayAndHangup(ctx, l.callSID, message)
}

type browserLeg struct {
	conn       Transport
	inputRate  int
	outputRate int
}

func (l *browserLeg) InputFormat() audio.Format {
	return audio.Format{Encoding: audio.EncodingPCM16, SampleRate: l.inputRate}
}

func (l *browserLeg) OutputSampleRate() int {
	return l.outputRate
}

func (l *browserLeg) SendText(text string) error {
	return l.conn.WriteJSON(stream.NewTextFrame(text))
}

func (l *browserLeg) SendAudio(pcm []byte) error {
	return l.conn.WriteJSON(stream.NewAudioFrame(pcm))
}

func (l *browserLeg) Interrupt() error {
	return nil
}

func (l *browserLeg) MarkPlayback(string) (bool, error) {
	return false, nil
}

func (l *browserLeg) Hangup(_ context.Context, message string) error {
	if message != "" {
		if err := l.conn.WriteJSON(stream.NewTextFrame(message)); err != nil {
			return err
		}
	}
	return l.conn.Close()
}
