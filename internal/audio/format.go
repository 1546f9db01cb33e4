package audio

type Encoding string

const (
	EncodingMulaw Encoding = "mulaw"
	EncodingPCM16 Encoding = "pcm16"
)

// Format describes one direction of a caller leg's audio.
type Format struct {
	Encoding   Encoding
	SampleRate int
}

// TelephonyFormat is what Twilio media streams carry in both directions.
var TelephonyFormat = Format{Encoding: EncodingMulaw, SampleRate: 8000}

// ToPCM16 converts a frame in format f to little-endian PCM16.
func (f Format) ToPCM16(frame []byte) []byte {
	if f.Encoding == EncodingMulaw {
		return MulawToPCM16(frame)
	}
	return frame
}

// FromPCM16 converts little-endian PCM16 to format f.
func (f Format) FromPCM16(pcm []byte) []byte {
	if f.Encoding == EncodingMulaw {
		return PCM16ToMulaw(pcm)
	}
	return pcm
}
