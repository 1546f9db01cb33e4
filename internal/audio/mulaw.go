package audio

// G.711 mu-law companding as used by telephony media streams.

const (
	mulawBias = 0x84
	mulawClip = 32635
)

var mulawDecodeTable = func() [256]int16 {
	var table [256]int16
	for i := 0; i < 256; i++ {
		u := ^byte(i)
		exponent := (u >> 4) & 0x07
		mantissa := int32(u & 0x0F)
		sample := ((mantissa << 3) + mulawBias) << exponent
		sample -= mulawBias
		if u&0x80 != 0 {
			sample = -sample
		}
		table[i] = int16(sample)
	}
	return table
}()

// MulawDecodeSample expands one mu-law byte to a linear 16-bit sample.
func MulawDecodeSample(b byte) int16 {
	return mulawDecodeTable[b]
}

// MulawEncodeSample compresses one linear 16-bit sample to mu-law.
func MulawEncodeSample(sample int16) byte {
	s := int32(sample)
	var sign byte
	if s < 0 {
		sign = 0x80
		s = -s
	}
	if s > mulawClip {
		s = mulawClip
	}
	s += mulawBias

	exponent := byte(7)
	for mask := int32(0x4000); s&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((s >> (exponent + 3)) & 0x0F)

	return ^(sign | exponent<<4 | mantissa)
}

// MulawToPCM16 decodes a mu-law frame into little-endian PCM16.
func MulawToPCM16(mulaw []byte) []byte {
	out := make([]byte, len(mulaw)*2)
	for i, b := range mulaw {
		s := mulawDecodeTable[b]
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

// PCM16ToMulaw encodes little-endian PCM16 into mu-law. A trailing odd byte
// is ignored.
func PCM16ToMulaw(pcm []byte) []byte {
	out := make([]byte, len(pcm)/2)
	for i := range out {
		s := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		out[i] = MulawEncodeSample(s)
	}
	return out
}
