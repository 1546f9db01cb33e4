package dialogue

import (
	"context"
	"errors"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"

	"pizzacall/internal/audio"
)

// Synthesizer renders agent text as PCM16LE speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, sampleRate int) ([]byte, error)
}

type GoogleSynthesizer struct {
	client       *texttospeech.Client
	languageCode string
	voiceName    string
}

func NewGoogleSynthesizer(client *texttospeech.Client, languageCode, voiceName string) *GoogleSynthesizer {
	return &GoogleSynthesizer{client: client, languageCode: languageCode, voiceName: voiceName}
}

func (s *GoogleSynthesizer) Synthesize(ctx context.Context, text string, sampleRate int) ([]byte, error) {
	resp, err := s.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: s.languageCode,
			Name:         s.voiceName,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
			SampleRateHertz: int32(sampleRate),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("synthesizing speech: %w", err)
	}

	// LINEAR16 responses come wrapped in a WAV container.
	pcm, format, err := audio.StripWAVHeader(resp.GetAudioContent())
	if errors.Is(err, audio.ErrNotWAV) {
		return pcm, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading synthesized audio: %w", err)
	}
	if format.BitsPerSample != 16 || int(format.SampleRate) != sampleRate {
		return nil, fmt.Errorf("unexpected synthesized format: %d Hz, %d bits", format.SampleRate, format.BitsPerSample)
	}

	return pcm, nil
}
