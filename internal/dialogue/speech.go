package dialogue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Recognizer turns the caller's PCM16 audio into final transcripts.
type Recognizer interface {
	Open(ctx context.Context, sampleRate int) (RecognitionStream, error)
}

type RecognitionStream interface {
	Send(pcm []byte) error
	// Transcripts yields final utterances and is closed when the stream
	// stops. Err reports why once it is closed.
	Transcripts() <-chan string
	Err() error
	Close() error
}

type GoogleRecognizer struct {
	client       *speech.Client
	languageCode string
	logger       *zap.Logger
}

func NewGoogleRecognizer(client *speech.Client, languageCode string, logger *zap.Logger) *GoogleRecognizer {
	return &GoogleRecognizer{client: client, languageCode: languageCode, logger: logger}
}

func (r *GoogleRecognizer) Open(ctx context.Context, sampleRate int) (RecognitionStream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	s := &speechStream{
		recognizer:  r,
		ctx:         streamCtx,
		cancel:      cancel,
		sampleRate:  sampleRate,
		transcripts: make(chan string, 8),
	}

	stream, err := s.open()
	if err != nil {
		cancel()
		return nil, err
	}
	s.stream = stream

	go s.receive()
	return s, nil
}

type speechStream struct {
	recognizer *GoogleRecognizer
	ctx        context.Context
	cancel     context.CancelFunc
	sampleRate int

	mu     sync.Mutex
	stream speechpb.Speech_StreamingRecognizeClient

	transcripts chan string
	err         error
	closeOnce   sync.Once
}

func (s *speechStream) open() (speechpb.Speech_StreamingRecognizeClient, error) {
	stream, err := s.recognizer.client.StreamingRecognize(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("opening recognition stream: %w", err)
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:            int32(s.sampleRate),
					LanguageCode:               s.recognizer.languageCode,
					AudioChannelCount:          1,
					EnableAutomaticPunctuation: true,
					Model:                      "phone_call",
					UseEnhanced:                true,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sending recognition config: %w", err)
	}

	return stream, nil
}

func (s *speechStream) current() speechpb.Speech_StreamingRecognizeClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

func (s *speechStream) Send(pcm []byte) error {
	if s.ctx.Err() != nil {
		return ErrSessionClosed
	}

	err := s.current().Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: pcm},
	})
	// io.EOF means the server ended the stream; receive learns why and
	// reopens it if it can.
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *speechStream) receive() {
	defer close(s.transcripts)

	for {
		resp, err := s.current().Recv()
		if err == nil && resp.GetError() != nil {
			err = status.Error(codes.Code(resp.GetError().GetCode()), resp.GetError().GetMessage())
		}
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			// The API caps stream duration; a long call needs a fresh stream.
			if errors.Is(err, io.EOF) || status.Code(err) == codes.OutOfRange {
				s.recognizer.logger.Debug("recognition stream ended, reopening", zap.Error(err))
				stream, openErr := s.open()
				if openErr != nil {
					s.err = openErr
					return
				}
				s.mu.Lock()
				s.stream = stream
				s.mu.Unlock()
				continue
			}
			s.err = err
			return
		}

		for _, result := range resp.GetResults() {
			if !result.GetIsFinal() || len(result.GetAlternatives()) == 0 {
				continue
			}
			transcript := strings.TrimSpace(result.GetAlternatives()[0].GetTranscript())
			if transcript == "" {
				continue
			}
			select {
			case s.transcripts <- transcript:
			case <-s.ctx.Done():
				return
			}
		}
	}
}

func (s *speechStream) Transcripts() <-chan string {
	return s.transcripts
}

func (s *speechStream) Err() error {
	return s.err
}

func (s *speechStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.current().CloseSend()
		s.cancel()
	})
	return err
}
