package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pizzacall/internal/audio"
)

const eventBuffer = 32

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type liveConfig struct {
	inputFormat audio.Format
	outputRate  int
	kickoff     string
}

// liveSession runs one conversation: caller transcripts go to the chat one
// turn at a time, and each model turn is spoken, or answered with tool
// results, before the next transcript is read.
type liveSession struct {
	chat        chatSession
	recognition RecognitionStream
	synthesizer Synthesizer
	cfg         liveConfig
	logger      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	events chan Event

	mu      sync.Mutex
	pending map[string]chan ToolResult

	wg      sync.WaitGroup
	endOnce sync.Once
}

// startLiveSession sends the kickoff turn within startCtx so that a broken
// engine shows up as a start failure. The session itself outlives startCtx.
func startLiveSession(
	startCtx context.Context,
	chat chatSession,
	recognition RecognitionStream,
	synthesizer Synthesizer,
	cfg liveConfig,
	logger *zap.Logger,
) (*liveSession, error) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(startCtx))

	s := &liveSession{
		chat:        chat,
		recognition: recognition,
		synthesizer: synthesizer,
		cfg:         cfg,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		events:      make(chan Event, eventBuffer),
		pending:     make(map[string]chan ToolResult),
	}

	first, err := chat.SendMessage(startCtx, genai.Text(cfg.kickoff))
	if err != nil {
		cancel()
		recognition.Close()
		return nil, fmt.Errorf("sending kickoff turn: %w", err)
	}

	s.wg.Add(1)
	go s.run(first)

	return s, nil
}

func (s *liveSession) Events() <-chan Event {
	return s.events
}

func (s *liveSession) ForwardAudio(ctx context.Context, frame []byte) error {
	if s.ctx.Err() != nil {
		return ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.recognition.Send(s.cfg.inputFormat.ToPCM16(frame))
}

func (s *liveSession) RespondToTool(ctx context.Context, requestID string, result ToolResult) error {
	if s.ctx.Err() != nil {
		return ErrSessionClosed
	}

	s.mu.Lock()
	ch, ok := s.pending[requestID]
	delete(s.pending, requestID)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToolRequest, requestID)
	}

	ch <- result
	return nil
}

func (s *liveSession) End() error {
	s.endOnce.Do(func() {
		s.cancel()
		if err := s.recognition.Close(); err != nil {
			s.logger.Debug("closing recognition stream", zap.Error(err))
		}
		s.wg.Wait()
	})
	return nil
}

var errEndOfCall = errors.New("end of call")

func (s *liveSession) run(first *genai.GenerateContentResponse) {
	defer s.wg.Done()
	defer close(s.events)

	if err := s.handleTurn(first); err != nil {
		s.stop(err)
		return
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case transcript, ok := <-s.recognition.Transcripts():
			if !ok {
				err := s.recognition.Err()
				if err == nil {
					err = errors.New("recognition stream closed")
				}
				s.stop(fmt.Errorf("speech recognition: %w", err))
				return
			}

			s.emit(Event{Kind: EventCallerTranscript, Text: transcript})

			resp, err := s.chat.SendMessage(s.ctx, genai.Text(transcript))
			if err != nil {
				s.stop(fmt.Errorf("sending caller turn: %w", err))
				return
			}
			if err := s.handleTurn(resp); err != nil {
				s.stop(err)
				return
			}
		}
	}
}

// stop reports why the loop ended, unless the session is being torn down.
func (s *liveSession) stop(err error) {
	if s.ctx.Err() != nil {
		return
	}
	if errors.Is(err, errEndOfCall) {
		s.emit(Event{Kind: EventEndOfCall})
		return
	}
	s.logger.Error("dialogue session failed", zap.Error(err))
	s.emit(Event{Kind: EventError, Err: err})
}

// handleTurn speaks the model's text and resolves its function calls until
// the model yields a turn without calls.
func (s *liveSession) handleTurn(resp *genai.GenerateContentResponse) error {
	for resp != nil {
		text, calls := splitResponse(resp)

		if text != "" {
			if err := s.speak(text); err != nil {
				return err
			}
		}
		if len(calls) == 0 {
			return nil
		}

		parts := make([]genai.Part, 0, len(calls))
		endCall := false
		for _, call := range calls {
			switch call.Name {
			case SaveOrderTool:
				part, err := s.saveOrder(call)
				if err != nil {
					return err
				}
				parts = append(parts, part)
			case EndCallTool:
				endCall = true
			default:
				s.logger.Warn("engine called an unknown function", zap.String("function", call.Name))
				parts = append(parts, toolResponse(call.Name, ToolResult{Message: "unknown function " + call.Name}))
			}
		}

		if endCall {
			return errEndOfCall
		}

		var err error
		resp, err = s.chat.SendMessage(s.ctx, parts...)
		if err != nil {
			return fmt.Errorf("sending tool response: %w", err)
		}
	}
	return nil
}

func (s *liveSession) speak(text string) error {
	s.emit(Event{Kind: EventText, Text: text})

	pcm, err := s.synthesizer.Synthesize(s.ctx, text, s.cfg.outputRate)
	if err != nil {
		return err
	}
	s.emit(Event{Kind: EventAudio, Audio: pcm})
	return nil
}

// saveOrder relays the request upward and blocks until it is answered.
// Malformed arguments are answered here so the engine can ask again.
func (s *liveSession) saveOrder(call genai.FunctionCall) (genai.Part, error) {
	order, err := decodeSaveOrder(call.Args)
	if err != nil {
		s.logger.Warn("malformed save_order arguments", zap.Error(err))
		return toolResponse(call.Name, ToolResult{Message: "invalid arguments: " + err.Error()}), nil
	}

	id := uuid.New().String()
	ch := make(chan ToolResult, 1)

	s.mu.Lock()
	s.pending[id] = ch
	s.mu.Unlock()

	s.emit(Event{Kind: EventToolRequest, Tool: &ToolRequest{ID: id, Name: call.Name, Order: order}})

	select {
	case result := <-ch:
		return toolResponse(call.Name, result), nil
	case <-s.ctx.Done():
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return nil, s.ctx.Err()
	}
}

func (s *liveSession) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func splitResponse(resp *genai.GenerateContentResponse) (string, []genai.FunctionCall) {
	var (
		text  strings.Builder
		calls []genai.FunctionCall
	)
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.FunctionCall:
			calls = append(calls, p)
		}
	}
	return strings.TrimSpace(text.String()), calls
}
