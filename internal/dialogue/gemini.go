package dialogue

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"

	"pizzacall/internal/infrastructure/logger"
	"pizzacall/internal/script"
)

type GeminiEngine struct {
	client      *genai.Client
	model       string
	script      *script.Script
	recognizer  Recognizer
	synthesizer Synthesizer
	logger      *zap.Logger
}

func NewGeminiEngine(
	client *genai.Client,
	model string,
	script *script.Script,
	recognizer Recognizer,
	synthesizer Synthesizer,
	logger *zap.Logger,
) *GeminiEngine {
	return &GeminiEngine{
		client:      client,
		model:       model,
		script:      script,
		recognizer:  recognizer,
		synthesizer: synthesizer,
		logger:      logger,
	}
}

func (e *GeminiEngine) Start(ctx context.Context, req StartRequest) (Session, error) {
	if req.Catalog.Len() == 0 {
		return nil, fmt.Errorf("starting dialogue: empty catalog")
	}

	model := e.client.GenerativeModel(e.model)
	model.SetTemperature(0.4)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(e.script.SystemPrompt(req.PizzeriaName, req.Catalog))},
	}
	if len(req.Tools) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: req.Tools}}
	}

	recognition, err := e.recognizer.Open(context.WithoutCancel(ctx), req.InputFormat.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("starting dialogue: %w", err)
	}

	session, err := startLiveSession(ctx, model.StartChat(), recognition, e.synthesizer, liveConfig{
		inputFormat: req.InputFormat,
		outputRate:  req.OutputSampleRate,
		kickoff:     e.script.Kickoff,
	}, logger.ForCall(e.logger, req.CallID, req.TenantID))
	if err != nil {
		return nil, fmt.Errorf("starting dialogue: %w", err)
	}

	return session, nil
}
