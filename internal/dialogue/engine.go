package dialogue

import (
	"context"
	"errors"

	"github.com/google/generative-ai-go/genai"

	"pizzacall/internal/audio"
	"pizzacall/internal/domain"
)

var (
	ErrSessionClosed      = errors.New("dialogue session closed")
	ErrUnknownToolRequest = errors.New("unknown tool request")
)

type EventKind int

const (
	// EventText carries a sentence the agent is about to say.
	EventText EventKind = iota
	// EventAudio carries the synthesized speech for the preceding text as
	// PCM16LE at StartRequest.OutputSampleRate.
	EventAudio
	EventCallerTranscript
	EventToolRequest
	// EventEndOfCall means the agent has said goodbye.
	EventEndOfCall
	// EventError is fatal for the session.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventAudio:
		return "audio"
	case EventCallerTranscript:
		return "caller_transcript"
	case EventToolRequest:
		return "tool_request"
	case EventEndOfCall:
		return "end_of_call"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind  EventKind
	Text  string
	Audio []byte
	Tool  *ToolRequest
	Err   error
}

// ToolRequest is the engine asking for an order to be committed. The adapter
// never executes it: whoever reads Events must answer with RespondToTool.
type ToolRequest struct {
	ID    string
	Name  string
	Order domain.OrderCommitRequest
}

type ToolResult struct {
	OK      bool
	OrderID uint
	Message string
}

type StartRequest struct {
	CallID           string
	TenantID         string
	PizzeriaName     string
	Catalog          domain.CatalogSnapshot
	Tools            []*genai.FunctionDeclaration
	InputFormat      audio.Format
	OutputSampleRate int
}

type Engine interface {
	// Start opens a conversation seeded with the catalog and tools. ctx only
	// bounds the start-up; the session lives until End.
	Start(ctx context.Context, req StartRequest) (Session, error)
}

type Session interface {
	ForwardAudio(ctx context.Context, frame []byte) error
	// Events is closed once the session has stopped producing events.
	Events() <-chan Event
	RespondToTool(ctx context.Context, requestID string, result ToolResult) error
	End() error
}
