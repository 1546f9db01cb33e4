package session

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"pizzacall/internal/domain"
	"pizzacall/internal/stream"
)

type Speaker string

const (
	SpeakerCaller Speaker = "caller"
	SpeakerAgent  Speaker = "agent"
)

type Utterance struct {
	Speaker Speaker
	Text    string
}

// CallSession is the state of one call. It is owned by the goroutine running
// Handler.Serve and is never shared.
type CallSession struct {
	callID       string
	tenantID     string
	callerNumber string
	variant      stream.Variant
	state        State
	catalog      domain.CatalogSnapshot
	transcript   []Utterance
	startedAt    time.Time
	logger       *zap.Logger
}

func newCallSession(start stream.Start, callID string, logger *zap.Logger) *CallSession {
	return &CallSession{
		callID:       callID,
		tenantID:     start.TenantID,
		callerNumber: start.CallerNumber,
		variant:      start.Variant(),
		state:        StateAwaitingStart,
		startedAt:    time.Now(),
		logger:       logger,
	}
}

func (s *CallSession) CallID() string {
	return s.callID
}

func (s *CallSession) TenantID() string {
	return s.tenantID
}

func (s *CallSession) State() State {
	return s.state
}

func (s *CallSession) Transcript() []Utterance {
	return append([]Utterance(nil), s.transcript...)
}

func (s *CallSession) transition(to State) error {
	if !canTransition(s.state, to) {
		return fmt.Errorf("invalid transition %s -> %s", s.state, to)
	}

	s.logger.Info("call state changed",
		zap.Stringer("from", s.state),
		zap.Stringer("to", to),
	)
	s.state = to
	return nil
}

func (s *CallSession) record(speaker Speaker, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.transcript = append(s.transcript, Utterance{Speaker: speaker, Text: text})
}
